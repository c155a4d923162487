package dispatch

import (
	"encoding/json"
	"strings"

	"benemax/models"
)

// Content shapes por tipo de mensagem. Conjunto fechado: tipo desconhecido é
// UnsupportedTypeError, content com shape errado é ValidationError.

type TextContent struct {
	Body string `json:"body"`
}

type MediaContent struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

type DocumentContent struct {
	URL      string `json:"url"`
	FileName string `json:"file_name"`
}

type BotContent struct {
	BotID   string `json:"bot_id"`
	Message string `json:"message"`
}

// normalizeContent valida o payload contra o shape do tipo e devolve o JSON
// canônico que vai para o transporte e para a row de Message.
func normalizeContent(msgType string, raw json.RawMessage) ([]byte, error) {
	switch msgType {
	case models.MESSAGE_TYPE_TEXT:
		var c TextContent
		if err := strictUnmarshal(raw, &c); err != nil {
			return nil, err
		}
		if strings.TrimSpace(c.Body) == "" {
			return nil, models.ValidationError{Field: "content.body", Reason: "required for text messages"}
		}
		return json.Marshal(c)

	case models.MESSAGE_TYPE_IMAGE, models.MESSAGE_TYPE_VIDEO, models.MESSAGE_TYPE_AUDIO:
		var c MediaContent
		if err := strictUnmarshal(raw, &c); err != nil {
			return nil, err
		}
		if strings.TrimSpace(c.URL) == "" {
			return nil, models.ValidationError{Field: "content.url", Reason: "required for media messages"}
		}
		return json.Marshal(c)

	case models.MESSAGE_TYPE_DOCUMENT:
		var c DocumentContent
		if err := strictUnmarshal(raw, &c); err != nil {
			return nil, err
		}
		if strings.TrimSpace(c.URL) == "" {
			return nil, models.ValidationError{Field: "content.url", Reason: "required for document messages"}
		}
		if strings.TrimSpace(c.FileName) == "" {
			return nil, models.ValidationError{Field: "content.file_name", Reason: "required for document messages"}
		}
		return json.Marshal(c)

	case models.MESSAGE_TYPE_BOT:
		var c BotContent
		if err := strictUnmarshal(raw, &c); err != nil {
			return nil, err
		}
		if strings.TrimSpace(c.BotID) == "" {
			return nil, models.ValidationError{Field: "content.bot_id", Reason: "required for bot messages"}
		}
		if strings.TrimSpace(c.Message) == "" {
			return nil, models.ValidationError{Field: "content.message", Reason: "required for bot messages"}
		}
		return json.Marshal(c)
	}

	return nil, models.UnsupportedTypeError{Type: msgType}
}

func strictUnmarshal(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return models.ValidationError{Field: "content", Reason: "required"}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return models.ValidationError{Field: "content", Reason: err.Error()}
	}
	return nil
}
