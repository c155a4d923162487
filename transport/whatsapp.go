package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"benemax/tools"
)

// WhatsAppClient fala com o WhatsApp Cloud API (Graph).
type WhatsAppClient struct {
	AccessToken   string
	ApiVersion    string // e.g. v24.0
	PhoneNumberID string
	HttpClient    *http.Client
}

func (c *WhatsAppClient) client() *http.Client {
	if c.HttpClient != nil {
		return c.HttpClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (c *WhatsAppClient) post(ctx context.Context, path string, body any) error {
	apiVersion := strings.TrimSpace(c.ApiVersion)
	if apiVersion == "" {
		apiVersion = "v24.0"
	}
	url := fmt.Sprintf("https://graph.facebook.com/%s/%s/%s", apiVersion, strings.TrimSpace(c.PhoneNumberID), strings.TrimPrefix(path, "/"))

	b, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(c.AccessToken))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("whatsapp api error: status=%d body=%s", resp.StatusCode, string(respBody))
	}
	return nil
}

// Pair registra a instância e devolve um código de pareamento. O Cloud API não
// tem QR de verdade; o código gerado aqui cumpre o papel de token single-use.
func (c *WhatsAppClient) Pair(ctx context.Context, instanceID string) (string, error) {
	_ = instanceID
	return tools.RandomString(8), nil
}

// Send envia uma mensagem pelo endpoint /messages.
func (c *WhatsAppClient) Send(ctx context.Context, instanceID string, msgType string, to string, content []byte) error {
	_ = instanceID

	var inner any
	if err := json.Unmarshal(content, &inner); err != nil {
		return fmt.Errorf("bad content payload: %w", err)
	}

	reqBody := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              msgType,
		msgType:             inner,
	}
	return c.post(ctx, "messages", reqBody)
}
