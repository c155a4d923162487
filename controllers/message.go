package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type sendMessageReq struct {
	Type    string          `json:"type"`
	To      string          `json:"to"`
	Content json.RawMessage `json:"content"`
}

// POST /api/instances/:id/messages
// Devolve 202 com a mensagem em queued: aceitação para despacho, não confirmação
// de entrega. Quem precisa da confirmação faz polling ou assina message_status.
func SendMessage(c *gin.Context) {
	principal, ok := GetPrincipal(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req sendMessageReq
	if err := c.Bind(&req); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	core := CoreInstance(c)
	if core == nil {
		RespondError(c, "core não configurado no contexto", http.StatusInternalServerError)
		return
	}

	msg, err := core.Dispatcher.Send(
		c.Request.Context(),
		principal.TenantID,
		c.Param("id"),
		strings.TrimSpace(req.Type),
		req.To,
		req.Content,
	)
	if err != nil {
		RespondCoreError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, msg)
}

// GET /api/messages/:id
func GetMessage(c *gin.Context) {
	principal, ok := GetPrincipal(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}
	core := CoreInstance(c)
	if core == nil {
		RespondError(c, "core não configurado no contexto", http.StatusInternalServerError)
		return
	}

	msg, err := core.Dispatcher.Get(principal.TenantID, c.Param("id"))
	if err != nil {
		RespondCoreError(c, err)
		return
	}
	RespondSuccess(c, msg)
}
