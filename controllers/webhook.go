package controllers

import (
	"net/http"
	"strings"

	"benemax/delivery"

	"github.com/gin-gonic/gin"
)

type retryPolicyReq struct {
	Attempts int `json:"attempts"`
	DelayMs  int `json:"delay_ms"`
}

type createWebhookReq struct {
	Event       string          `json:"event"`
	URL         string          `json:"url"`
	RetryPolicy *retryPolicyReq `json:"retry_policy"`
}

// POST /api/webhooks
// Subscribers recebem entregas at-least-once: duplicatas são possíveis e o
// endpoint do tenant precisa tolerar.
func CreateWebhook(c *gin.Context) {
	principal, ok := GetPrincipal(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req createWebhookReq
	if err := c.Bind(&req); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	core := CoreInstance(c)
	if core == nil {
		RespondError(c, "core não configurado no contexto", http.StatusInternalServerError)
		return
	}

	attempts, delayMs := 0, 0
	if req.RetryPolicy != nil {
		attempts = req.RetryPolicy.Attempts
		delayMs = req.RetryPolicy.DelayMs
	}

	sub, err := core.Webhooks.Register(principal.TenantID, strings.TrimSpace(req.Event), req.URL, attempts, delayMs)
	if err != nil {
		RespondCoreError(c, err)
		return
	}
	RespondSuccess(c, sub)
}

// GET /api/webhooks
func ListWebhooks(c *gin.Context) {
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

	subs, err := core.Webhooks.List(principal.TenantID)
	if err != nil {
		RespondCoreError(c, err)
		return
	}
	RespondSuccess(c, gin.H{"webhooks": subs})
}

// GET /api/webhooks/:id
func GetWebhook(c *gin.Context) {
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

	sub, err := core.Webhooks.Get(principal.TenantID, c.Param("id"))
	if err != nil {
		RespondCoreError(c, err)
		return
	}
	RespondSuccess(c, sub)
}

type updateWebhookReq struct {
	Event       *string         `json:"event"`
	URL         *string         `json:"url"`
	RetryPolicy *retryPolicyReq `json:"retry_policy"`
}

// PUT /api/webhooks/:id
func UpdateWebhook(c *gin.Context) {
	principal, ok := GetPrincipal(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req updateWebhookReq
	if err := c.Bind(&req); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	core := CoreInstance(c)
	if core == nil {
		RespondError(c, "core não configurado no contexto", http.StatusInternalServerError)
		return
	}

	patch := delivery.UpdateParams{
		Event: req.Event,
		URL:   req.URL,
	}
	if req.RetryPolicy != nil {
		patch.RetryAttempts = &req.RetryPolicy.Attempts
		patch.RetryDelayMs = &req.RetryPolicy.DelayMs
	}

	sub, err := core.Webhooks.Update(principal.TenantID, c.Param("id"), patch)
	if err != nil {
		RespondCoreError(c, err)
		return
	}
	RespondSuccess(c, sub)
}

// DELETE /api/webhooks/:id
func DeleteWebhook(c *gin.Context) {
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

	if err := core.Webhooks.Delete(principal.TenantID, c.Param("id")); err != nil {
		RespondCoreError(c, err)
		return
	}
	RespondSuccess(c, true)
}
