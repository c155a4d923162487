package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type createInstanceReq struct {
	Name string `json:"name"`
}

// POST /api/instances
func CreateInstance(c *gin.Context) {
	principal, ok := GetPrincipal(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req createInstanceReq
	if err := c.Bind(&req); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	core := CoreInstance(c)
	if core == nil {
		RespondError(c, "core não configurado no contexto", http.StatusInternalServerError)
		return
	}

	inst, err := core.Registry.Create(principal.TenantID, strings.TrimSpace(req.Name))
	if err != nil {
		RespondCoreError(c, err)
		return
	}
	RespondSuccess(c, inst)
}

// GET /api/instances
func ListInstances(c *gin.Context) {
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
	RespondSuccess(c, gin.H{"instances": core.Registry.List(principal.TenantID)})
}

// GET /api/instances/:id
func GetInstance(c *gin.Context) {
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

	inst, err := core.Registry.Get(principal.TenantID, c.Param("id"))
	if err != nil {
		RespondCoreError(c, err)
		return
	}
	RespondSuccess(c, inst)
}

// GET /api/instances/:id/status
// Leitura pura do estado, seguro para polling em alta frequência.
func GetInstanceStatus(c *gin.Context) {
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

	inst, err := core.Registry.Get(principal.TenantID, c.Param("id"))
	if err != nil {
		RespondCoreError(c, err)
		return
	}
	RespondSuccess(c, gin.H{"state": inst.State, "last_status_change_at": inst.LastStatusChangeAt})
}

// DELETE /api/instances/:id
func DeleteInstance(c *gin.Context) {
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

	if err := core.Registry.Delete(principal.TenantID, c.Param("id")); err != nil {
		RespondCoreError(c, err)
		return
	}
	RespondSuccess(c, true)
}

// POST /api/instances/:id/pairing
// Gera o pairing token (QR-equivalente) e devolve token + expiração.
func RequestPairing(c *gin.Context) {
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

	machine, err := core.Registry.Machine(principal.TenantID, c.Param("id"))
	if err != nil {
		RespondCoreError(c, err)
		return
	}

	token, expiresAt, err := machine.RequestPairing(c.Request.Context())
	if err != nil {
		RespondCoreError(c, err)
		return
	}
	RespondSuccess(c, gin.H{
		"pairing_token": token,
		"expires_at":    expiresAt,
		"state":         machine.State(),
	})
}

// POST /api/instances/:id/handshake
// Callback do lado do transporte: o peer leu o token. Exposto para o adapter de
// transporte e para simulação em dev.
func PeerHandshake(c *gin.Context) {
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

	machine, err := core.Registry.Machine(principal.TenantID, c.Param("id"))
	if err != nil {
		RespondCoreError(c, err)
		return
	}
	if err := machine.HandlePeerHandshake(); err != nil {
		RespondCoreError(c, err)
		return
	}
	RespondSuccess(c, gin.H{"state": machine.State()})
}

// POST /api/instances/:id/drop
// Callback do lado do transporte: sessão caiu.
func PeerDrop(c *gin.Context) {
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

	machine, err := core.Registry.Machine(principal.TenantID, c.Param("id"))
	if err != nil {
		RespondCoreError(c, err)
		return
	}
	if err := machine.HandlePeerDrop(); err != nil {
		RespondCoreError(c, err)
		return
	}
	RespondSuccess(c, gin.H{"state": machine.State()})
}
