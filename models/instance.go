package models

import "time"

/************************************************
/**** MARK: INSTANCE STATE ****/
/************************************************/
const INSTANCE_STATE_CREATED = "created"
const INSTANCE_STATE_QR = "qr"
const INSTANCE_STATE_CONNECTING = "connecting"
const INSTANCE_STATE_CONNECTED = "connected"
const INSTANCE_STATE_DISCONNECTED = "disconnected"
const INSTANCE_STATE_DELETED = "deleted"

// Instance representa uma conexão lógica de um tenant com a rede de mensagens
// (equivalente a uma sessão de dispositivo). One row per device session.
// Regra: nome único por tenant (unique(tenant_id, name)).
type Instance struct {
	ID                 string     `gorm:"primary_key;type:varchar(36)" json:"id"`
	TenantID           string     `gorm:"not null;index;unique_index:ux_tenant_instance" json:"tenant_id"`
	Name               string     `gorm:"not null;unique_index:ux_tenant_instance" json:"name"`
	State              string     `gorm:"not null;default:'created';index" json:"state"`
	PairingToken       string     `gorm:"default:''" json:"-"`
	PairingExpiresAt   *time.Time `json:"pairing_expires_at,omitempty"`
	LastStatusChangeAt *time.Time `json:"last_status_change_at"`
	CreatedAt          *time.Time `json:"created_at"`
	UpdatedAt          *time.Time `json:"updated_at"`
}

// Live reports whether the instance still accepts operations.
func (i Instance) Live() bool {
	return i.State != INSTANCE_STATE_DELETED
}
