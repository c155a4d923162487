package models

import "time"

/************************************************
/**** MARK: MESSAGE TYPES ****/
/************************************************/
const MESSAGE_TYPE_TEXT = "text"
const MESSAGE_TYPE_IMAGE = "image"
const MESSAGE_TYPE_VIDEO = "video"
const MESSAGE_TYPE_AUDIO = "audio"
const MESSAGE_TYPE_DOCUMENT = "document"
const MESSAGE_TYPE_BOT = "bot"

/************************************************
/**** MARK: DISPATCH STATE ****/
/************************************************/
const DISPATCH_STATE_QUEUED = "queued"
const DISPATCH_STATE_SENT = "sent"
const DISPATCH_STATE_FAILED = "failed"

// Message representa uma mensagem outbound aceita para despacho.
// Content guarda o payload tipado serializado em JSON (shape depende de Type).
type Message struct {
	ID            string     `gorm:"primary_key;type:varchar(36)" json:"id"`
	InstanceID    string     `gorm:"not null;index" json:"instance_id"`
	TenantID      string     `gorm:"not null;index" json:"tenant_id"`
	Type          string     `gorm:"not null" json:"type"`
	Recipient     string     `gorm:"not null" json:"to"`
	Content       string     `gorm:"type:text" json:"content"`
	DispatchState string     `gorm:"not null;default:'queued';index" json:"dispatch_state"`
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	FailReason    string     `gorm:"type:text" json:"fail_reason,omitempty"`
	CreatedAt     *time.Time `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at"`
}
