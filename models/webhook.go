package models

import "time"

/************************************************
/**** MARK: WEBHOOK EVENTS ****/
/************************************************/
const WEBHOOK_EVENT_CONNECTION_UPDATE = "connection_update"
const WEBHOOK_EVENT_MESSAGE_STATUS = "message_status"
const WEBHOOK_EVENT_MESSAGE_RECEIVED = "message_received"

/************************************************
/**** MARK: DELIVERY ATTEMPT STATUS ****/
/************************************************/
const ATTEMPT_STATUS_PENDING = "pending"
const ATTEMPT_STATUS_PROCESSING = "processing"

/************************************************
/**** MARK: DELIVERY LOG OUTCOMES ****/
/************************************************/
const DELIVERY_OUTCOME_SUCCESS = "success"
const DELIVERY_OUTCOME_ERROR = "error"
const DELIVERY_OUTCOME_EXHAUSTED = "exhausted"

// WebhookSubscription é a inscrição de callback configurada pelo tenant para um
// evento nomeado, com retry policy limitada (attempts + delay linear).
type WebhookSubscription struct {
	ID            string     `gorm:"primary_key;type:varchar(36)" json:"id"`
	TenantID      string     `gorm:"not null;index" json:"tenant_id"`
	Event         string     `gorm:"not null;index" json:"event"`
	URL           string     `gorm:"not null" json:"url"`
	RetryAttempts int        `gorm:"not null;default:3" json:"retry_attempts"`
	RetryDelayMs  int        `gorm:"not null;default:5000" json:"retry_delay_ms"`
	CreatedAt     *time.Time `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at"`
}

// DeliveryAttempt é uma tentativa agendada de entrega de um evento a uma
// subscription. Entra como "pending" e é drenada pelo delivery worker; sucesso ou
// esgotamento de retries remove a row (o desfecho fica no DeliveryLog).
type DeliveryAttempt struct {
	ID             string     `gorm:"primary_key;type:varchar(36)" json:"id"`
	SubscriptionID string     `gorm:"not null;index" json:"subscription_id"`
	TenantID       string     `gorm:"not null;index" json:"tenant_id"`
	Event          string     `gorm:"not null" json:"event"`
	Payload        string     `gorm:"type:text" json:"payload"`
	AttemptNumber  int        `gorm:"not null;default:1" json:"attempt_number"`
	Status         string     `gorm:"not null;default:'pending';index" json:"status"`
	ScheduledAt    *time.Time `gorm:"index" json:"scheduled_at"`
	CreatedAt      *time.Time `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at"`
}

// DeliveryLog é a trilha de auditoria por tentativa (status HTTP, duração, erro).
// Escrito pelo worker, nunca lido pelo core.
type DeliveryLog struct {
	ID             int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	SubscriptionID string     `gorm:"not null;index" json:"subscription_id"`
	TenantID       string     `gorm:"not null;index" json:"tenant_id"`
	Event          string     `gorm:"not null" json:"event"`
	URL            string     `gorm:"not null" json:"url"`
	Outcome        string     `gorm:"not null;index" json:"outcome"`
	StatusCode     int        `gorm:"not null;default:0" json:"status_code"`
	AttemptNumber  int        `gorm:"not null;default:1" json:"attempt_number"`
	DurationMs     int64      `gorm:"not null;default:0" json:"duration_ms"`
	ErrorMessage   string     `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt      *time.Time `json:"created_at"`
}
