package models

import "time"

// LifecycleEvent é o payload entregue aos subscribers em connection_update.
type LifecycleEvent struct {
	TenantID   string    `json:"tenant_id"`
	InstanceID string    `json:"instance_id"`
	State      string    `json:"state"`
	OccurredAt time.Time `json:"occurred_at"`
}

// MessageEvent é o payload entregue aos subscribers em message_status.
type MessageEvent struct {
	TenantID      string    `json:"tenant_id"`
	InstanceID    string    `json:"instance_id"`
	MessageID     string    `json:"message_id"`
	DispatchState string    `json:"dispatch_state"`
	OccurredAt    time.Time `json:"occurred_at"`
}
