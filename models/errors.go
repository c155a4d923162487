package models

import "fmt"

// Error taxonomy do core. Controllers mapeiam esses tipos para códigos HTTP;
// dentro do core eles são comparados com errors.As.

// NotFoundError cobre id desconhecido e acesso cross-tenant (mesma resposta para
// não vazar existência).
type NotFoundError struct {
	Resource string
	ID       string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ConflictError cobre nome duplicado no tenant e pairing já em andamento.
type ConflictError struct {
	Reason string
}

func (e ConflictError) Error() string { return e.Reason }

// ValidationError é input malformado, rejeitado antes de qualquer mutação.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UnsupportedTypeError é um tipo de mensagem fora do conjunto fechado. Separado
// de ValidationError para facilitar diagnóstico (type errado vs content errado).
type UnsupportedTypeError struct {
	Type string
}

func (e UnsupportedTypeError) Error() string {
	return "unsupported message type: " + e.Type
}

// PreconditionError indica estado incompatível com a operação (ex: send com
// instância fora de "connected").
type PreconditionError struct {
	Reason string
}

func (e PreconditionError) Error() string { return e.Reason }

// TransportError é falha do canal subjacente; a instância permanece no último
// estado conhecido e o caller pode tentar de novo.
type TransportError struct {
	Reason string
}

func (e TransportError) Error() string { return "transport: " + e.Reason }

// DeliveryExhaustedError indica retries de webhook esgotados. Vai para a trilha
// de auditoria, nunca para o caller que disparou o notify.
type DeliveryExhaustedError struct {
	SubscriptionID string
	Event          string
	Attempts       int
}

func (e DeliveryExhaustedError) Error() string {
	return fmt.Sprintf("webhook delivery exhausted after %d attempts (subscription=%s event=%s)",
		e.Attempts, e.SubscriptionID, e.Event)
}
