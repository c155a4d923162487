package transport

import (
	"context"
	"log"

	"benemax/tools"
)

// Loopback é um transporte que aceita tudo sem sair do processo. Usado em dev
// (POC sem WhatsApp configurado) e nos testes.
type Loopback struct {
	// PairErr/SendErr, quando setados, fazem a chamada correspondente falhar.
	PairErr error
	SendErr error
}

func (l *Loopback) Pair(_ context.Context, instanceID string) (string, error) {
	if l.PairErr != nil {
		return "", l.PairErr
	}
	token := tools.RandomString(8)
	log.Printf("[loopback] pair instance=%s token=%s", instanceID, token)
	return token, nil
}

func (l *Loopback) Send(_ context.Context, instanceID, msgType, to string, _ []byte) error {
	if l.SendErr != nil {
		return l.SendErr
	}
	log.Printf("[loopback] send instance=%s type=%s to=%s", instanceID, msgType, to)
	return nil
}
