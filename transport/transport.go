package transport

import "context"

// Transport é o canal subjacente com a rede de mensagens. O core consome só essa
// interface; a implementação real fica em whatsapp.go e os testes usam fakes.
type Transport interface {
	// Pair solicita um pairing token (QR-equivalente) para a instância.
	Pair(ctx context.Context, instanceID string) (string, error)

	// Send entrega uma mensagem já validada. Content chega serializado em JSON.
	Send(ctx context.Context, instanceID string, msgType string, to string, content []byte) error
}
