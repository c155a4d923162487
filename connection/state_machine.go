package connection

import (
	"context"
	"sync"
	"time"

	"benemax/models"
	"benemax/observe"
	"benemax/transport"

	"github.com/jinzhu/gorm"
)

// Notifier recebe eventos de lifecycle/mensagem para fan-out (webhooks, bus).
// A implementação não pode bloquear em rede: agendamento apenas.
type Notifier interface {
	Notify(tenantID string, event string, payload any)
}

// StateMachine é o dono do lifecycle de pareamento/sessão de UMA instância.
//
// Transições são serializadas por transMu (nunca duas ao mesmo tempo para a mesma
// instância). Leituras de estado usam só o RWMutex de campos e nunca esperam por
// chamadas de rede em andamento, então o status pode ser consultado em alta
// frequência sem afetar o timing das transições.
type StateMachine struct {
	transMu sync.Mutex   // serializa transições (inclui chamadas de rede)
	mu      sync.RWMutex // guarda os campos abaixo

	id       string
	tenantID string
	name     string

	state         string
	pairingToken  string
	pairingExpiry time.Time
	lastChange    time.Time

	expiryTimer *time.Timer

	db       *gorm.DB
	tr       transport.Transport
	notifier Notifier
	sink     observe.Sink
	ttl      time.Duration
}

// Snapshot devolve a visão atual da instância. Leitura pura, sem efeitos.
func (m *StateMachine) Snapshot() models.Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inst := models.Instance{
		ID:       m.id,
		TenantID: m.tenantID,
		Name:     m.name,
		State:    m.state,
	}
	if !m.lastChange.IsZero() {
		t := m.lastChange
		inst.LastStatusChangeAt = &t
	}
	if m.pairingToken != "" {
		t := m.pairingExpiry
		inst.PairingExpiresAt = &t
	}
	return inst
}

// State devolve só o estado atual.
func (m *StateMachine) State() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// setState muta o estado sob lock de campos, persiste a row e emite o evento de
// lifecycle. Chamado sempre com transMu já em posse.
func (m *StateMachine) setState(state string) {
	now := time.Now()

	m.mu.Lock()
	m.state = state
	m.lastChange = now
	token := m.pairingToken
	var expiry *time.Time
	if token != "" {
		e := m.pairingExpiry
		expiry = &e
	}
	m.mu.Unlock()

	if m.db != nil {
		updates := map[string]any{
			"state":                 state,
			"pairing_token":         token,
			"pairing_expires_at":    expiry,
			"last_status_change_at": &now,
		}
		// deleted libera o nome no índice único (tenant_id, name) para reuso
		if state == models.INSTANCE_STATE_DELETED {
			updates["name"] = m.name + "#" + m.id
		}
		err := m.db.Model(&models.Instance{}).Where("id = ?", m.id).Updates(updates).Error
		if err != nil {
			m.sink.Record("instance_persist_failed", map[string]any{
				"instance_id": m.id,
				"state":       state,
				"error":       err.Error(),
			})
		}
	}

	if m.notifier != nil {
		m.notifier.Notify(m.tenantID, models.WEBHOOK_EVENT_CONNECTION_UPDATE, models.LifecycleEvent{
			TenantID:   m.tenantID,
			InstanceID: m.id,
			State:      state,
			OccurredAt: now,
		})
	}
}

// RequestPairing gera um pairing token single-use e move a instância para "qr".
// Válido só a partir de "created" ou "disconnected"; um token ainda não expirado
// resulta em ConflictError.
func (m *StateMachine) RequestPairing(ctx context.Context) (string, time.Time, error) {
	m.transMu.Lock()
	defer m.transMu.Unlock()

	m.mu.RLock()
	state := m.state
	token := m.pairingToken
	expiry := m.pairingExpiry
	m.mu.RUnlock()

	if state == models.INSTANCE_STATE_DELETED {
		return "", time.Time{}, models.NotFoundError{Resource: "instance", ID: m.id}
	}
	if token != "" && time.Now().Before(expiry) {
		return "", time.Time{}, models.ConflictError{Reason: "pairing already in progress"}
	}
	if state != models.INSTANCE_STATE_CREATED && state != models.INSTANCE_STATE_DISCONNECTED {
		return "", time.Time{}, models.ConflictError{Reason: "instance cannot pair from state " + state}
	}

	newToken, err := m.tr.Pair(ctx, m.id)
	if err != nil {
		return "", time.Time{}, models.TransportError{Reason: err.Error()}
	}

	expiresAt := time.Now().Add(m.ttl)

	m.mu.Lock()
	m.pairingToken = newToken
	m.pairingExpiry = expiresAt
	if m.expiryTimer != nil {
		m.expiryTimer.Stop()
	}
	m.expiryTimer = time.AfterFunc(m.ttl, func() { m.expirePairing(newToken) })
	m.mu.Unlock()

	m.setState(models.INSTANCE_STATE_QR)

	return newToken, expiresAt, nil
}

// expirePairing roda no timer de TTL. Se o token ainda for o vigente e a instância
// continuar em "qr", derruba para "disconnected".
func (m *StateMachine) expirePairing(token string) {
	m.transMu.Lock()
	defer m.transMu.Unlock()

	m.mu.Lock()
	if m.state != models.INSTANCE_STATE_QR || m.pairingToken != token {
		m.mu.Unlock()
		return
	}
	m.pairingToken = ""
	m.expiryTimer = nil
	m.mu.Unlock()

	m.setState(models.INSTANCE_STATE_DISCONNECTED)
}

// HandlePeerHandshake é o evento externo do transporte quando o peer lê o token.
// Move qr -> connecting -> connected, consumindo o token (single-use).
func (m *StateMachine) HandlePeerHandshake() error {
	m.transMu.Lock()
	defer m.transMu.Unlock()

	m.mu.Lock()
	if m.state == models.INSTANCE_STATE_DELETED {
		m.mu.Unlock()
		return models.NotFoundError{Resource: "instance", ID: m.id}
	}
	if m.state != models.INSTANCE_STATE_QR {
		state := m.state
		m.mu.Unlock()
		return models.PreconditionError{Reason: "handshake requires state qr, instance is " + state}
	}
	m.pairingToken = ""
	if m.expiryTimer != nil {
		m.expiryTimer.Stop()
		m.expiryTimer = nil
	}
	m.mu.Unlock()

	m.setState(models.INSTANCE_STATE_CONNECTING)
	m.setState(models.INSTANCE_STATE_CONNECTED)
	return nil
}

// HandlePeerDrop é o evento externo de queda da sessão. A instância sobrevive em
// "disconnected" e pode ser re-pareada. Fora de um estado conectado é no-op.
func (m *StateMachine) HandlePeerDrop() error {
	m.transMu.Lock()
	defer m.transMu.Unlock()

	m.mu.RLock()
	state := m.state
	m.mu.RUnlock()

	if state == models.INSTANCE_STATE_DELETED {
		return models.NotFoundError{Resource: "instance", ID: m.id}
	}
	if state != models.INSTANCE_STATE_CONNECTING && state != models.INSTANCE_STATE_CONNECTED {
		return nil
	}

	m.setState(models.INSTANCE_STATE_DISCONNECTED)
	return nil
}

// Delete move para o estado terminal, invalida o pairing token pendente e cancela
// o timer de expiração. Idempotente: deletar duas vezes não é erro.
func (m *StateMachine) Delete() {
	m.transMu.Lock()
	defer m.transMu.Unlock()

	m.mu.Lock()
	if m.state == models.INSTANCE_STATE_DELETED {
		m.mu.Unlock()
		return
	}
	m.pairingToken = ""
	if m.expiryTimer != nil {
		m.expiryTimer.Stop()
		m.expiryTimer = nil
	}
	m.mu.Unlock()

	m.setState(models.INSTANCE_STATE_DELETED)
}
