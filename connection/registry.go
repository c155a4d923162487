package connection

import (
	"strings"
	"sync"
	"time"

	"benemax/models"
	"benemax/observe"
	"benemax/transport"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
)

// Registry é a coleção de state machines, com escopo por tenant. Toda busca é
// escopada: acesso cross-tenant devolve NotFoundError (nunca Forbidden, para não
// vazar existência de ids de outros tenants).
type Registry struct {
	db       *gorm.DB
	tr       transport.Transport
	notifier Notifier
	sink     observe.Sink
	ttl      time.Duration

	mu       sync.RWMutex
	machines map[string]*StateMachine
}

type RegistryOptions struct {
	DB         *gorm.DB
	Transport  transport.Transport
	Notifier   Notifier
	Sink       observe.Sink
	PairingTTL time.Duration
}

func NewRegistry(opts RegistryOptions) *Registry {
	if opts.Sink == nil {
		opts.Sink = observe.Discard{}
	}
	if opts.PairingTTL <= 0 {
		opts.PairingTTL = 60 * time.Second
	}
	return &Registry{
		db:       opts.DB,
		tr:       opts.Transport,
		notifier: opts.Notifier,
		sink:     opts.Sink,
		ttl:      opts.PairingTTL,
		machines: make(map[string]*StateMachine),
	}
}

// Restore recarrega as instâncias persistidas após um restart. Sessões que
// estavam no meio do pareamento (qr/connecting) voltam como disconnected, já que
// o token não sobrevive ao processo.
func (r *Registry) Restore() error {
	if r.db == nil {
		return nil
	}

	var rows []models.Instance
	if err := r.db.Where("state <> ?", models.INSTANCE_STATE_DELETED).Find(&rows).Error; err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		state := row.State
		if state == models.INSTANCE_STATE_QR || state == models.INSTANCE_STATE_CONNECTING ||
			state == models.INSTANCE_STATE_CONNECTED {
			state = models.INSTANCE_STATE_DISCONNECTED
		}
		m := r.newMachine(row.ID, row.TenantID, row.Name, state)
		r.machines[row.ID] = m
		if state != row.State {
			_ = r.db.Model(&models.Instance{}).Where("id = ?", row.ID).
				Update("state", state).Error
		}
	}
	return nil
}

func (r *Registry) newMachine(id, tenantID, name, state string) *StateMachine {
	return &StateMachine{
		id:       id,
		tenantID: tenantID,
		name:     name,
		state:    state,
		db:       r.db,
		tr:       r.tr,
		notifier: r.notifier,
		sink:     r.sink,
		ttl:      r.ttl,
	}
}

// Create registra uma nova instância em "created". Nome é único dentro do tenant
// (contando só instâncias vivas).
func (r *Registry) Create(tenantID, name string) (models.Instance, error) {
	tenantID = strings.TrimSpace(tenantID)
	name = strings.TrimSpace(name)
	if tenantID == "" {
		return models.Instance{}, models.ValidationError{Field: "tenant_id", Reason: "required"}
	}
	if name == "" {
		return models.Instance{}, models.ValidationError{Field: "name", Reason: "required"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.machines {
		snap := m.Snapshot()
		if snap.TenantID == tenantID && snap.Name == name && snap.Live() {
			return models.Instance{}, models.ConflictError{Reason: "instance name already in use: " + name}
		}
	}

	now := time.Now()
	inst := models.Instance{
		ID:                 uuid.NewString(),
		TenantID:           tenantID,
		Name:               name,
		State:              models.INSTANCE_STATE_CREATED,
		LastStatusChangeAt: &now,
	}
	if r.db != nil {
		if err := r.db.Create(&inst).Error; err != nil {
			if isUniqueViolation(err) {
				return models.Instance{}, models.ConflictError{Reason: "instance name already in use: " + name}
			}
			return models.Instance{}, err
		}
	}

	m := r.newMachine(inst.ID, tenantID, name, models.INSTANCE_STATE_CREATED)
	r.machines[inst.ID] = m

	if r.notifier != nil {
		r.notifier.Notify(tenantID, models.WEBHOOK_EVENT_CONNECTION_UPDATE, models.LifecycleEvent{
			TenantID:   tenantID,
			InstanceID: inst.ID,
			State:      models.INSTANCE_STATE_CREATED,
			OccurredAt: now,
		})
	}

	return inst, nil
}

// isUniqueViolation detecta violação do índice único em qualquer dialeto
// suportado (sqlite: "UNIQUE constraint failed", postgres: "duplicate key").
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

// lookup resolve uma machine viva dentro do tenant. Instância de outro tenant ou
// já deletada é NotFound.
func (r *Registry) lookup(tenantID, id string) (*StateMachine, error) {
	r.mu.RLock()
	m, ok := r.machines[id]
	r.mu.RUnlock()

	if !ok {
		return nil, models.NotFoundError{Resource: "instance", ID: id}
	}
	snap := m.Snapshot()
	if snap.TenantID != tenantID || !snap.Live() {
		return nil, models.NotFoundError{Resource: "instance", ID: id}
	}
	return m, nil
}

// Get devolve o snapshot da instância (tenant-scoped).
func (r *Registry) Get(tenantID, id string) (models.Instance, error) {
	m, err := r.lookup(tenantID, id)
	if err != nil {
		return models.Instance{}, err
	}
	return m.Snapshot(), nil
}

// List devolve as instâncias vivas do tenant.
func (r *Registry) List(tenantID string) []models.Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Instance
	for _, m := range r.machines {
		snap := m.Snapshot()
		if snap.TenantID == tenantID && snap.Live() {
			out = append(out, snap)
		}
	}
	return out
}

// Machine expõe a state machine para quem precisa disparar transições
// (controllers de pairing, callbacks do transporte).
func (r *Registry) Machine(tenantID, id string) (*StateMachine, error) {
	return r.lookup(tenantID, id)
}

// Delete delega para a state machine e mantém a entry no índice: operações
// futuras contra o id devolvem NotFound, inclusive do próprio tenant.
// Idempotente: segunda chamada é no-op sem erro.
func (r *Registry) Delete(tenantID, id string) error {
	r.mu.RLock()
	m, ok := r.machines[id]
	r.mu.RUnlock()

	if !ok {
		return models.NotFoundError{Resource: "instance", ID: id}
	}
	snap := m.Snapshot()
	if snap.TenantID != tenantID {
		return models.NotFoundError{Resource: "instance", ID: id}
	}

	m.Delete()
	return nil
}
