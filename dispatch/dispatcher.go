package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"benemax/connection"
	"benemax/models"
	"benemax/observe"
	"benemax/tools"
	"benemax/transport"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
)

// TriggerStore resolve bot ids contra o armazenamento de triggers do agente
// (colaborador externo: lookup simples por chave).
type TriggerStore interface {
	Resolve(ctx context.Context, tenantID, botID string) (bool, error)
}

// StaticTriggerStore é um TriggerStore em memória (dev e testes).
type StaticTriggerStore map[string]bool

func (s StaticTriggerStore) Resolve(_ context.Context, _ string, botID string) (bool, error) {
	return s[botID], nil
}

// Dispatcher aceita sends tipados, resolve a instância dona e entrega ao
// transporte. Send devolve assim que a mensagem é ACEITA para despacho
// (dispatch_state=queued); a confirmação chega por polling ou webhook.
type Dispatcher struct {
	db       *gorm.DB
	registry *connection.Registry
	tr       transport.Transport
	triggers TriggerStore
	notifier connection.Notifier
	sink     observe.Sink

	sendTimeout time.Duration
}

type DispatcherOptions struct {
	DB          *gorm.DB
	Registry    *connection.Registry
	Transport   transport.Transport
	Triggers    TriggerStore
	Notifier    connection.Notifier
	Sink        observe.Sink
	SendTimeout time.Duration
}

func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	if opts.Sink == nil {
		opts.Sink = observe.Discard{}
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 60 * time.Second
	}
	return &Dispatcher{
		db:          opts.DB,
		registry:    opts.Registry,
		tr:          opts.Transport,
		triggers:    opts.Triggers,
		notifier:    opts.Notifier,
		sink:        opts.Sink,
		sendTimeout: opts.SendTimeout,
	}
}

// Send valida, registra a mensagem como queued e dispara o envio assíncrono.
// Toda validação acontece antes de criar a row: rejeição não deixa rastro.
// Sends contra a mesma instância correm em paralelo; o transporte daqui não
// exige ordenação por instância.
func (d *Dispatcher) Send(ctx context.Context, tenantID, instanceID, msgType, to string, content json.RawMessage) (models.Message, error) {
	recipient, err := tools.NormalizeRecipient(to)
	if err != nil {
		return models.Message{}, models.ValidationError{Field: "to", Reason: err.Error()}
	}

	canonical, err := normalizeContent(msgType, content)
	if err != nil {
		return models.Message{}, err
	}

	if msgType == models.MESSAGE_TYPE_BOT {
		var c BotContent
		_ = json.Unmarshal(canonical, &c)
		if d.triggers == nil {
			return models.Message{}, models.ValidationError{Field: "content.bot_id", Reason: "no trigger store configured"}
		}
		ok, err := d.triggers.Resolve(ctx, tenantID, c.BotID)
		if err != nil {
			return models.Message{}, err
		}
		if !ok {
			return models.Message{}, models.ValidationError{
				Field:  "content.bot_id",
				Reason: "bot not found in trigger store: " + c.BotID,
			}
		}
	}

	inst, err := d.registry.Get(tenantID, instanceID)
	if err != nil {
		return models.Message{}, err
	}
	if inst.State != models.INSTANCE_STATE_CONNECTED {
		return models.Message{}, models.PreconditionError{
			Reason: "instance is not connected (state " + inst.State + ")",
		}
	}

	msg := models.Message{
		ID:            uuid.NewString(),
		InstanceID:    instanceID,
		TenantID:      tenantID,
		Type:          msgType,
		Recipient:     recipient,
		Content:       string(canonical),
		DispatchState: models.DISPATCH_STATE_QUEUED,
	}
	if d.db != nil {
		if err := d.db.Create(&msg).Error; err != nil {
			return models.Message{}, err
		}
	}

	d.emit(msg)
	go d.deliver(msg, canonical)

	return msg, nil
}

// deliver roda fora da request: entrega ao transporte e fecha o dispatch state.
func (d *Dispatcher) deliver(msg models.Message, content []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
	defer cancel()

	err := d.tr.Send(ctx, msg.InstanceID, msg.Type, msg.Recipient, content)

	// instância deletada no meio do voo: o send é marcado como failed mesmo que
	// o transporte tenha aceitado.
	if _, lookupErr := d.registry.Get(msg.TenantID, msg.InstanceID); lookupErr != nil {
		d.finish(msg, models.DISPATCH_STATE_FAILED, "instance deleted")
		return
	}

	if err != nil {
		d.sink.Record("message_dispatch_failed", map[string]any{
			"message_id":  msg.ID,
			"instance_id": msg.InstanceID,
			"error":       err.Error(),
		})
		d.finish(msg, models.DISPATCH_STATE_FAILED, err.Error())
		return
	}
	d.finish(msg, models.DISPATCH_STATE_SENT, "")
}

func (d *Dispatcher) finish(msg models.Message, state, failReason string) {
	msg.DispatchState = state
	msg.FailReason = failReason
	msg.Attempts = 1

	if d.db != nil {
		err := d.db.Model(&models.Message{}).Where("id = ?", msg.ID).Updates(map[string]any{
			"dispatch_state": state,
			"fail_reason":    failReason,
			"attempts":       1,
		}).Error
		if err != nil {
			d.sink.Record("message_persist_failed", map[string]any{
				"message_id": msg.ID,
				"error":      err.Error(),
			})
		}
	}

	d.emit(msg)
}

func (d *Dispatcher) emit(msg models.Message) {
	if d.notifier == nil {
		return
	}
	d.notifier.Notify(msg.TenantID, models.WEBHOOK_EVENT_MESSAGE_STATUS, models.MessageEvent{
		TenantID:      msg.TenantID,
		InstanceID:    msg.InstanceID,
		MessageID:     msg.ID,
		DispatchState: msg.DispatchState,
		OccurredAt:    time.Now(),
	})
}

// Get devolve uma mensagem do tenant (para polling do dispatch state).
func (d *Dispatcher) Get(tenantID, id string) (models.Message, error) {
	if d.db == nil {
		return models.Message{}, models.NotFoundError{Resource: "message", ID: id}
	}
	var msg models.Message
	err := d.db.Where("tenant_id = ? AND id = ?", tenantID, id).First(&msg).Error
	if err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return models.Message{}, models.NotFoundError{Resource: "message", ID: id}
		}
		return models.Message{}, err
	}
	return msg, nil
}
