package delivery

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"benemax/bus"
	"benemax/models"
	"benemax/observe"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
)

var knownEvents = map[string]bool{
	models.WEBHOOK_EVENT_CONNECTION_UPDATE: true,
	models.WEBHOOK_EVENT_MESSAGE_STATUS:    true,
	models.WEBHOOK_EVENT_MESSAGE_RECEIVED:  true,
}

// Service gerencia subscriptions de webhook e agenda as entregas. O HTTP de
// verdade acontece no delivery worker; Notify só persiste attempts, então um
// subscriber lento nunca atrasa a transição que o disparou.
type Service struct {
	db    *gorm.DB
	cache *subscriptionCache
	bus   bus.Publisher
	sink  observe.Sink

	defaultAttempts int
	defaultDelayMs  int
}

type ServiceOptions struct {
	DB              *gorm.DB
	Bus             bus.Publisher
	Sink            observe.Sink
	DefaultAttempts int
	DefaultDelayMs  int
}

func NewService(opts ServiceOptions) *Service {
	if opts.Sink == nil {
		opts.Sink = observe.Discard{}
	}
	if opts.Bus == nil {
		opts.Bus = bus.NoOp{}
	}
	if opts.DefaultAttempts <= 0 {
		opts.DefaultAttempts = 3
	}
	if opts.DefaultDelayMs <= 0 {
		opts.DefaultDelayMs = 5000
	}
	return &Service{
		db:              opts.DB,
		cache:           newSubscriptionCache(),
		bus:             opts.Bus,
		sink:            opts.Sink,
		defaultAttempts: opts.DefaultAttempts,
		defaultDelayMs:  opts.DefaultDelayMs,
	}
}

func validateTarget(event, rawURL string) error {
	if !knownEvents[event] {
		return models.ValidationError{Field: "event", Reason: "unknown event: " + event}
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return models.ValidationError{Field: "url", Reason: "must be an absolute http(s) url"}
	}
	return nil
}

// Register cria uma subscription para o tenant. Retry policy zerada cai nos
// defaults da config.
func (s *Service) Register(tenantID, event, rawURL string, attempts, delayMs int) (models.WebhookSubscription, error) {
	if strings.TrimSpace(tenantID) == "" {
		return models.WebhookSubscription{}, models.ValidationError{Field: "tenant_id", Reason: "required"}
	}
	if err := validateTarget(event, rawURL); err != nil {
		return models.WebhookSubscription{}, err
	}
	if attempts <= 0 {
		attempts = s.defaultAttempts
	}
	if delayMs <= 0 {
		delayMs = s.defaultDelayMs
	}

	sub := models.WebhookSubscription{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		Event:         event,
		URL:           strings.TrimSpace(rawURL),
		RetryAttempts: attempts,
		RetryDelayMs:  delayMs,
	}
	if err := s.db.Create(&sub).Error; err != nil {
		return models.WebhookSubscription{}, err
	}

	s.cache.invalidate(tenantID, event)
	return sub, nil
}

// Get devolve a subscription do tenant.
func (s *Service) Get(tenantID, id string) (models.WebhookSubscription, error) {
	var sub models.WebhookSubscription
	err := s.db.Where("tenant_id = ? AND id = ?", tenantID, id).First(&sub).Error
	if err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return models.WebhookSubscription{}, models.NotFoundError{Resource: "webhook subscription", ID: id}
		}
		return models.WebhookSubscription{}, err
	}
	return sub, nil
}

// List devolve as subscriptions do tenant.
func (s *Service) List(tenantID string) ([]models.WebhookSubscription, error) {
	var subs []models.WebhookSubscription
	if err := s.db.Where("tenant_id = ?", tenantID).Order("created_at asc").Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

// UpdateParams é o patch parcial de uma subscription. Campos nil ficam como estão.
type UpdateParams struct {
	Event         *string
	URL           *string
	RetryAttempts *int
	RetryDelayMs  *int
}

// Update aplica o patch e invalida o cache dos eventos afetados.
func (s *Service) Update(tenantID, id string, patch UpdateParams) (models.WebhookSubscription, error) {
	sub, err := s.Get(tenantID, id)
	if err != nil {
		return models.WebhookSubscription{}, err
	}

	oldEvent := sub.Event
	if patch.Event != nil {
		sub.Event = *patch.Event
	}
	if patch.URL != nil {
		sub.URL = strings.TrimSpace(*patch.URL)
	}
	if err := validateTarget(sub.Event, sub.URL); err != nil {
		return models.WebhookSubscription{}, err
	}
	if patch.RetryAttempts != nil {
		if *patch.RetryAttempts <= 0 {
			return models.WebhookSubscription{}, models.ValidationError{Field: "retry_attempts", Reason: "must be positive"}
		}
		sub.RetryAttempts = *patch.RetryAttempts
	}
	if patch.RetryDelayMs != nil {
		if *patch.RetryDelayMs < 0 {
			return models.WebhookSubscription{}, models.ValidationError{Field: "retry_delay_ms", Reason: "must not be negative"}
		}
		sub.RetryDelayMs = *patch.RetryDelayMs
	}

	err = s.db.Model(&models.WebhookSubscription{}).Where("id = ?", sub.ID).Updates(map[string]any{
		"event":          sub.Event,
		"url":            sub.URL,
		"retry_attempts": sub.RetryAttempts,
		"retry_delay_ms": sub.RetryDelayMs,
	}).Error
	if err != nil {
		return models.WebhookSubscription{}, err
	}

	s.cache.invalidate(tenantID, oldEvent)
	s.cache.invalidate(tenantID, sub.Event)
	return sub, nil
}

// Delete remove a subscription. Attempts pendentes dela são descartados pelo
// worker quando não conseguirem mais resolver a subscription.
func (s *Service) Delete(tenantID, id string) error {
	sub, err := s.Get(tenantID, id)
	if err != nil {
		return err
	}
	if err := s.db.Delete(&models.WebhookSubscription{}, "id = ?", sub.ID).Error; err != nil {
		return err
	}
	s.cache.invalidate(tenantID, sub.Event)
	return nil
}

// subscriptionsFor resolve o fan-out com cache read-mostly.
func (s *Service) subscriptionsFor(tenantID, event string) ([]models.WebhookSubscription, error) {
	if subs, ok := s.cache.get(tenantID, event); ok {
		return subs, nil
	}

	var subs []models.WebhookSubscription
	if err := s.db.Where("tenant_id = ? AND event = ?", tenantID, event).Find(&subs).Error; err != nil {
		return nil, err
	}
	s.cache.put(tenantID, event, subs)
	return subs, nil
}

// Notify agenda um DeliveryAttempt (attempt=1, scheduled agora) para cada
// subscription que casa com (tenant, event) e publica o evento no bus. Erros
// aqui são reportados no sink e nunca propagados ao caller da transição.
func (s *Service) Notify(tenantID, event string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.sink.Record("webhook_payload_marshal_failed", map[string]any{
			"tenant_id": tenantID,
			"event":     event,
			"error":     err.Error(),
		})
		return
	}

	go s.publish(event, payload)

	if s.db == nil {
		return
	}
	subs, err := s.subscriptionsFor(tenantID, event)
	if err != nil {
		s.sink.Record("webhook_fanout_failed", map[string]any{
			"tenant_id": tenantID,
			"event":     event,
			"error":     err.Error(),
		})
		return
	}

	now := time.Now()
	for _, sub := range subs {
		attempt := models.DeliveryAttempt{
			ID:             uuid.NewString(),
			SubscriptionID: sub.ID,
			TenantID:       tenantID,
			Event:          event,
			Payload:        string(body),
			AttemptNumber:  1,
			Status:         models.ATTEMPT_STATUS_PENDING,
			ScheduledAt:    &now,
		}
		if err := s.db.Create(&attempt).Error; err != nil {
			s.sink.Record("webhook_schedule_failed", map[string]any{
				"subscription_id": sub.ID,
				"event":           event,
				"error":           err.Error(),
			})
		}
	}
}

func (s *Service) publish(event string, payload any) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.bus.Publish(ctx, "benemax."+event, payload); err != nil {
		s.sink.Record("bus_publish_failed", map[string]any{
			"event": event,
			"error": err.Error(),
		})
	}
}
