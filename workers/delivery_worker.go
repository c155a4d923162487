package workers

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"benemax/bus"
	"benemax/models"
	"benemax/observe"

	"github.com/jinzhu/gorm"
)

// Poster é a fronteira HTTP das entregas de webhook. Timeout e erro de conexão
// contam como falha de tentativa, igual a non-2xx.
type Poster interface {
	Post(ctx context.Context, url string, payload []byte) (int, error)
}

// HTTPPoster implementa Poster com net/http.
type HTTPPoster struct {
	Client *http.Client
}

func NewHTTPPoster(timeout time.Duration) *HTTPPoster {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPPoster{Client: &http.Client{Timeout: timeout}}
}

func (p *HTTPPoster) Post(ctx context.Context, url string, payload []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Benemax/1.0")

	resp, err := p.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// DeliveryWorker drena os DeliveryAttempts vencidos. Vários workers podem rodar
// em paralelo: o claim otimista pending->processing garante que cada attempt tem
// exatamente um dono. Entrega é best-effort/at-least-once: subscribers precisam
// tolerar duplicatas.
type DeliveryWorker struct {
	db     *gorm.DB
	poster Poster
	sink   observe.Sink
	bus    bus.Publisher
	tick   time.Duration

	stop chan struct{}
}

type WorkerOptions struct {
	DB     *gorm.DB
	Poster Poster
	Sink   observe.Sink
	Bus    bus.Publisher
	Tick   time.Duration
}

func NewDeliveryWorker(opts WorkerOptions) *DeliveryWorker {
	if opts.Sink == nil {
		opts.Sink = observe.Discard{}
	}
	if opts.Bus == nil {
		opts.Bus = bus.NoOp{}
	}
	if opts.Tick <= 0 {
		opts.Tick = 500 * time.Millisecond
	}
	if opts.Poster == nil {
		opts.Poster = NewHTTPPoster(30 * time.Second)
	}
	return &DeliveryWorker{
		db:     opts.DB,
		poster: opts.Poster,
		sink:   opts.Sink,
		bus:    opts.Bus,
		tick:   opts.Tick,
		stop:   make(chan struct{}),
	}
}

// Start inicia o loop de drenagem em background.
func (w *DeliveryWorker) Start() {
	go func() {
		ticker := time.NewTicker(w.tick)
		defer ticker.Stop()

		for {
			select {
			case <-w.stop:
				return
			case <-ticker.C:
				w.processDue()
			}
		}
	}()
	log.Printf("delivery worker started (tick %s)", w.tick)
}

func (w *DeliveryWorker) Stop() {
	close(w.stop)
}

func (w *DeliveryWorker) processDue() {
	now := time.Now()

	var attempts []models.DeliveryAttempt
	if err := w.db.
		Where("status = ?", models.ATTEMPT_STATUS_PENDING).
		Where("scheduled_at IS NOT NULL AND scheduled_at <= ?", now).
		Order("scheduled_at asc, id asc").
		Limit(50).
		Find(&attempts).Error; err != nil {
		log.Printf("delivery worker: query error: %v", err)
		return
	}

	for _, at := range attempts {
		// lock otimista: só processa se conseguir mudar status
		res := w.db.Model(&models.DeliveryAttempt{}).
			Where("id = ? AND status = ?", at.ID, models.ATTEMPT_STATUS_PENDING).
			Update("status", models.ATTEMPT_STATUS_PROCESSING)
		if res.Error != nil || res.RowsAffected == 0 {
			continue
		}

		go w.handleAttempt(at.ID)
	}
}

func (w *DeliveryWorker) handleAttempt(attemptID string) {
	var at models.DeliveryAttempt
	if err := w.db.Where("id = ?", attemptID).First(&at).Error; err != nil {
		return
	}
	if at.Status != models.ATTEMPT_STATUS_PROCESSING {
		return
	}

	var sub models.WebhookSubscription
	if err := w.db.Where("id = ?", at.SubscriptionID).First(&sub).Error; err != nil {
		// subscription removida depois do agendamento: descarta o attempt
		w.sink.Record("webhook_subscription_gone", map[string]any{
			"subscription_id": at.SubscriptionID,
			"event":           at.Event,
		})
		w.discard(at)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	start := time.Now()
	status, err := w.poster.Post(ctx, sub.URL, []byte(at.Payload))
	duration := time.Since(start).Milliseconds()

	if err == nil && status >= 200 && status < 300 {
		w.addLog(at, sub, models.DELIVERY_OUTCOME_SUCCESS, status, duration, "")
		w.discard(at)
		return
	}

	errMsg := fmt.Sprintf("HTTP %d", status)
	if err != nil {
		errMsg = err.Error()
	}
	w.addLog(at, sub, models.DELIVERY_OUTCOME_ERROR, status, duration, errMsg)

	if at.AttemptNumber >= sub.RetryAttempts {
		w.exhaust(at, sub, errMsg)
		return
	}

	// backoff linear: próxima tentativa em attemptNumber × delay
	delay := time.Duration(at.AttemptNumber*sub.RetryDelayMs) * time.Millisecond
	next := time.Now().Add(delay)
	updErr := w.db.Model(&models.DeliveryAttempt{}).Where("id = ?", at.ID).Updates(map[string]any{
		"attempt_number": at.AttemptNumber + 1,
		"status":         models.ATTEMPT_STATUS_PENDING,
		"scheduled_at":   &next,
	}).Error
	if updErr != nil {
		log.Printf("delivery worker: reschedule error: %v", updErr)
	}
}

// exhaust marca a entrega como permanentemente falhada: trilha de auditoria,
// sink e bus. Nunca escala para quem disparou o notify.
func (w *DeliveryWorker) exhaust(at models.DeliveryAttempt, sub models.WebhookSubscription, lastErr string) {
	w.addLog(at, sub, models.DELIVERY_OUTCOME_EXHAUSTED, 0, 0, lastErr)

	exhausted := models.DeliveryExhaustedError{
		SubscriptionID: sub.ID,
		Event:          at.Event,
		Attempts:       at.AttemptNumber,
	}
	w.sink.Record("delivery_exhausted", map[string]any{
		"subscription_id": sub.ID,
		"event":           at.Event,
		"attempts":        at.AttemptNumber,
		"error":           exhausted.Error(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.bus.Publish(ctx, "benemax.webhook.exhausted", map[string]any{
		"subscription_id": sub.ID,
		"tenant_id":       at.TenantID,
		"event":           at.Event,
		"attempts":        at.AttemptNumber,
		"last_error":      lastErr,
	}); err != nil {
		w.sink.Record("bus_publish_failed", map[string]any{"event": "webhook.exhausted", "error": err.Error()})
	}

	w.discard(at)
}

func (w *DeliveryWorker) discard(at models.DeliveryAttempt) {
	if err := w.db.Delete(&models.DeliveryAttempt{}, "id = ?", at.ID).Error; err != nil {
		log.Printf("delivery worker: discard error: %v", err)
	}
}

func (w *DeliveryWorker) addLog(at models.DeliveryAttempt, sub models.WebhookSubscription, outcome string, status int, durationMs int64, errMsg string) {
	entry := models.DeliveryLog{
		SubscriptionID: sub.ID,
		TenantID:       at.TenantID,
		Event:          at.Event,
		URL:            sub.URL,
		Outcome:        outcome,
		StatusCode:     status,
		AttemptNumber:  at.AttemptNumber,
		DurationMs:     durationMs,
		ErrorMessage:   errMsg,
	}
	if err := w.db.Create(&entry).Error; err != nil {
		log.Printf("delivery worker: audit log error: %v", err)
	}
}
