package workers

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	dbpkg "benemax/db"
	"benemax/delivery"
	"benemax/models"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.LogMode(false)
	dbpkg.Migrate(db)
	t.Cleanup(func() { db.Close() })
	return db
}

// fakePoster devolve o mesmo status para todo POST e registra os instantes.
type fakePoster struct {
	mu     sync.Mutex
	status int
	err    error
	calls  []time.Time
	urls   []string
}

func (p *fakePoster) Post(_ context.Context, url string, _ []byte) (int, error) {
	p.mu.Lock()
	p.calls = append(p.calls, time.Now())
	p.urls = append(p.urls, url)
	p.mu.Unlock()
	return p.status, p.err
}

func (p *fakePoster) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *fakePoster) callTimes() []time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]time.Time, len(p.calls))
	copy(out, p.calls)
	return out
}

// drive roda processDue em loop até cond devolver true ou estourar o deadline.
func drive(t *testing.T, w *DeliveryWorker, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		w.processDue()
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not reached within %s", timeout)
}

func countRows(t *testing.T, db *gorm.DB, model any, where string, args ...any) int {
	t.Helper()
	var n int
	q := db.Model(model)
	if where != "" {
		q = q.Where(where, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestSuccessfulDeliveryDiscardsAttempt(t *testing.T) {
	db := openTestDB(t)
	svc := delivery.NewService(delivery.ServiceOptions{DB: db})
	poster := &fakePoster{status: 200}
	w := NewDeliveryWorker(WorkerOptions{DB: db, Poster: poster})

	if _, err := svc.Register("t1", models.WEBHOOK_EVENT_MESSAGE_STATUS, "https://hook.example.com", 3, 50); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	svc.Notify("t1", models.WEBHOOK_EVENT_MESSAGE_STATUS, map[string]any{"x": 1})

	drive(t, w, 2*time.Second, func() bool {
		return countRows(t, db, &models.DeliveryAttempt{}, "") == 0
	})

	if got := poster.callCount(); got != 1 {
		t.Errorf("posts = %d, want 1", got)
	}
	if n := countRows(t, db, &models.DeliveryLog{}, "outcome = ?", models.DELIVERY_OUTCOME_SUCCESS); n != 1 {
		t.Errorf("success log rows = %d, want 1", n)
	}
}

func TestRetriesWithLinearBackoffThenExhausts(t *testing.T) {
	db := openTestDB(t)
	svc := delivery.NewService(delivery.ServiceOptions{DB: db})
	poster := &fakePoster{status: 500}
	w := NewDeliveryWorker(WorkerOptions{DB: db, Poster: poster})

	delayMs := 60
	if _, err := svc.Register("t1", models.WEBHOOK_EVENT_MESSAGE_RECEIVED, "https://hook.example.com", 3, delayMs); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	svc.Notify("t1", models.WEBHOOK_EVENT_MESSAGE_RECEIVED, map[string]any{"x": 1})

	drive(t, w, 5*time.Second, func() bool {
		return countRows(t, db, &models.DeliveryLog{}, "outcome = ?", models.DELIVERY_OUTCOME_EXHAUSTED) == 1
	})

	// espera extra para garantir que não há 4a tentativa
	time.Sleep(time.Duration(4*delayMs) * time.Millisecond)
	w.processDue()
	time.Sleep(20 * time.Millisecond)

	if got := poster.callCount(); got != 3 {
		t.Fatalf("posts = %d, want exactly 3 (no 4th attempt)", got)
	}
	if n := countRows(t, db, &models.DeliveryAttempt{}, ""); n != 0 {
		t.Errorf("attempt rows = %d, want 0 after exhaustion", n)
	}
	if n := countRows(t, db, &models.DeliveryLog{}, "outcome = ?", models.DELIVERY_OUTCOME_ERROR); n != 3 {
		t.Errorf("error log rows = %d, want 3", n)
	}

	// backoff linear: gaps crescentes (1x, 2x o delay)
	calls := poster.callTimes()
	if len(calls) == 3 {
		gap1 := calls[1].Sub(calls[0])
		gap2 := calls[2].Sub(calls[1])
		if gap1 < time.Duration(delayMs)*time.Millisecond {
			t.Errorf("gap before attempt 2 = %s, want >= %dms", gap1, delayMs)
		}
		if gap2 < time.Duration(2*delayMs)*time.Millisecond {
			t.Errorf("gap before attempt 3 = %s, want >= %dms", gap2, 2*delayMs)
		}
	}
}

func TestConnectionErrorCountsAsFailedAttempt(t *testing.T) {
	db := openTestDB(t)
	svc := delivery.NewService(delivery.ServiceOptions{DB: db})
	poster := &fakePoster{status: 0, err: context.DeadlineExceeded}
	w := NewDeliveryWorker(WorkerOptions{DB: db, Poster: poster})

	if _, err := svc.Register("t1", models.WEBHOOK_EVENT_MESSAGE_RECEIVED, "https://hook.example.com", 2, 20); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	svc.Notify("t1", models.WEBHOOK_EVENT_MESSAGE_RECEIVED, map[string]any{"x": 1})

	drive(t, w, 3*time.Second, func() bool {
		return countRows(t, db, &models.DeliveryLog{}, "outcome = ?", models.DELIVERY_OUTCOME_EXHAUSTED) == 1
	})

	if got := poster.callCount(); got != 2 {
		t.Errorf("posts = %d, want 2", got)
	}
}

func TestAttemptForDeletedSubscriptionIsDiscarded(t *testing.T) {
	db := openTestDB(t)
	svc := delivery.NewService(delivery.ServiceOptions{DB: db})
	poster := &fakePoster{status: 200}
	w := NewDeliveryWorker(WorkerOptions{DB: db, Poster: poster})

	sub, _ := svc.Register("t1", models.WEBHOOK_EVENT_MESSAGE_RECEIVED, "https://hook.example.com", 3, 20)
	svc.Notify("t1", models.WEBHOOK_EVENT_MESSAGE_RECEIVED, map[string]any{"x": 1})

	if err := svc.Delete("t1", sub.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	drive(t, w, 2*time.Second, func() bool {
		return countRows(t, db, &models.DeliveryAttempt{}, "") == 0
	})

	if got := poster.callCount(); got != 0 {
		t.Errorf("posts = %d, want 0 (subscription gone)", got)
	}
}
