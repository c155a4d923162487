package delivery

import (
	"errors"
	"path/filepath"
	"testing"

	dbpkg "benemax/db"
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

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	return NewService(ServiceOptions{DB: db}), db
}

func TestRegisterGetRoundTrip(t *testing.T) {
	s, _ := newTestService(t)

	sub, err := s.Register("t1", models.WEBHOOK_EVENT_MESSAGE_RECEIVED, "https://example.com/hook", 3, 2000)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, err := s.Get("t1", sub.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Event != models.WEBHOOK_EVENT_MESSAGE_RECEIVED {
		t.Errorf("Event = %q, want message_received", got.Event)
	}
	if got.URL != "https://example.com/hook" {
		t.Errorf("URL = %q, want https://example.com/hook", got.URL)
	}
	if got.RetryAttempts != 3 || got.RetryDelayMs != 2000 {
		t.Errorf("retry policy = {%d %d}, want {3 2000}", got.RetryAttempts, got.RetryDelayMs)
	}
}

func TestRegisterAppliesDefaults(t *testing.T) {
	s, _ := newTestService(t)

	sub, err := s.Register("t1", models.WEBHOOK_EVENT_CONNECTION_UPDATE, "https://example.com/hook", 0, 0)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if sub.RetryAttempts != 3 || sub.RetryDelayMs != 5000 {
		t.Errorf("defaults = {%d %d}, want {3 5000}", sub.RetryAttempts, sub.RetryDelayMs)
	}
}

func TestRegisterValidatesEventAndURL(t *testing.T) {
	s, _ := newTestService(t)

	var validation models.ValidationError
	if _, err := s.Register("t1", "bogus_event", "https://example.com", 0, 0); !errors.As(err, &validation) {
		t.Errorf("Register() with unknown event error = %v, want ValidationError", err)
	}
	if _, err := s.Register("t1", models.WEBHOOK_EVENT_MESSAGE_STATUS, "ftp://example.com", 0, 0); !errors.As(err, &validation) {
		t.Errorf("Register() with ftp url error = %v, want ValidationError", err)
	}
	if _, err := s.Register("t1", models.WEBHOOK_EVENT_MESSAGE_STATUS, "not a url", 0, 0); !errors.As(err, &validation) {
		t.Errorf("Register() with bad url error = %v, want ValidationError", err)
	}
}

func TestUpdatePatchesExactly(t *testing.T) {
	s, _ := newTestService(t)

	sub, _ := s.Register("t1", models.WEBHOOK_EVENT_MESSAGE_RECEIVED, "https://example.com/hook", 3, 2000)

	attempts, delayMs := 5, 1000
	updated, err := s.Update("t1", sub.ID, UpdateParams{RetryAttempts: &attempts, RetryDelayMs: &delayMs})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.RetryAttempts != 5 || updated.RetryDelayMs != 1000 {
		t.Errorf("retry policy = {%d %d}, want {5 1000}", updated.RetryAttempts, updated.RetryDelayMs)
	}
	// demais campos intocados
	if updated.Event != sub.Event || updated.URL != sub.URL {
		t.Errorf("Update() changed untouched fields: event=%q url=%q", updated.Event, updated.URL)
	}

	got, _ := s.Get("t1", sub.ID)
	if got.RetryAttempts != 5 || got.RetryDelayMs != 1000 {
		t.Errorf("persisted retry policy = {%d %d}, want {5 1000}", got.RetryAttempts, got.RetryDelayMs)
	}
}

func TestGetIsTenantScoped(t *testing.T) {
	s, _ := newTestService(t)
	sub, _ := s.Register("t1", models.WEBHOOK_EVENT_MESSAGE_RECEIVED, "https://example.com/hook", 0, 0)

	var notFound models.NotFoundError
	if _, err := s.Get("t2", sub.ID); !errors.As(err, &notFound) {
		t.Errorf("cross-tenant Get() error = %v, want NotFoundError", err)
	}
	if err := s.Delete("t2", sub.ID); !errors.As(err, &notFound) {
		t.Errorf("cross-tenant Delete() error = %v, want NotFoundError", err)
	}
}

func TestNotifySchedulesAttemptPerMatchingSubscription(t *testing.T) {
	s, db := newTestService(t)

	_, _ = s.Register("t1", models.WEBHOOK_EVENT_MESSAGE_RECEIVED, "https://a.example.com", 0, 0)
	_, _ = s.Register("t1", models.WEBHOOK_EVENT_MESSAGE_RECEIVED, "https://b.example.com", 0, 0)
	_, _ = s.Register("t1", models.WEBHOOK_EVENT_CONNECTION_UPDATE, "https://c.example.com", 0, 0)
	_, _ = s.Register("t2", models.WEBHOOK_EVENT_MESSAGE_RECEIVED, "https://d.example.com", 0, 0)

	s.Notify("t1", models.WEBHOOK_EVENT_MESSAGE_RECEIVED, map[string]any{"hello": "world"})

	var attempts []models.DeliveryAttempt
	if err := db.Find(&attempts).Error; err != nil {
		t.Fatalf("load attempts: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("attempts = %d, want 2 (event+tenant fan-out only)", len(attempts))
	}
	for _, at := range attempts {
		if at.AttemptNumber != 1 {
			t.Errorf("attempt_number = %d, want 1", at.AttemptNumber)
		}
		if at.Status != models.ATTEMPT_STATUS_PENDING {
			t.Errorf("status = %q, want pending", at.Status)
		}
		if at.TenantID != "t1" {
			t.Errorf("tenant_id = %q, want t1", at.TenantID)
		}
	}
}

func TestNotifyWithoutSubscribersIsNoOp(t *testing.T) {
	s, db := newTestService(t)

	s.Notify("t1", models.WEBHOOK_EVENT_MESSAGE_RECEIVED, map[string]any{"x": 1})

	var n int
	_ = db.Model(&models.DeliveryAttempt{}).Count(&n).Error
	if n != 0 {
		t.Errorf("attempts = %d, want 0", n)
	}
}

func TestCacheInvalidationOnUpdate(t *testing.T) {
	s, _ := newTestService(t)

	sub, _ := s.Register("t1", models.WEBHOOK_EVENT_MESSAGE_RECEIVED, "https://old.example.com", 0, 0)

	// primeiro fan-out popula o cache
	subs, err := s.subscriptionsFor("t1", models.WEBHOOK_EVENT_MESSAGE_RECEIVED)
	if err != nil || len(subs) != 1 {
		t.Fatalf("subscriptionsFor() = %v, %v", subs, err)
	}

	newURL := "https://new.example.com"
	if _, err := s.Update("t1", sub.ID, UpdateParams{URL: &newURL}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	subs, err = s.subscriptionsFor("t1", models.WEBHOOK_EVENT_MESSAGE_RECEIVED)
	if err != nil {
		t.Fatalf("subscriptionsFor() error = %v", err)
	}
	if len(subs) != 1 || subs[0].URL != newURL {
		t.Errorf("cached url after update = %v, want %s", subs, newURL)
	}
}

func TestCacheInvalidationOnDelete(t *testing.T) {
	s, _ := newTestService(t)

	sub, _ := s.Register("t1", models.WEBHOOK_EVENT_MESSAGE_RECEIVED, "https://old.example.com", 0, 0)
	if _, err := s.subscriptionsFor("t1", models.WEBHOOK_EVENT_MESSAGE_RECEIVED); err != nil {
		t.Fatalf("subscriptionsFor() error = %v", err)
	}

	if err := s.Delete("t1", sub.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	subs, err := s.subscriptionsFor("t1", models.WEBHOOK_EVENT_MESSAGE_RECEIVED)
	if err != nil {
		t.Fatalf("subscriptionsFor() error = %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("subscriptions after delete = %d, want 0", len(subs))
	}
}
