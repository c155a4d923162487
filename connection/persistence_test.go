package connection

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	dbpkg "benemax/db"
	"benemax/models"
	"benemax/transport"

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

func newPersistentRegistry(t *testing.T, db *gorm.DB) *Registry {
	t.Helper()
	return NewRegistry(RegistryOptions{
		DB:         db,
		Transport:  &transport.Loopback{},
		PairingTTL: time.Minute,
	})
}

func connect(t *testing.T, reg *Registry, tenantID, id string) {
	t.Helper()
	m, err := reg.Machine(tenantID, id)
	if err != nil {
		t.Fatalf("Machine() error = %v", err)
	}
	if _, _, err := m.RequestPairing(context.Background()); err != nil {
		t.Fatalf("RequestPairing() error = %v", err)
	}
	if err := m.HandlePeerHandshake(); err != nil {
		t.Fatalf("HandlePeerHandshake() error = %v", err)
	}
}

func TestNameReuseAfterDeleteWithDB(t *testing.T) {
	db := openTestDB(t)
	reg := newPersistentRegistry(t, db)

	inst, err := reg.Create("t1", "primary")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := reg.Delete("t1", inst.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	// o nome volta a estar livre mesmo com a row antiga persistida
	again, err := reg.Create("t1", "primary")
	if err != nil {
		t.Fatalf("Create() after delete error = %v, want nil", err)
	}
	if again.ID == inst.ID {
		t.Error("Create() after delete reused the old id")
	}

	var n int
	if err := db.Model(&models.Instance{}).Count(&n).Error; err != nil {
		t.Fatalf("count instances: %v", err)
	}
	if n != 2 {
		t.Errorf("instance rows = %d, want 2 (deleted row kept for audit)", n)
	}
}

func TestDuplicateRowMapsToConflict(t *testing.T) {
	db := openTestDB(t)
	reg := newPersistentRegistry(t, db)

	if _, err := reg.Create("t1", "primary"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// registry recém-montado sobre o mesmo DB (sem Restore): o check em memória
	// não vê a instância e o insert esbarra no índice único
	fresh := newPersistentRegistry(t, db)
	_, err := fresh.Create("t1", "primary")
	var conflict models.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Create() over existing row error = %v, want ConflictError", err)
	}
}

func TestTransitionsArePersisted(t *testing.T) {
	db := openTestDB(t)
	reg := newPersistentRegistry(t, db)

	inst, err := reg.Create("t1", "primary")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	connect(t, reg, "t1", inst.ID)

	var row models.Instance
	if err := db.Where("id = ?", inst.ID).First(&row).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if row.State != models.INSTANCE_STATE_CONNECTED {
		t.Errorf("persisted state = %q, want connected", row.State)
	}

	if err := reg.Delete("t1", inst.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := db.Where("id = ?", inst.ID).First(&row).Error; err != nil {
		t.Fatalf("load row after delete: %v", err)
	}
	if row.State != models.INSTANCE_STATE_DELETED {
		t.Errorf("persisted state after delete = %q, want deleted", row.State)
	}
	if row.Name == "primary" {
		t.Errorf("persisted name after delete = %q, want freed for reuse", row.Name)
	}
}

func TestRestoreAfterRestart(t *testing.T) {
	db := openTestDB(t)
	reg := newPersistentRegistry(t, db)

	connected, _ := reg.Create("t1", "connected-one")
	connect(t, reg, "t1", connected.ID)

	fresh, _ := reg.Create("t1", "fresh-one")

	gone, _ := reg.Create("t1", "gone-one")
	if err := reg.Delete("t1", gone.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	// novo processo: registry vazio sobre o mesmo DB
	reborn := newPersistentRegistry(t, db)
	if err := reborn.Restore(); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	// sessão conectada não sobrevive ao restart: volta como disconnected
	got, err := reborn.Get("t1", connected.ID)
	if err != nil {
		t.Fatalf("Get() after restore error = %v", err)
	}
	if got.State != models.INSTANCE_STATE_DISCONNECTED {
		t.Errorf("restored state = %q, want disconnected", got.State)
	}
	var row models.Instance
	if err := db.Where("id = ?", connected.ID).First(&row).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if row.State != models.INSTANCE_STATE_DISCONNECTED {
		t.Errorf("persisted restored state = %q, want disconnected", row.State)
	}

	// created não muda
	if got, err := reborn.Get("t1", fresh.ID); err != nil || got.State != models.INSTANCE_STATE_CREATED {
		t.Errorf("Get(fresh) = %+v, %v, want created", got, err)
	}

	// deletada não volta
	var notFound models.NotFoundError
	if _, err := reborn.Get("t1", gone.ID); !errors.As(err, &notFound) {
		t.Errorf("Get(deleted) after restore error = %v, want NotFoundError", err)
	}

	// e o nome dela pode ser reusado no processo novo
	if _, err := reborn.Create("t1", "gone-one"); err != nil {
		t.Errorf("Create() with deleted name after restore error = %v, want nil", err)
	}

	// instância restaurada pode re-parear
	connect(t, reborn, "t1", connected.ID)
	if got, _ := reborn.Get("t1", connected.ID); got.State != models.INSTANCE_STATE_CONNECTED {
		t.Errorf("state after re-pair = %q, want connected", got.State)
	}
}
