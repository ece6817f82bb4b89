package keyinfo

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/yndnr/sevault-go/internal/core/domain"
	"github.com/yndnr/sevault-go/internal/storage"
)

// fakeEngine is an in-memory KVEngine for tests.
type fakeEngine struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{data: make(map[string][]byte)}
}

func (e *fakeEngine) Get(_ context.Context, key []byte) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	value, ok := e.data[string(key)]
	if !ok {
		return nil, storage.ErrKeyNotFound
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	return cp, nil
}

func (e *fakeEngine) Set(_ context.Context, key, value []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp := make([]byte, len(value))
	copy(cp, value)
	e.data[string(key)] = cp
	return nil
}

func (e *fakeEngine) Delete(_ context.Context, key []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.data, string(key))
	return nil
}

func (e *fakeEngine) Scan(_ context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var keys []string
	for k := range e.data {
		if strings.HasPrefix(k, string(prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		if !fn([]byte(k), e.data[k]) {
			break
		}
	}
	return nil
}

func (e *fakeEngine) SaveSnapshot(_ context.Context) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (e *fakeEngine) LoadSnapshot(_ context.Context, _ io.Reader) error {
	return errors.New("not implemented")
}

func (e *fakeEngine) GC(_ context.Context) (uint64, error) { return 0, nil }

func (e *fakeEngine) Stats(_ context.Context) (*storage.KVStats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return &storage.KVStats{TotalKeys: uint64(len(e.data))}, nil
}

func (e *fakeEngine) Close() error { return nil }

func testAttributes() domain.KeyAttributes {
	return domain.KeyAttributes{
		Type: domain.KeyTypeAES,
		Bits: 256,
		Usage: domain.UsageFlags{
			Encrypt: true,
			Decrypt: true,
		},
		Algorithm: domain.FamilyAeadGCM,
	}
}

func TestKeyInfoStore_PutAndGet(t *testing.T) {
	store := NewKeyInfoStore(newFakeEngine())
	ctx := context.Background()

	triple := domain.NewKeyTriple("sva-test", "orders")
	info := domain.NewKeyInfo(triple, 3, testAttributes())

	if err := store.PutKeyInfo(ctx, info); err != nil {
		t.Fatalf("PutKeyInfo failed: %v", err)
	}

	got, err := store.GetKeyInfo(ctx, triple)
	if err != nil {
		t.Fatalf("GetKeyInfo failed: %v", err)
	}

	if got.Triple != triple {
		t.Errorf("expected triple %v, got %v", triple, got.Triple)
	}
	if got.Slot != 3 {
		t.Errorf("expected slot 3, got %d", got.Slot)
	}
	if got.Attributes.Bits != 256 {
		t.Errorf("expected 256 bits, got %d", got.Attributes.Bits)
	}
	if got.Attributes.Algorithm != domain.FamilyAeadGCM {
		t.Errorf("expected gcm family, got %s", got.Attributes.Algorithm)
	}
	if got.CreatedAt == 0 {
		t.Error("expected created_at to survive the round trip")
	}
}

func TestKeyInfoStore_PutDuplicate(t *testing.T) {
	store := NewKeyInfoStore(newFakeEngine())
	ctx := context.Background()

	triple := domain.NewKeyTriple("sva-test", "orders")

	if err := store.PutKeyInfo(ctx, domain.NewKeyInfo(triple, 1, testAttributes())); err != nil {
		t.Fatalf("first PutKeyInfo failed: %v", err)
	}

	err := store.PutKeyInfo(ctx, domain.NewKeyInfo(triple, 2, testAttributes()))
	if !errors.Is(err, domain.ErrKeyExists) {
		t.Errorf("expected ErrKeyExists, got %v", err)
	}

	// The original record must be untouched.
	got, err := store.GetKeyInfo(ctx, triple)
	if err != nil {
		t.Fatal(err)
	}
	if got.Slot != 1 {
		t.Errorf("expected original slot 1, got %d", got.Slot)
	}
}

func TestKeyInfoStore_GetMissing(t *testing.T) {
	store := NewKeyInfoStore(newFakeEngine())

	_, err := store.GetKeyInfo(context.Background(), domain.NewKeyTriple("sva-test", "missing"))
	if !errors.Is(err, domain.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestKeyInfoStore_Delete(t *testing.T) {
	store := NewKeyInfoStore(newFakeEngine())
	ctx := context.Background()

	triple := domain.NewKeyTriple("sva-test", "orders")
	if err := store.PutKeyInfo(ctx, domain.NewKeyInfo(triple, 1, testAttributes())); err != nil {
		t.Fatal(err)
	}

	if err := store.DeleteKeyInfo(ctx, triple); err != nil {
		t.Fatalf("DeleteKeyInfo failed: %v", err)
	}

	if _, err := store.GetKeyInfo(ctx, triple); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound after delete, got %v", err)
	}

	err := store.DeleteKeyInfo(ctx, triple)
	if !errors.Is(err, domain.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound for second delete, got %v", err)
	}
}

func TestKeyInfoStore_List(t *testing.T) {
	store := NewKeyInfoStore(newFakeEngine())
	ctx := context.Background()

	for slot, name := range []string{"orders", "invoices"} {
		triple := domain.NewKeyTriple("sva-one", name)
		if err := store.PutKeyInfo(ctx, domain.NewKeyInfo(triple, uint8(slot), testAttributes())); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.PutKeyInfo(ctx, domain.NewKeyInfo(domain.NewKeyTriple("sva-two", "orders"), 2, testAttributes())); err != nil {
		t.Fatal(err)
	}

	t.Run("per application", func(t *testing.T) {
		infos, err := store.ListKeyInfos(ctx, "sva-one")
		if err != nil {
			t.Fatal(err)
		}
		if len(infos) != 2 {
			t.Errorf("expected 2 records for sva-one, got %d", len(infos))
		}
		for _, info := range infos {
			if info.Triple.App != "sva-one" {
				t.Errorf("record for wrong app: %s", info.Triple)
			}
		}
	})

	t.Run("all applications", func(t *testing.T) {
		infos, err := store.ListAllKeyInfos(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(infos) != 3 {
			t.Errorf("expected 3 records total, got %d", len(infos))
		}
	})

	t.Run("empty application", func(t *testing.T) {
		infos, err := store.ListKeyInfos(ctx, "sva-none")
		if err != nil {
			t.Fatal(err)
		}
		if len(infos) != 0 {
			t.Errorf("expected no records, got %d", len(infos))
		}
	})
}

func TestKeyInfoStore_ListPrefixBoundary(t *testing.T) {
	store := NewKeyInfoStore(newFakeEngine())
	ctx := context.Background()

	// "sva-1" must not see records owned by "sva-10".
	if err := store.PutKeyInfo(ctx, domain.NewKeyInfo(domain.NewKeyTriple("sva-1", "orders"), 1, testAttributes())); err != nil {
		t.Fatal(err)
	}
	if err := store.PutKeyInfo(ctx, domain.NewKeyInfo(domain.NewKeyTriple("sva-10", "orders"), 2, testAttributes())); err != nil {
		t.Fatal(err)
	}

	infos, err := store.ListKeyInfos(ctx, "sva-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected 1 record, got %d", len(infos))
	}
	if infos[0].Triple.App != "sva-1" {
		t.Errorf("expected sva-1 record, got %s", infos[0].Triple)
	}
}

func TestApplicationStore_CreateAndGet(t *testing.T) {
	store := NewApplicationStore(newFakeEngine())
	ctx := context.Background()

	app, _, err := domain.NewApplication("payments-backend", domain.RoleClient)
	if err != nil {
		t.Fatal(err)
	}
	app.Allowlist = []string{"10.0.0.0/8"}

	if err := store.Create(ctx, app); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.Get(ctx, app.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got.ID != app.ID {
		t.Errorf("expected ID %s, got %s", app.ID, got.ID)
	}
	if got.Name != "payments-backend" {
		t.Errorf("expected name payments-backend, got %s", got.Name)
	}
	// SecretHash is json:"-" on the domain struct; the store must
	// persist it anyway or authentication breaks after a restart.
	if got.SecretHash != app.SecretHash {
		t.Error("expected secret hash to survive the round trip")
	}
	if got.Role != domain.RoleClient {
		t.Errorf("expected client role, got %s", got.Role)
	}
	if len(got.Allowlist) != 1 || got.Allowlist[0] != "10.0.0.0/8" {
		t.Errorf("expected allowlist round trip, got %v", got.Allowlist)
	}
	if got.Version != app.Version {
		t.Errorf("expected version %d, got %d", app.Version, got.Version)
	}
}

func TestApplicationStore_CreateDuplicate(t *testing.T) {
	store := NewApplicationStore(newFakeEngine())
	ctx := context.Background()

	app, _, err := domain.NewApplication("dup", domain.RoleClient)
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Create(ctx, app); err != nil {
		t.Fatal(err)
	}

	err = store.Create(ctx, app)
	if !errors.Is(err, domain.ErrApplicationConflict) {
		t.Errorf("expected ErrApplicationConflict, got %v", err)
	}
}

func TestApplicationStore_Update(t *testing.T) {
	store := NewApplicationStore(newFakeEngine())
	ctx := context.Background()

	app, _, err := domain.NewApplication("to-update", domain.RoleClient)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Create(ctx, app); err != nil {
		t.Fatal(err)
	}

	t.Run("update existing", func(t *testing.T) {
		app.Status = domain.AppStatusDisabled
		app.IncrVersion()

		if err := store.Update(ctx, app); err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		got, err := store.Get(ctx, app.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != domain.AppStatusDisabled {
			t.Errorf("expected disabled status, got %s", got.Status)
		}
		if got.Version != app.Version {
			t.Errorf("expected version %d, got %d", app.Version, got.Version)
		}
	})

	t.Run("update missing", func(t *testing.T) {
		other, _, err := domain.NewApplication("never-stored", domain.RoleClient)
		if err != nil {
			t.Fatal(err)
		}

		err = store.Update(ctx, other)
		if !errors.Is(err, domain.ErrApplicationNotFound) {
			t.Errorf("expected ErrApplicationNotFound, got %v", err)
		}
	})
}

func TestApplicationStore_Delete(t *testing.T) {
	store := NewApplicationStore(newFakeEngine())
	ctx := context.Background()

	app, _, err := domain.NewApplication("to-delete", domain.RoleClient)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Create(ctx, app); err != nil {
		t.Fatal(err)
	}

	if err := store.Delete(ctx, app.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := store.Get(ctx, app.ID); !errors.Is(err, domain.ErrApplicationNotFound) {
		t.Errorf("expected ErrApplicationNotFound after delete, got %v", err)
	}

	err = store.Delete(ctx, app.ID)
	if !errors.Is(err, domain.ErrApplicationNotFound) {
		t.Errorf("expected ErrApplicationNotFound for second delete, got %v", err)
	}
}

func TestApplicationStore_List(t *testing.T) {
	store := NewApplicationStore(newFakeEngine())
	ctx := context.Background()

	for _, name := range []string{"app-a", "app-b", "app-c"} {
		app, _, err := domain.NewApplication(name, domain.RoleClient)
		if err != nil {
			t.Fatal(err)
		}
		if err := store.Create(ctx, app); err != nil {
			t.Fatal(err)
		}
	}

	apps, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(apps) != 3 {
		t.Errorf("expected 3 applications, got %d", len(apps))
	}
}

func TestApplicationStore_RotationFieldsSurviveRestart(t *testing.T) {
	engine := newFakeEngine()
	ctx := context.Background()

	app, _, err := domain.NewApplication("rotating", domain.RoleClient)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := app.RotateSecret(); err != nil {
		t.Fatal(err)
	}

	if err := NewApplicationStore(engine).Create(ctx, app); err != nil {
		t.Fatal(err)
	}

	// A fresh store over the same engine stands in for a process restart.
	got, err := NewApplicationStore(engine).Get(ctx, app.ID)
	if err != nil {
		t.Fatal(err)
	}

	if got.OldSecretHash != app.OldSecretHash {
		t.Error("expected old secret hash to survive")
	}
	if got.GracePeriodEnd != app.GracePeriodEnd {
		t.Errorf("expected grace period end %d, got %d", app.GracePeriodEnd, got.GracePeriodEnd)
	}
}
