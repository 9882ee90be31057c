package app

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"docvault/internal/util"
	"docvault/pkg/auth"
	"docvault/pkg/domain"
	"docvault/pkg/store"
)

type fakeObjects struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	deleted []string
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{blobs: make(map[string][]byte)}
}

func (f *fakeObjects) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[key] = data
	return "blob-" + key, nil
}

func (f *fakeObjects) SignedDownloadURL(_ context.Context, key, _ string) (string, error) {
	return "https://blobs.test/" + key + "?auth=token", nil
}

func (f *fakeObjects) Delete(_ context.Context, key, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blobs, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func newTestApp(t *testing.T) (*App, *store.MemoryStore, *fakeObjects) {
	t.Helper()
	mem := store.NewMemoryStore()
	objects := newFakeObjects()
	a, err := New(Config{
		Store:       mem,
		Sessions:    store.NewJWTSessionStore("test-secret", time.Hour),
		Objects:     objects,
		DefaultPlan: domain.Plan{ID: "free", Name: "Free", StorageLimitBytes: 5 << 20},
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, mem, objects
}

func seedOwner(t *testing.T, mem *store.MemoryStore, name, phone, pin string) domain.User {
	t.Helper()
	pinHash := ""
	if pin != "" {
		var err error
		pinHash, err = auth.HashPIN(pin)
		if err != nil {
			t.Fatalf("hash pin: %v", err)
		}
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:        util.NewID(),
		Name:      name,
		Email:     name + "@example.com",
		Phone:     phone,
		PINHash:   pinHash,
		PlanID:    "free",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := mem.SaveUser(user); err != nil {
		t.Fatalf("save user: %v", err)
	}
	return user
}

func seedDocument(t *testing.T, mem *store.MemoryStore, ownerID, name string, size int64) domain.Document {
	t.Helper()
	now := time.Now().UTC()
	doc := domain.Document{
		ID:        util.NewID(),
		OwnerID:   ownerID,
		Name:      name,
		MimeType:  "application/pdf",
		SizeBytes: size,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := mem.SaveDocument(doc); err != nil {
		t.Fatalf("save document: %v", err)
	}
	return doc
}
