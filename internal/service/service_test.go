package service_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/vince/internal/cache"
	"github.com/kiranshivaraju/vince/internal/credential"
	"github.com/kiranshivaraju/vince/internal/store"
	"github.com/kiranshivaraju/vince/pkg/models"
	"github.com/stretchr/testify/require"
)

// newStore returns an in-memory SQLite store.
func newStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// --- Store wrappers ---

// countingStore records hash lookups so tests can assert the store was not consulted.
type countingStore struct {
	store.Store
	mu      sync.Mutex
	lookups int
}

func (s *countingStore) GetAPIKeyByHash(ctx context.Context, keyHash string) (*models.APIKeyWithApplication, error) {
	s.mu.Lock()
	s.lookups++
	s.mu.Unlock()
	return s.Store.GetAPIKeyByHash(ctx, keyHash)
}

func (s *countingStore) Lookups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups
}

// failingStore injects an error into selected write paths.
type failingStore struct {
	store.Store
	failPrefixUpdate bool
	failSessions     bool
}

var errInjected = errors.New("injected failure")

func (s *failingStore) UpdateApplicationKeyPrefix(ctx context.Context, id uuid.UUID, keyPrefix string) error {
	if s.failPrefixUpdate {
		return errInjected
	}
	return s.Store.UpdateApplicationKeyPrefix(ctx, id, keyPrefix)
}

func (s *failingStore) CreateSession(ctx context.Context, session *models.AdminSession) error {
	if s.failSessions {
		return errInjected
	}
	return s.Store.CreateSession(ctx, session)
}

// pausingStore holds one GetServiceCredential call, after the row has been
// read, until release is closed.
type pausingStore struct {
	store.Store
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func newPausingStore(s store.Store) *pausingStore {
	return &pausingStore{Store: s, entered: make(chan struct{}), release: make(chan struct{})}
}

func (s *pausingStore) GetServiceCredential(ctx context.Context) (*models.ServiceCredential, error) {
	cred, err := s.Store.GetServiceCredential(ctx)
	if s.armed.CompareAndSwap(true, false) {
		close(s.entered)
		<-s.release
	}
	return cred, err
}

// --- Mock Cache ---

// mockCache keeps one versioned service-key entry and, like RedisCache,
// refuses to replace it with an older version.
type mockCache struct {
	mu      sync.Mutex
	version int64
	hash    string
	found   bool
	getErr  error
	setErr  error
	deletes []string
}

var _ cache.Cache = (*mockCache)(nil)

func newMockCache() *mockCache {
	return &mockCache{}
}

func (m *mockCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if key == cache.ServiceKeyHashKey() {
		m.found = false
	}
	m.deletes = append(m.deletes, key)
	return nil
}

func (m *mockCache) Ping(_ context.Context) error { return nil }
func (m *mockCache) Close() error                 { return nil }

func (m *mockCache) SetServiceKeyHash(_ context.Context, version int64, keyHash string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return false, m.setErr
	}
	if m.found && m.version > version {
		return false, nil
	}
	m.version, m.hash, m.found = version, keyHash, true
	return true, nil
}

func (m *mockCache) GetServiceKeyHash(_ context.Context) (int64, string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return 0, "", false, m.getErr
	}
	return m.version, m.hash, m.found, nil
}

func (m *mockCache) cached() (int64, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version, m.hash, m.found
}

func (m *mockCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

// --- helpers ---

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

// withBrokenEntropy makes the credential generator fail for the rest of the test.
func withBrokenEntropy(t *testing.T) {
	t.Helper()
	prev := credential.Reader
	credential.Reader = failingReader{}
	t.Cleanup(func() { credential.Reader = prev })
}

func strPtr(s string) *string { return &s }
