package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/edu-admin-console/internal/models"
	"github.com/noah-isme/edu-admin-console/internal/session"
	appErrors "github.com/noah-isme/edu-admin-console/pkg/errors"
)

type fakeAPI struct {
	mu sync.Mutex

	payments []models.Payment
	users    []models.User
	sessions []models.ClassSession
	marks    []models.Mark
	states   []models.State
	batches  []models.Batch
	chat     []models.ChatMessage

	listErr   error
	mutateErr error
	deleteErr func(force bool) error

	calls  map[string]int
	tokens []string
	forced []bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{calls: make(map[string]int)}
}

func (f *fakeAPI) record(ctx context.Context, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	if sess, ok := session.FromContext(ctx); ok {
		f.tokens = append(f.tokens, sess.Token)
	}
}

func (f *fakeAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func list[T any](f *fakeAPI, ctx context.Context, name string, records []T) ([]T, error) {
	f.record(ctx, name)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]T, len(records))
	copy(out, records)
	return out, nil
}

func (f *fakeAPI) mutate(ctx context.Context, name string) error {
	f.record(ctx, name)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mutateErr
}

func (f *fakeAPI) ListPayments(ctx context.Context) ([]models.Payment, error) {
	return list(f, ctx, "payments.list", f.payments)
}

func (f *fakeAPI) ApprovePayment(ctx context.Context, id string) error {
	return f.mutate(ctx, "payments.approve")
}

func (f *fakeAPI) UpdatePayment(ctx context.Context, id string, req models.UpdatePaymentRequest) error {
	return f.mutate(ctx, "payments.update")
}

func (f *fakeAPI) ListUsers(ctx context.Context) ([]models.User, error) {
	return list(f, ctx, "users.list", f.users)
}

func (f *fakeAPI) CreateUser(ctx context.Context, req models.CreateUserRequest) error {
	return f.mutate(ctx, "users.create")
}

func (f *fakeAPI) UpdateUser(ctx context.Context, id string, req models.UpdateUserRequest) error {
	return f.mutate(ctx, "users.update")
}

func (f *fakeAPI) DeleteUser(ctx context.Context, id string, force bool) error {
	f.record(ctx, "users.delete")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forced = append(f.forced, force)
	if f.deleteErr != nil {
		return f.deleteErr(force)
	}
	return nil
}

func (f *fakeAPI) ListSessions(ctx context.Context) ([]models.ClassSession, error) {
	return list(f, ctx, "sessions.list", f.sessions)
}

func (f *fakeAPI) CreateSession(ctx context.Context, req models.CreateSessionRequest) error {
	return f.mutate(ctx, "sessions.create")
}

func (f *fakeAPI) CancelSession(ctx context.Context, id string, req models.CancelSessionRequest) error {
	return f.mutate(ctx, "sessions.cancel")
}

func (f *fakeAPI) ListMarks(ctx context.Context) ([]models.Mark, error) {
	return list(f, ctx, "marks.list", f.marks)
}

func (f *fakeAPI) UpdateMark(ctx context.Context, id string, req models.UpdateMarkRequest) error {
	return f.mutate(ctx, "marks.update")
}

func (f *fakeAPI) ListStates(ctx context.Context) ([]models.State, error) {
	return list(f, ctx, "states.list", f.states)
}

func (f *fakeAPI) ListBatches(ctx context.Context) ([]models.Batch, error) {
	return list(f, ctx, "batches.list", f.batches)
}

func (f *fakeAPI) ListChatMessages(ctx context.Context, batchID string) ([]models.ChatMessage, error) {
	return list(f, ctx, "chat.list", f.chat)
}

func (f *fakeAPI) SendChatMessage(ctx context.Context, req models.SendChatMessageRequest) error {
	return f.mutate(ctx, "chat.send")
}

// memoryCache is an in-process CacheRepository storing JSON like Redis does.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	raw, ok := m.entries[key]
	m.mu.Unlock()
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[key] = raw
	m.mu.Unlock()
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.entries {
		if key == pattern || (strings.HasSuffix(pattern, "*") && strings.HasPrefix(key, prefix)) {
			delete(m.entries, key)
		}
	}
	return nil
}
