package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-admin-console/internal/dispatch"
	"github.com/noah-isme/edu-admin-console/internal/models"
	"github.com/noah-isme/edu-admin-console/internal/session"
)

// Workspace holds one user's mounted pages.
type Workspace struct {
	userID string

	mu       sync.Mutex
	sess     session.Context
	lastSeen time.Time

	payments *PageView[models.Payment]
	users    *PageView[models.User]
	sessions *PageView[models.ClassSession]
	marks    *PageView[models.Mark]
	chat     *PageView[models.ChatMessage]
	states   *PageView[models.State]
	batches  *PageView[models.Batch]

	deletes *dispatch.DeleteFlow
}

func (s *ViewService) newWorkspace(userID string, sess session.Context) *Workspace {
	ws := &Workspace{
		userID:  userID,
		sess:    sess,
		deletes: dispatch.NewDeleteFlow(s.cfg.ForceDeletePhrase),
	}
	logger := s.logger.With(zap.String("user_id", userID))
	perPage := s.cfg.PageSize
	ws.payments = newPageView(s.payments, perPage, ws.Session, logger, s.metrics)
	ws.users = newPageView(s.users, perPage, ws.Session, logger, s.metrics)
	ws.sessions = newPageView(s.sessions, perPage, ws.Session, logger, s.metrics)
	ws.marks = newPageView(s.marks, perPage, ws.Session, logger, s.metrics)
	ws.chat = newPageView(s.chat, perPage, ws.Session, logger, s.metrics)
	ws.states = newPageView(s.states, perPage, ws.Session, logger, s.metrics)
	ws.batches = newPageView(s.batches, perPage, ws.Session, logger, s.metrics)
	return ws
}

// UserID returns the owner of the workspace.
func (w *Workspace) UserID() string {
	return w.userID
}

// Session returns the latest session the owner presented.
func (w *Workspace) Session() session.Context {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sess
}

func (w *Workspace) touch(sess session.Context, now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if sess.Token != "" {
		w.sess = sess
	}
	w.lastSeen = now
}

func (w *Workspace) idleSince(now time.Time) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return now.Sub(w.lastSeen)
}

// close unmounts every page, stopping live pollers.
func (w *Workspace) close() {
	w.payments.Unmount()
	w.users.Unmount()
	w.sessions.Unmount()
	w.marks.Unmount()
	w.chat.Unmount()
	w.states.Unmount()
	w.batches.Unmount()
}

// WorkspaceFactory builds a workspace for a user.
type WorkspaceFactory func(userID string, sess session.Context) *Workspace

// WorkspaceRegistry tracks workspaces per user and evicts idle ones.
type WorkspaceRegistry struct {
	factory WorkspaceFactory
	idleTTL time.Duration
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	items map[string]*Workspace
}

// NewWorkspaceRegistry constructs a registry. idleTTL <= 0 disables eviction.
func NewWorkspaceRegistry(factory WorkspaceFactory, idleTTL time.Duration, metrics *MetricsService, logger *zap.Logger) *WorkspaceRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkspaceRegistry{
		factory: factory,
		idleTTL: idleTTL,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
		items:   make(map[string]*Workspace),
	}
}

// Context is the parent of every poller started for a workspace. It ends on Close.
func (r *WorkspaceRegistry) Context() context.Context {
	return r.ctx
}

// Acquire returns the user's workspace, creating it on first use, and marks
// it as recently seen. The touch happens under the registry lock so a
// concurrent Sweep cannot evict a workspace that was just handed out.
func (r *WorkspaceRegistry) Acquire(userID string, sess session.Context) *Workspace {
	r.mu.Lock()
	ws, ok := r.items[userID]
	if !ok {
		ws = r.factory(userID, sess)
		r.items[userID] = ws
		r.logger.Debug("workspace created", zap.String("user_id", userID))
	}
	ws.touch(sess, r.now())
	n := len(r.items)
	r.mu.Unlock()

	if !ok {
		r.metrics.SetWorkspaces(n)
	}
	return ws
}

// Release unmounts and forgets the user's workspace.
func (r *WorkspaceRegistry) Release(userID string) bool {
	r.mu.Lock()
	ws, ok := r.items[userID]
	delete(r.items, userID)
	n := len(r.items)
	r.mu.Unlock()
	if !ok {
		return false
	}
	ws.close()
	r.metrics.SetWorkspaces(n)
	return true
}

// Len returns the number of live workspaces.
func (r *WorkspaceRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Sweep evicts workspaces idle for longer than the TTL and returns how many went.
func (r *WorkspaceRegistry) Sweep() int {
	if r.idleTTL <= 0 {
		return 0
	}
	now := r.now()
	var evicted []*Workspace
	r.mu.Lock()
	for id, ws := range r.items {
		if ws.idleSince(now) > r.idleTTL {
			evicted = append(evicted, ws)
			delete(r.items, id)
		}
	}
	n := len(r.items)
	r.mu.Unlock()

	for _, ws := range evicted {
		ws.close()
		r.logger.Info("workspace evicted", zap.String("user_id", ws.userID))
	}
	if len(evicted) > 0 {
		r.metrics.SetWorkspaces(n)
	}
	return len(evicted)
}

// Run sweeps on every interval until ctx ends.
func (r *WorkspaceRegistry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Close unmounts every workspace.
func (r *WorkspaceRegistry) Close() {
	r.cancel()
	r.mu.Lock()
	items := r.items
	r.items = make(map[string]*Workspace)
	r.mu.Unlock()
	for _, ws := range items {
		ws.close()
	}
	r.metrics.SetWorkspaces(0)
}
