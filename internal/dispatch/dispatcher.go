// Package dispatch wraps every write the console sends upstream: it asks for
// confirmation, holds a per-record submission lock, runs the call, refetches
// the affected page and journals the outcome.
package dispatch

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-admin-console/internal/models"
	appErrors "github.com/noah-isme/edu-admin-console/pkg/errors"
)

const (
	defaultLockTTL     = 30 * time.Second
	journalTimeout     = 3 * time.Second
	referenceMarker    = "referenced in:"
	outcomeSucceeded   = "succeeded"
	outcomeFailed      = "failed"
	outcomeDeclined    = "declined"
	outcomeConflict    = "conflict"
	outcomeBusy        = "in_flight"
	lockKeyPrefix      = "dispatch:lock:"
	anonymousRecordKey = "-"
)

// Action names one mutation on one record.
type Action struct {
	Page     string
	Name     string
	RecordID string
	// Destructive actions require a positive answer from the Confirmer.
	Destructive bool
	Prompt      string
}

// Confirmer decides whether a destructive action may proceed.
type Confirmer interface {
	Confirm(ctx context.Context, action Action) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, action Action) bool

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(ctx context.Context, action Action) bool { return f(ctx, action) }

// Confirmed is a Confirmer carrying an answer the caller already collected.
type Confirmed bool

// Confirm implements Confirmer.
func (c Confirmed) Confirm(context.Context, Action) bool { return bool(c) }

// Locker guards against concurrent submissions for the same record.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

// Journal persists dispatch outcomes.
type Journal interface {
	Record(ctx context.Context, entry *models.DispatchEntry) error
}

// Observer receives mutation outcomes for metrics.
type Observer interface {
	ObserveMutation(page, action, outcome string)
}

// Request is one mutation to dispatch.
type Request struct {
	Action  Action
	ActorID string
	Run     func(ctx context.Context) error
	// Refetch reloads the page store after a successful Run.
	Refetch func(ctx context.Context) error
}

// Result describes a successful dispatch.
type Result struct {
	Refreshed  bool
	RefetchErr error
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithJournal records outcomes to j.
func WithJournal(j Journal) Option { return func(d *Dispatcher) { d.journal = j } }

// WithObserver reports outcomes to o.
func WithObserver(o Observer) Option { return func(d *Dispatcher) { d.observer = o } }

// WithLockTTL bounds how long a crashed submission can hold a record.
func WithLockTTL(ttl time.Duration) Option {
	return func(d *Dispatcher) {
		if ttl > 0 {
			d.lockTTL = ttl
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(d *Dispatcher) { d.now = now } }

// Dispatcher runs mutations with refetch-after-success discipline.
type Dispatcher struct {
	locker   Locker
	journal  Journal
	observer Observer
	logger   *zap.Logger
	lockTTL  time.Duration
	now      func() time.Time
}

// NewDispatcher constructs a dispatcher. A nil locker falls back to an
// in-process MemoryLocker.
func NewDispatcher(locker Locker, logger *zap.Logger, opts ...Option) *Dispatcher {
	if locker == nil {
		locker = NewMemoryLocker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{locker: locker, logger: logger, lockTTL: defaultLockTTL, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch confirms, locks, runs and refetches. On failure the upstream
// message is returned unchanged and Refetch is never called.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request, confirm Confirmer) (Result, error) {
	action := req.Action
	start := d.now()
	logger := d.logger.With(
		zap.String("page", action.Page),
		zap.String("action", action.Name),
		zap.String("record_id", action.RecordID),
		zap.String("actor_id", req.ActorID),
	)

	if action.Destructive && (confirm == nil || !confirm.Confirm(ctx, action)) {
		err := appErrors.WithDetails(appErrors.ErrConfirmationRequired, map[string]interface{}{
			"action": action.Name,
			"prompt": action.Prompt,
		})
		d.finish(ctx, req, start, models.DispatchOutcomeDeclined, outcomeDeclined, err)
		return Result{}, err
	}

	key := lockKey(req)
	token, ok, err := d.locker.TryLock(ctx, key, d.lockTTL)
	if err != nil {
		logger.Error("acquire submission lock", zap.Error(err))
		return Result{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "could not acquire submission lock")
	}
	if !ok {
		d.observe(action, outcomeBusy)
		return Result{}, appErrors.ErrMutationInFlight
	}
	defer func() {
		if err := d.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			logger.Warn("release submission lock", zap.Error(err))
		}
	}()

	if err := req.Run(ctx); err != nil {
		if IsReferenceConflict(err) {
			conflict := referenceConflict(err)
			d.finish(ctx, req, start, models.DispatchOutcomeConflict, outcomeConflict, conflict)
			return Result{}, conflict
		}
		d.finish(ctx, req, start, models.DispatchOutcomeFailed, outcomeFailed, err)
		return Result{}, err
	}

	result := Result{}
	if req.Refetch != nil {
		if err := req.Refetch(ctx); err != nil {
			logger.Warn("refetch after mutation failed", zap.Error(err))
			result.RefetchErr = err
		} else {
			result.Refreshed = true
		}
	}
	d.finish(ctx, req, start, models.DispatchOutcomeSucceeded, outcomeSucceeded, nil)
	return result, nil
}

func (d *Dispatcher) finish(ctx context.Context, req Request, start time.Time, outcome models.DispatchOutcome, label string, cause error) {
	d.observe(req.Action, label)
	if d.journal == nil {
		return
	}
	entry := &models.DispatchEntry{
		ID:         uuid.NewString(),
		Page:       req.Action.Page,
		Action:     req.Action.Name,
		RecordID:   req.Action.RecordID,
		ActorID:    req.ActorID,
		Outcome:    outcome,
		DurationMS: d.now().Sub(start).Milliseconds(),
		CreatedAt:  d.now().UTC(),
	}
	if cause != nil {
		msg := messageOf(cause)
		entry.Message = &msg
	}
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()
	if err := d.journal.Record(jctx, entry); err != nil {
		d.logger.Warn("journal dispatch outcome", zap.String("page", entry.Page), zap.String("action", entry.Action), zap.Error(err))
	}
}

func (d *Dispatcher) observe(action Action, outcome string) {
	if d.observer != nil {
		d.observer.ObserveMutation(action.Page, action.Name, outcome)
	}
}

func lockKey(req Request) string {
	record := req.Action.RecordID
	if record == "" {
		record = anonymousRecordKey + req.Action.Name + ":" + req.ActorID
	}
	return lockKeyPrefix + req.Action.Page + ":" + record
}

// IsReferenceConflict reports whether err is the platform's refusal to delete
// a record that other records still point to.
func IsReferenceConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, appErrors.ErrReferenceConflict) {
		return true
	}
	return strings.Contains(strings.ToLower(messageOf(err)), referenceMarker)
}

// messageOf returns the user-facing message of err without the wrapped cause.
func messageOf(err error) string {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// ReferencedIn lists the collections named after the "referenced in:" marker.
func ReferencedIn(message string) []string {
	idx := strings.Index(strings.ToLower(message), referenceMarker)
	if idx < 0 {
		return nil
	}
	rest := message[idx+len(referenceMarker):]
	var tables []string
	for _, part := range strings.Split(rest, ",") {
		part = strings.Trim(strings.TrimSpace(part), ".")
		if part != "" {
			tables = append(tables, part)
		}
	}
	return tables
}

func referenceConflict(err error) *appErrors.Error {
	if errors.Is(err, appErrors.ErrReferenceConflict) {
		return appErrors.FromError(err)
	}
	message := messageOf(err)
	conflict := appErrors.Wrap(err, appErrors.ErrReferenceConflict.Code, appErrors.ErrReferenceConflict.Status, message)
	conflict.Details = map[string]interface{}{"referenced_in": ReferencedIn(message)}
	return conflict
}
