package dispatch

import (
	"context"
	"sync"

	appErrors "github.com/noah-isme/edu-admin-console/pkg/errors"
)

// DeleteState is a step of the delete → force-delete flow.
type DeleteState string

const (
	DeleteIdle                 DeleteState = "idle"
	DeleteInProgress           DeleteState = "deleting"
	DeleteAwaitingForceConfirm DeleteState = "awaiting_force_confirm"
	DeleteForceInProgress      DeleteState = "force_deleting"
)

// DefaultForcePhrase must be typed to confirm a force delete.
const DefaultForcePhrase = "DELETE"

// DeleteFlow tracks, per record, whether a reference conflict has unlocked
// the force-delete path.
type DeleteFlow struct {
	mu     sync.Mutex
	phrase string
	states map[string]DeleteState
}

// NewDeleteFlow constructs a flow requiring phrase for force deletes.
func NewDeleteFlow(phrase string) *DeleteFlow {
	if phrase == "" {
		phrase = DefaultForcePhrase
	}
	return &DeleteFlow{phrase: phrase, states: make(map[string]DeleteState)}
}

// Phrase returns the confirmation text a force delete requires.
func (f *DeleteFlow) Phrase() string {
	return f.phrase
}

// State returns the record's current step.
func (f *DeleteFlow) State(recordID string) DeleteState {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.states[recordID]; ok {
		return s
	}
	return DeleteIdle
}

// Reset abandons any pending force-delete prompt for the record.
func (f *DeleteFlow) Reset(recordID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.states, recordID)
}

// advance moves the record from one of the states in from to next. It
// reports the state found when the record was in none of them.
func (f *DeleteFlow) advance(recordID string, next DeleteState, from ...DeleteState) (DeleteState, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.states[recordID]
	if !ok {
		current = DeleteIdle
	}
	for _, s := range from {
		if s == current {
			f.states[recordID] = next
			return current, true
		}
	}
	return current, false
}

func (f *DeleteFlow) set(recordID string, s DeleteState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s == DeleteIdle {
		delete(f.states, recordID)
		return
	}
	f.states[recordID] = s
}

// Delete runs a plain delete. A reference conflict moves the record to
// DeleteAwaitingForceConfirm and the returned error carries the phrase the
// user must type.
func (f *DeleteFlow) Delete(ctx context.Context, d *Dispatcher, req Request, confirm Confirmer) (Result, error) {
	recordID := req.Action.RecordID
	if _, ok := f.advance(recordID, DeleteInProgress, DeleteIdle, DeleteAwaitingForceConfirm); !ok {
		return Result{}, appErrors.ErrMutationInFlight
	}

	req.Action.Destructive = true
	result, err := d.Dispatch(ctx, req, confirm)
	switch {
	case err == nil:
		f.set(recordID, DeleteIdle)
		return result, nil
	case IsReferenceConflict(err):
		f.set(recordID, DeleteAwaitingForceConfirm)
		return Result{}, f.withPrompt(err)
	default:
		f.set(recordID, DeleteIdle)
		return Result{}, err
	}
}

// ForceDelete runs the cascading delete. It is only reachable after a
// reference conflict and only when confirmationText matches the phrase.
func (f *DeleteFlow) ForceDelete(ctx context.Context, d *Dispatcher, req Request, confirmationText string) (Result, error) {
	recordID := req.Action.RecordID
	if confirmationText != f.phrase {
		if f.State(recordID) != DeleteAwaitingForceConfirm {
			return Result{}, forceUnavailable()
		}
		return Result{}, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrConfirmationRequired, "type the confirmation phrase to force delete"),
			map[string]interface{}{"confirmation_phrase": f.phrase, "state": DeleteAwaitingForceConfirm},
		)
	}
	switch current, ok := f.advance(recordID, DeleteForceInProgress, DeleteAwaitingForceConfirm); {
	case ok:
	case current == DeleteInProgress || current == DeleteForceInProgress:
		return Result{}, appErrors.ErrMutationInFlight
	default:
		return Result{}, forceUnavailable()
	}

	req.Action.Destructive = true
	result, err := d.Dispatch(ctx, req, Confirmed(true))
	if err != nil {
		f.set(recordID, DeleteAwaitingForceConfirm)
		return Result{}, err
	}
	f.set(recordID, DeleteIdle)
	return result, nil
}

func forceUnavailable() *appErrors.Error {
	return appErrors.Clone(appErrors.ErrPreconditionFailed, "force delete is only available after a reference conflict")
}

func (f *DeleteFlow) withPrompt(err error) *appErrors.Error {
	conflict := appErrors.FromError(err)
	details := map[string]interface{}{
		"confirmation_phrase": f.phrase,
		"state":               DeleteAwaitingForceConfirm,
	}
	for k, v := range conflict.Details {
		details[k] = v
	}
	return appErrors.WithDetails(conflict, details)
}
