package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/noah-isme/edu-admin-console/internal/models"
)

// ListPayments returns every payment visible to the caller.
func (c *Client) ListPayments(ctx context.Context) ([]models.Payment, error) {
	return fetchList[models.Payment](ctx, c, "payments.list", "/payments", nil)
}

// ApprovePayment marks a payment approved.
func (c *Client) ApprovePayment(ctx context.Context, id string) error {
	return c.mutate(ctx, "payments.approve", http.MethodPost, recordPath("payments", id, "approve"), nil, nil)
}

// UpdatePayment edits payment details.
func (c *Client) UpdatePayment(ctx context.Context, id string, req models.UpdatePaymentRequest) error {
	return c.mutate(ctx, "payments.update", http.MethodPut, recordPath("payments", id), nil, req)
}

// ListUsers returns platform accounts.
func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	return fetchList[models.User](ctx, c, "users.list", "/users", nil)
}

// CreateUser registers a new account.
func (c *Client) CreateUser(ctx context.Context, req models.CreateUserRequest) error {
	return c.mutate(ctx, "users.create", http.MethodPost, "/users", nil, req)
}

// UpdateUser edits an account.
func (c *Client) UpdateUser(ctx context.Context, id string, req models.UpdateUserRequest) error {
	return c.mutate(ctx, "users.update", http.MethodPut, recordPath("users", id), nil, req)
}

// DeleteUser removes an account. With force the platform also removes the
// records referencing it.
func (c *Client) DeleteUser(ctx context.Context, id string, force bool) error {
	var query url.Values
	endpoint := "users.delete"
	if force {
		query = url.Values{"force": []string{"true"}}
		endpoint = "users.force_delete"
	}
	return c.mutate(ctx, endpoint, http.MethodDelete, recordPath("users", id), query, nil)
}

// ListSessions returns class sessions.
func (c *Client) ListSessions(ctx context.Context) ([]models.ClassSession, error) {
	return fetchList[models.ClassSession](ctx, c, "sessions.list", "/sessions", nil)
}

// CreateSession schedules a class session.
func (c *Client) CreateSession(ctx context.Context, req models.CreateSessionRequest) error {
	return c.mutate(ctx, "sessions.create", http.MethodPost, "/sessions", nil, req)
}

// CancelSession cancels a scheduled session.
func (c *Client) CancelSession(ctx context.Context, id string, req models.CancelSessionRequest) error {
	return c.mutate(ctx, "sessions.cancel", http.MethodPost, recordPath("sessions", id, "cancel"), nil, req)
}

// ListMarks returns assessment marks.
func (c *Client) ListMarks(ctx context.Context) ([]models.Mark, error) {
	return fetchList[models.Mark](ctx, c, "marks.list", "/marks", nil)
}

// UpdateMark corrects a mark.
func (c *Client) UpdateMark(ctx context.Context, id string, req models.UpdateMarkRequest) error {
	return c.mutate(ctx, "marks.update", http.MethodPut, recordPath("marks", id), nil, req)
}

// ListStates returns the state lookup list.
func (c *Client) ListStates(ctx context.Context) ([]models.State, error) {
	return fetchList[models.State](ctx, c, "states.list", "/states", nil)
}

// ListBatches returns the batch lookup list.
func (c *Client) ListBatches(ctx context.Context) ([]models.Batch, error) {
	return fetchList[models.Batch](ctx, c, "batches.list", "/batches", nil)
}

// ListChatMessages returns chat messages, optionally for one batch.
func (c *Client) ListChatMessages(ctx context.Context, batchID string) ([]models.ChatMessage, error) {
	var query url.Values
	if batchID != "" {
		query = url.Values{"batch_id": []string{batchID}}
	}
	return fetchList[models.ChatMessage](ctx, c, "chat.list", "/chat/messages", query)
}

// SendChatMessage posts a message.
func (c *Client) SendChatMessage(ctx context.Context, req models.SendChatMessageRequest) error {
	return c.mutate(ctx, "chat.send", http.MethodPost, "/chat/messages", nil, req)
}
