package service

import (
	"context"

	"github.com/noah-isme/edu-admin-console/internal/dispatch"
	"github.com/noah-isme/edu-admin-console/internal/dto"
	"github.com/noah-isme/edu-admin-console/internal/models"
	"github.com/noah-isme/edu-admin-console/pkg/listview"
)

func userID(u models.User) (string, bool) { return present(u.ID) }
func userName(u models.User) (string, bool) { return present(u.FullName) }
func userEmail(u models.User) (string, bool) { return present(u.Email) }
func userRegistration(u models.User) (string, bool) { return present(u.RegistrationNumber) }
func userRole(u models.User) (string, bool) { return present(string(u.Role)) }
func userStatus(u models.User) (string, bool) { return u.Status(), true }
func userCreated(u models.User) (string, bool) { return present(u.CreatedAt) }
func userActive(u models.User) bool { return u.IsActive }

func (s *ViewService) userSpec() *pageSpec[models.User] {
	return &pageSpec[models.User]{
		name: PageUsers,
		chain: listview.NewChain(
			listview.Search("search", userID, userName, userEmail, userRegistration),
			listview.Equals("role", userRole),
			listview.Equals("status", userStatus),
			listview.DateRange("start_date", "end_date", userCreated),
		),
		fetch: s.api.ListUsers,
		stats: func(snap listview.Snapshot[models.User]) interface{} {
			active := listview.Count(snap.Filtered, userActive)
			return dto.UserStats{
				Active:   active,
				Inactive: len(snap.Filtered) - active,
				ByRole:   listview.Breakdown(snap.Filtered, nil, userRole, listview.One[models.User]),
			}
		},
		export: exportSpec[models.User]{
			title:   "Users",
			headers: []string{"ID", "Full Name", "Email", "Phone", "Registration No.", "Role", "Active", "Created At"},
			row: func(u models.User) []string {
				return []string{u.ID, u.FullName, u.Email, u.Phone, u.RegistrationNumber, string(u.Role), formatBool(u.IsActive), u.CreatedAt}
			},
		},
	}
}

// Users opens the users page.
func (s *ViewService) Users(ctx context.Context, actor Actor, q ViewQuery) (*PageResult[models.User], error) {
	return openPage(ctx, s, actor, PageUsers, func(ws *Workspace) *PageView[models.User] { return ws.users }, q)
}

// CreateUser validates the form locally and creates the account.
func (s *ViewService) CreateUser(ctx context.Context, actor Actor, req models.CreateUserRequest) (dispatch.Result, error) {
	if err := authorize(actor, PageUsers); err != nil {
		return dispatch.Result{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dispatch.Result{}, err
	}
	ws := s.registry.Acquire(actor.UserID, actor.Session)
	return dispatchOn(ctx, s, actor, ws.users, mutation{
		page:   PageUsers,
		action: "create",
		run:    func(ctx context.Context) error { return s.api.CreateUser(ctx, req) },
	}, nil)
}

// UpdateUser edits an account.
func (s *ViewService) UpdateUser(ctx context.Context, actor Actor, id string, req models.UpdateUserRequest) (dispatch.Result, error) {
	if err := authorize(actor, PageUsers); err != nil {
		return dispatch.Result{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dispatch.Result{}, err
	}
	ws := s.registry.Acquire(actor.UserID, actor.Session)
	return dispatchOn(ctx, s, actor, ws.users, mutation{
		page:     PageUsers,
		action:   "update",
		recordID: id,
		run:      func(ctx context.Context) error { return s.api.UpdateUser(ctx, id, req) },
	}, nil)
}

// DeleteUser runs a plain delete. When the account is still referenced the
// error carries the phrase required by ForceDeleteUser.
func (s *ViewService) DeleteUser(ctx context.Context, actor Actor, id string, confirmed bool) (dispatch.Result, error) {
	if err := authorize(actor, PageUsers); err != nil {
		return dispatch.Result{}, err
	}
	ws := s.registry.Acquire(actor.UserID, actor.Session)
	req := s.deleteRequest(actor, ws, id, "delete", false)
	return ws.deletes.Delete(withSession(ctx, actor), s.dispatcher, req, dispatch.Confirmed(confirmed))
}

// ForceDeleteUser cascades the delete after a reference conflict.
func (s *ViewService) ForceDeleteUser(ctx context.Context, actor Actor, id, confirmationText string) (dispatch.Result, error) {
	if err := authorize(actor, PageUsers); err != nil {
		return dispatch.Result{}, err
	}
	ws := s.registry.Acquire(actor.UserID, actor.Session)
	req := s.deleteRequest(actor, ws, id, "force_delete", true)
	return ws.deletes.ForceDelete(withSession(ctx, actor), s.dispatcher, req, confirmationText)
}

// DeleteState reports where a user record is in the delete flow.
func (s *ViewService) DeleteState(actor Actor, id string) dispatch.DeleteState {
	return s.registry.Acquire(actor.UserID, actor.Session).deletes.State(id)
}

func (s *ViewService) deleteRequest(actor Actor, ws *Workspace, id, action string, force bool) dispatch.Request {
	return dispatch.Request{
		Action: dispatch.Action{
			Page:     PageUsers,
			Name:     action,
			RecordID: id,
			Prompt:   "Delete this user?",
		},
		ActorID: actor.UserID,
		Run:     func(ctx context.Context) error { return s.api.DeleteUser(ctx, id, force) },
		Refetch: ws.users.refetch,
	}
}
