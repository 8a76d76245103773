package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-admin-console/internal/dispatch"
	"github.com/noah-isme/edu-admin-console/internal/models"
	"github.com/noah-isme/edu-admin-console/internal/session"
	appErrors "github.com/noah-isme/edu-admin-console/pkg/errors"
	"github.com/noah-isme/edu-admin-console/pkg/export"
	"github.com/noah-isme/edu-admin-console/pkg/listview"
)

// Page names.
const (
	PagePayments = "payments"
	PageUsers    = "users"
	PageSessions = "sessions"
	PageMarks    = "marks"
	PageChat     = "chat"
	PageStates   = "states"
	PageBatches  = "batches"
)

var allRoles = []models.UserRole{
	models.RoleAdmin, models.RoleManager, models.RoleAcademicCoordinator,
	models.RoleTeacher, models.RoleFinance, models.RoleStudent,
}

// PageRoles lists the roles allowed to open each page.
var PageRoles = map[string][]models.UserRole{
	PagePayments: {models.RoleAdmin, models.RoleManager, models.RoleFinance},
	PageUsers:    {models.RoleAdmin, models.RoleManager},
	PageSessions: {models.RoleAdmin, models.RoleManager, models.RoleAcademicCoordinator, models.RoleTeacher},
	PageMarks:    {models.RoleAdmin, models.RoleAcademicCoordinator, models.RoleTeacher},
	PageChat:     allRoles,
	PageStates:   allRoles,
	PageBatches:  allRoles,
}

// PagesFor returns the pages a role may open, in navigation order.
func PagesFor(role models.UserRole) []string {
	order := []string{PagePayments, PageUsers, PageSessions, PageMarks, PageChat, PageStates, PageBatches}
	pages := make([]string, 0, len(order))
	for _, page := range order {
		if roleAllowed(role, PageRoles[page]) {
			pages = append(pages, page)
		}
	}
	return pages
}

func roleAllowed(role models.UserRole, allowed []models.UserRole) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// PlatformAPI is the upstream platform surface rendered by the console.
type PlatformAPI interface {
	ListPayments(ctx context.Context) ([]models.Payment, error)
	ApprovePayment(ctx context.Context, id string) error
	UpdatePayment(ctx context.Context, id string, req models.UpdatePaymentRequest) error

	ListUsers(ctx context.Context) ([]models.User, error)
	CreateUser(ctx context.Context, req models.CreateUserRequest) error
	UpdateUser(ctx context.Context, id string, req models.UpdateUserRequest) error
	DeleteUser(ctx context.Context, id string, force bool) error

	ListSessions(ctx context.Context) ([]models.ClassSession, error)
	CreateSession(ctx context.Context, req models.CreateSessionRequest) error
	CancelSession(ctx context.Context, id string, req models.CancelSessionRequest) error

	ListMarks(ctx context.Context) ([]models.Mark, error)
	UpdateMark(ctx context.Context, id string, req models.UpdateMarkRequest) error

	ListStates(ctx context.Context) ([]models.State, error)
	ListBatches(ctx context.Context) ([]models.Batch, error)

	ListChatMessages(ctx context.Context, batchID string) ([]models.ChatMessage, error)
	SendChatMessage(ctx context.Context, req models.SendChatMessageRequest) error
}

type formValidator interface {
	Struct(req interface{}) error
}

// Actor is the verified caller of a view operation.
type Actor struct {
	UserID  string
	Role    models.UserRole
	Session session.Context
}

// ViewConfig tunes page behaviour.
type ViewConfig struct {
	PageSize            int
	ChatPollInterval    time.Duration
	SessionPollInterval time.Duration
	LookupCacheTTL      time.Duration
	MarksPassPercentage float64
	IdleTTL             time.Duration
	ForceDeletePhrase   string
}

// ViewService serves the console pages of every signed-in user.
type ViewService struct {
	api        PlatformAPI
	dispatcher *dispatch.Dispatcher
	validator  formValidator
	cache      *LookupCache
	metrics    *MetricsService
	logger     *zap.Logger
	cfg        ViewConfig
	registry   *WorkspaceRegistry

	payments *pageSpec[models.Payment]
	users    *pageSpec[models.User]
	sessions *pageSpec[models.ClassSession]
	marks    *pageSpec[models.Mark]
	chat     *pageSpec[models.ChatMessage]
	states   *pageSpec[models.State]
	batches  *pageSpec[models.Batch]
}

// NewViewService wires the page specifications and the workspace registry.
func NewViewService(api PlatformAPI, dispatcher *dispatch.Dispatcher, validator formValidator, cache *LookupCache, metrics *MetricsService, cfg ViewConfig, logger *zap.Logger) *ViewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validator == nil {
		validator = NewFormValidator()
	}
	if dispatcher == nil {
		dispatcher = dispatch.NewDispatcher(nil, logger)
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = listview.DefaultPerPage
	}
	if cfg.MarksPassPercentage <= 0 {
		cfg.MarksPassPercentage = 40
	}
	s := &ViewService{
		api:        api,
		dispatcher: dispatcher,
		validator:  validator,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
	}
	s.payments = s.paymentSpec()
	s.users = s.userSpec()
	s.sessions = s.sessionSpec()
	s.marks = s.markSpec()
	s.chat = s.chatSpec()
	s.states = s.stateSpec()
	s.batches = s.batchSpec()
	s.registry = NewWorkspaceRegistry(s.newWorkspace, cfg.IdleTTL, metrics, logger)
	return s
}

// Registry exposes the workspace registry.
func (s *ViewService) Registry() *WorkspaceRegistry {
	return s.registry
}

// FilterKeys returns the table and aggregation filter keys of a page.
func (s *ViewService) FilterKeys(page string) (keys []string, aggKeys []string, ok bool) {
	switch page {
	case PagePayments:
		return s.payments.chain.Keys(), s.payments.aggKeys, true
	case PageUsers:
		return s.users.chain.Keys(), nil, true
	case PageSessions:
		return s.sessions.chain.Keys(), nil, true
	case PageMarks:
		return s.marks.chain.Keys(), nil, true
	case PageChat:
		return s.chat.chain.Keys(), nil, true
	case PageStates:
		return s.states.chain.Keys(), nil, true
	case PageBatches:
		return s.batches.chain.Keys(), nil, true
	}
	return nil, nil, false
}

// CloseWorkspace unmounts every page of the actor.
func (s *ViewService) CloseWorkspace(actor Actor) bool {
	return s.registry.Release(actor.UserID)
}

// RefreshPage refetches one page of the actor's workspace.
func (s *ViewService) RefreshPage(ctx context.Context, actor Actor, page string) (bool, error) {
	if err := authorize(actor, page); err != nil {
		return false, err
	}
	ws := s.registry.Acquire(actor.UserID, actor.Session)
	if page == PageStates || page == PageBatches {
		_ = s.cache.Invalidate(ctx, page)
	}
	switch page {
	case PagePayments:
		return ws.payments.Refresh(ctx)
	case PageUsers:
		return ws.users.Refresh(ctx)
	case PageSessions:
		return ws.sessions.Refresh(ctx)
	case PageMarks:
		return ws.marks.Refresh(ctx)
	case PageChat:
		return ws.chat.Refresh(ctx)
	case PageStates:
		return ws.states.Refresh(ctx)
	case PageBatches:
		return ws.batches.Refresh(ctx)
	}
	return false, unknownPage(page)
}

// ExportDataset renders the actor's page filtered by criteria into an export
// dataset. The page window and criteria of the workspace are left untouched.
func (s *ViewService) ExportDataset(ctx context.Context, actor Actor, page string, criteria listview.Criteria) (export.Dataset, error) {
	if err := authorize(actor, page); err != nil {
		return export.Dataset{}, err
	}
	ws := s.registry.Acquire(actor.UserID, actor.Session)
	switch page {
	case PagePayments:
		return exportPage(ctx, s.registry.Context(), ws.payments, criteria)
	case PageUsers:
		return exportPage(ctx, s.registry.Context(), ws.users, criteria)
	case PageSessions:
		return exportPage(ctx, s.registry.Context(), ws.sessions, criteria)
	case PageMarks:
		return exportPage(ctx, s.registry.Context(), ws.marks, criteria)
	case PageChat:
		return exportPage(ctx, s.registry.Context(), ws.chat, criteria)
	case PageStates:
		return exportPage(ctx, s.registry.Context(), ws.states, criteria)
	case PageBatches:
		return exportPage(ctx, s.registry.Context(), ws.batches, criteria)
	}
	return export.Dataset{}, unknownPage(page)
}

func authorize(actor Actor, page string) error {
	allowed, ok := PageRoles[page]
	if !ok {
		return unknownPage(page)
	}
	if actor.UserID == "" {
		return appErrors.Clone(appErrors.ErrUnauthorized, "missing user context")
	}
	if !roleAllowed(actor.Role, allowed) {
		return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("role %s cannot open %s", actor.Role, page))
	}
	return nil
}

func unknownPage(page string) error {
	return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("unknown page %q", page))
}

// openPage mounts the page and applies the query.
func openPage[T any](ctx context.Context, s *ViewService, actor Actor, page string, pick func(*Workspace) *PageView[T], q ViewQuery) (*PageResult[T], error) {
	if err := authorize(actor, page); err != nil {
		return nil, err
	}
	ws := s.registry.Acquire(actor.UserID, actor.Session)
	pv := pick(ws)
	if err := pv.Mount(ctx, s.registry.Context()); err != nil {
		return nil, err
	}
	reset := pv.Apply(q)
	result := pv.Result(reset)
	return &result, nil
}

// mutation is one dispatched write against a page.
type mutation struct {
	page        string
	action      string
	recordID    string
	destructive bool
	prompt      string
	run         func(ctx context.Context) error
}

// dispatchOn runs m through the dispatcher and refetches pv on success.
func dispatchOn[T any](ctx context.Context, s *ViewService, actor Actor, pv *PageView[T], m mutation, confirm dispatch.Confirmer) (dispatch.Result, error) {
	return s.dispatcher.Dispatch(withSession(ctx, actor), dispatch.Request{
		Action: dispatch.Action{
			Page:        m.page,
			Name:        m.action,
			RecordID:    m.recordID,
			Destructive: m.destructive,
			Prompt:      m.prompt,
		},
		ActorID: actor.UserID,
		Run:     m.run,
		Refetch: pv.refetch,
	}, confirm)
}

func withSession(ctx context.Context, actor Actor) context.Context {
	return session.WithContext(ctx, actor.Session)
}

// exportPage filters the page's store with criteria and renders export rows.
func exportPage[T any](ctx, background context.Context, pv *PageView[T], criteria listview.Criteria) (export.Dataset, error) {
	if err := pv.Mount(ctx, background); err != nil {
		return export.Dataset{}, err
	}
	spec := pv.spec
	records := spec.chain.Apply(pv.view.Store().Records(), criteria.Normalized())
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, spec.export.row(r))
	}
	dataset := export.Dataset{
		Title:   spec.export.title,
		Headers: spec.export.headers,
		Rows:    rows,
	}
	if spec.export.summary != nil {
		dataset.Summary = spec.export.summary(records)
	}
	return dataset, nil
}

// exportSpec describes the tabular export of a page.
type exportSpec[T any] struct {
	title   string
	headers []string
	row     func(T) []string
	summary func(records []T) []string
}

func formatAmount(a models.Amount) string {
	v, ok := a.Float()
	if !ok {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatBool(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func present(v string) (string, bool) {
	return v, v != ""
}

// monthOf and yearOf expose a timestamp's calendar parts as filter values.
func monthOf(raw string) (string, bool) {
	t, ok := listview.ParseTimestamp(raw)
	if !ok {
		return "", false
	}
	return strconv.Itoa(int(t.Month())), true
}

func yearOf(raw string) (string, bool) {
	t, ok := listview.ParseTimestamp(raw)
	if !ok {
		return "", false
	}
	return strconv.Itoa(t.Year()), true
}
