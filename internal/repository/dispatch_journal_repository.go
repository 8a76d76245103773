package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-admin-console/internal/models"
)

// QueryObserver times journal queries.
type QueryObserver interface {
	ObserveJournalQuery(label string, duration time.Duration)
}

// DispatchJournalRepository persists dispatched mutation outcomes.
type DispatchJournalRepository struct {
	db      *sqlx.DB
	metrics QueryObserver
}

// NewDispatchJournalRepository constructs the repository. metrics may be nil.
func NewDispatchJournalRepository(db *sqlx.DB, metrics QueryObserver) *DispatchJournalRepository {
	return &DispatchJournalRepository{db: db, metrics: metrics}
}

func (r *DispatchJournalRepository) observe(label string, start time.Time) {
	if r.metrics != nil {
		r.metrics.ObserveJournalQuery(label, time.Since(start))
	}
}

// Record inserts a journal row.
func (r *DispatchJournalRepository) Record(ctx context.Context, entry *models.DispatchEntry) error {
	defer r.observe("record", time.Now())
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO dispatch_journal
	(id, page, action, record_id, actor_id, outcome, message, duration_ms, created_at)
	VALUES (:id, :page, :action, :record_id, :actor_id, :outcome, :message, :duration_ms, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("record dispatch: %w", err)
	}
	return nil
}

// List returns journal rows matching the filter, newest first.
func (r *DispatchJournalRepository) List(ctx context.Context, filter models.DispatchFilter) ([]models.DispatchEntry, error) {
	defer r.observe("list", time.Now())
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(`SELECT id, page, action, record_id, actor_id, outcome, message, duration_ms, created_at FROM dispatch_journal`)

	conditions := make([]string, 0, 4)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("page", filter.Page)
	add("actor_id", filter.ActorID)
	add("record_id", filter.RecordID)
	add("outcome", string(filter.Outcome))

	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var entries []models.DispatchEntry
	if err := r.db.SelectContext(ctx, &entries, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list dispatch journal: %w", err)
	}
	return entries, nil
}

// OutcomeCount is one row of CountByOutcome.
type OutcomeCount struct {
	Outcome models.DispatchOutcome `db:"outcome" json:"outcome"`
	Count   int                    `db:"count" json:"count"`
}

// CountByOutcome summarises a page's journal.
func (r *DispatchJournalRepository) CountByOutcome(ctx context.Context, page string) ([]OutcomeCount, error) {
	defer r.observe("count_by_outcome", time.Now())
	const query = `SELECT outcome, COUNT(*) AS count FROM dispatch_journal WHERE page = $1 GROUP BY outcome ORDER BY outcome`
	var counts []OutcomeCount
	if err := r.db.SelectContext(ctx, &counts, query, page); err != nil {
		return nil, fmt.Errorf("count dispatch outcomes: %w", err)
	}
	return counts, nil
}

// PurgeOlderThan deletes entries created before cutoff and returns how many went.
func (r *DispatchJournalRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	defer r.observe("purge", time.Now())
	result, err := r.db.ExecContext(ctx, `DELETE FROM dispatch_journal WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge dispatch journal: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check purged rows: %w", err)
	}
	return rows, nil
}
