package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event kinds.
const (
	KindGoal   = "goal"
	KindCancel = "cancel"
)

// timeFormat is fixed-width so created_at sorts lexically.
const timeFormat = "2006-01-02T15:04:05.000000Z07:00"

// Page size limits for List.
const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// GoalEvent is one recorded goal or cancel command.
type GoalEvent struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Position string `json:"position,omitempty"`
	// Sent is false when the command was dropped because the bridge was
	// not connected.
	Sent      bool      `json:"sent"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter selects goal events for List.
type Filter struct {
	Kind   string // optional: goal or cancel
	Limit  int    // default 50, max 200
	Offset int
}

// ListResult is a page of goal events, newest first.
type ListResult struct {
	Events []GoalEvent `json:"events"`
	Total  int         `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// Repository stores goal events.
type Repository interface {
	Create(ctx context.Context, ev *GoalEvent) error
	Get(ctx context.Context, id string) (*GoalEvent, error)
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository keeps goal events in the goal_events table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts ev, filling in ID and CreatedAt when empty.
func (r *SQLiteRepository) Create(ctx context.Context, ev *GoalEvent) error {
	if ev.ID == "" {
		ev.ID = "goal-" + uuid.NewString()[:8]
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO goal_events (id, kind, position, sent, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Kind, ev.Position, ev.Sent, ev.Source,
		ev.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting goal event: %w", err)
	}
	return nil
}

// Get returns the event with the given ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*GoalEvent, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, kind, position, sent, source, created_at FROM goal_events WHERE id = ?`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// List returns events matching filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	where, args := "", []any{}
	if filter.Kind != "" {
		where = "WHERE kind = ?"
		args = append(args, filter.Kind)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM goal_events " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting goal events: %w", err)
	}

	query := "SELECT id, kind, position, sent, source, created_at FROM goal_events " + where +
		" ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying goal events: %w", err)
	}
	defer rows.Close()

	events := []GoalEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating goal events: %w", err)
	}

	return &ListResult{Events: events, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(s scanner) (*GoalEvent, error) {
	var ev GoalEvent
	var createdAt string
	if err := s.Scan(&ev.ID, &ev.Kind, &ev.Position, &ev.Sent, &ev.Source, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning goal event: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing goal event timestamp %q: %w", createdAt, err)
	}
	ev.CreatedAt = t
	return &ev, nil
}
