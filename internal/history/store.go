package history

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ziadkadry99/tikzstudio/internal/db"
	"github.com/ziadkadry99/tikzstudio/internal/gateway"
	"github.com/ziadkadry99/tikzstudio/internal/prompts"
)

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store persists Entries in the generations table.
type Store struct {
	db  *db.DB
	now func() time.Time
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database, now: time.Now}
}

// Record stores a finished gateway call. It satisfies gateway.Recorder.
// Storage failures are logged, not returned.
func (s *Store) Record(ctx context.Context, call gateway.Call) {
	e := FromCall(gateway.SessionID(ctx), call)
	if err := s.Log(context.WithoutCancel(ctx), &e); err != nil {
		log.Printf("history: %v", err)
	}
}

// Log inserts e. Empty ID and CreatedAt are filled in.
func (s *Store) Log(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}

	var markup, preview, explanation, errorKind, errMsg sql.NullString
	if e.Error == "" {
		markup = sql.NullString{String: e.Markup, Valid: true}
		preview = sql.NullString{String: e.PreviewMarkup, Valid: true}
		explanation = sql.NullString{String: e.Explanation, Valid: e.Explanation != ""}
	} else {
		errorKind = sql.NullString{String: string(e.ErrorKind), Valid: true}
		errMsg = sql.NullString{String: e.Error, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO generations (
			id, created_at, session_id, operation, mode, prompt,
			markup, preview_markup, explanation, error_kind, error,
			model, duration_ms, input_tokens, output_tokens, cost_usd
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.CreatedAt.UTC().Format(timeLayout),
		e.SessionID,
		string(e.Operation),
		string(e.Mode),
		e.Prompt,
		markup,
		preview,
		explanation,
		errorKind,
		errMsg,
		e.Model,
		e.DurationMS,
		e.InputTokens,
		e.OutputTokens,
		e.CostUSD,
	)
	if err != nil {
		return fmt.Errorf("inserting generation: %w", err)
	}
	return nil
}

const columns = `id, created_at, session_id, operation, mode, prompt,
	markup, preview_markup, explanation, error_kind, error,
	model, duration_ms, input_tokens, output_tokens, cost_usd`

// GetByID retrieves a single entry.
func (s *Store) GetByID(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+columns+" FROM generations WHERE id = ?", id)
	return scanInto(row)
}

// Filter controls which entries Query returns.
type Filter struct {
	SessionID  string
	Operation  gateway.Operation
	Mode       prompts.Mode
	FailedOnly bool
	Since      *time.Time
	Limit      int
	Offset     int
}

// Query returns entries matching the filter, newest first.
func (s *Store) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	where, args := filter.where()
	query := "SELECT " + columns + " FROM generations" + where + " ORDER BY created_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		if filter.Limit <= 0 {
			query += " LIMIT -1"
		}
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying generations: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanInto(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (f Filter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.SessionID != "" {
		clauses = append(clauses, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.Operation != "" {
		clauses = append(clauses, "operation = ?")
		args = append(args, string(f.Operation))
	}
	if f.Mode != "" {
		clauses = append(clauses, "mode = ?")
		args = append(args, string(f.Mode))
	}
	if f.FailedOnly {
		clauses = append(clauses, "error IS NOT NULL")
	}
	if f.Since != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, f.Since.UTC().Format(timeLayout))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Summary aggregates a set of entries.
type Summary struct {
	Calls        int     `json:"calls"`
	Failures     int     `json:"failures"`
	InputTokens  int     `json:"inputTokens"`
	OutputTokens int     `json:"outputTokens"`
	CostUSD      float64 `json:"costUsd"`
}

// Summarize totals the entries matching filter. Limit and Offset are ignored.
func (s *Store) Summarize(ctx context.Context, filter Filter) (Summary, error) {
	filter.Limit, filter.Offset = 0, 0
	where, args := filter.where()
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN error IS NOT NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(input_tokens), 0),
			COALESCE(SUM(output_tokens), 0),
			COALESCE(SUM(cost_usd), 0)
		FROM generations`+where, args...)

	var sum Summary
	if err := row.Scan(&sum.Calls, &sum.Failures, &sum.InputTokens, &sum.OutputTokens, &sum.CostUSD); err != nil {
		return Summary{}, fmt.Errorf("summarizing generations: %w", err)
	}
	return sum, nil
}

// DeleteBefore removes all entries older than the given time.
// Returns the number of deleted rows.
func (s *Store) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM generations WHERE created_at < ?",
		before.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting old generations: %w", err)
	}
	return res.RowsAffected()
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanInto(sc scanner) (*Entry, error) {
	var (
		e                                            Entry
		ts, operation, mode                          string
		markup, preview, explanation, errKind, errMsg sql.NullString
	)

	err := sc.Scan(
		&e.ID, &ts, &e.SessionID, &operation, &mode, &e.Prompt,
		&markup, &preview, &explanation, &errKind, &errMsg,
		&e.Model, &e.DurationMS, &e.InputTokens, &e.OutputTokens, &e.CostUSD,
	)
	if err != nil {
		return nil, err
	}

	e.Operation = gateway.Operation(operation)
	e.Mode = prompts.Mode(mode)
	if t, parseErr := time.Parse(timeLayout, ts); parseErr == nil {
		e.CreatedAt = t
	}
	e.Markup = markup.String
	e.PreviewMarkup = preview.String
	e.Explanation = explanation.String
	e.ErrorKind = gateway.Kind(errKind.String)
	e.Error = errMsg.String

	return &e, nil
}
