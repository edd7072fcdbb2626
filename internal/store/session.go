package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/examforge/internal/batch"
)

type sessionRepo struct {
	db *sql.DB
}

var sessionColumns = []string{
	"id", "session_type", "section", "track", "batch_size", "max_batches",
	"last_batch_index", "generated_ids", "status", "created_at", "updated_at",
}

var questionColumns = []string{
	"session_id", "question_index", "batch_index", "question_id", "question",
	"provider", "cache_hit", "generated_at",
}

func (r *sessionRepo) Create(ctx context.Context, rec *SessionRecord) error {
	ids, err := json.Marshal(nonNil(rec.Context.GeneratedIDs))
	if err != nil {
		return fmt.Errorf("marshal generated ids: %w", err)
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = StatusActive
	}

	query, args := entsql.Dialect(dialect.SQLite).
		Insert(tableSessions).
		Columns(sessionColumns...).
		Values(
			rec.ID, string(rec.Type), string(rec.Section), string(rec.Track), rec.BatchSize, rec.MaxBatches,
			rec.Context.LastBatchIndex, string(ids), string(rec.Status), rec.CreatedAt, rec.UpdatedAt,
		).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *sessionRepo) Get(ctx context.Context, id string) (*SessionRecord, error) {
	return getSession(ctx, r.db, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getSession(ctx context.Context, q queryRower, id string) (*SessionRecord, error) {
	query, args := entsql.Dialect(dialect.SQLite).
		Select(sessionColumns...).
		From(entsql.Table(tableSessions)).
		Where(entsql.EQ("id", id)).
		Query()

	var (
		rec                         SessionRecord
		typ, section, track, status string
		ids                         string
	)
	err := q.QueryRowContext(ctx, query, args...).Scan(
		&rec.ID, &typ, &section, &track, &rec.BatchSize, &rec.MaxBatches,
		&rec.Context.LastBatchIndex, &ids, &status, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if err := json.Unmarshal([]byte(ids), &rec.Context.GeneratedIDs); err != nil {
		return nil, fmt.Errorf("decode generated ids: %w", err)
	}
	rec.Type = batch.SessionType(typ)
	rec.Section = batch.Section(section)
	rec.Track = batch.Track(track)
	rec.Status = SessionStatus(status)
	return &rec, nil
}

func (r *sessionRepo) SaveBatch(ctx context.Context, sessionID string, batchIndex int, questions []batch.SessionQuestion, updated batch.GenerationContext) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	cur, err := getSession(ctx, tx, sessionID)
	if err != nil {
		return err
	}
	if cur.Context.LastBatchIndex != batchIndex-1 {
		return fmt.Errorf("save batch %d after %d: %w", batchIndex, cur.Context.LastBatchIndex, ErrStaleContext)
	}

	var next int
	countQuery, countArgs := entsql.Dialect(dialect.SQLite).
		Select(entsql.Count("*")).
		From(entsql.Table(tableQuestions)).
		Where(entsql.EQ("session_id", sessionID)).
		Query()
	if err := tx.QueryRowContext(ctx, countQuery, countArgs...).Scan(&next); err != nil {
		return fmt.Errorf("count questions: %w", err)
	}

	if len(questions) > 0 {
		ins := entsql.Dialect(dialect.SQLite).Insert(tableQuestions).Columns(questionColumns...)
		for i, q := range questions {
			body, err := json.Marshal(q.Question)
			if err != nil {
				return fmt.Errorf("marshal question %s: %w", q.ID, err)
			}
			ins.Values(sessionID, next+i, batchIndex, q.ID, string(body), string(q.Provider), q.CacheHit, q.GeneratedAt.UTC())
		}
		query, args := ins.Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert questions: %w", err)
		}
	}

	ids, err := json.Marshal(nonNil(updated.GeneratedIDs))
	if err != nil {
		return fmt.Errorf("marshal generated ids: %w", err)
	}
	query, args := entsql.Dialect(dialect.SQLite).
		Update(tableSessions).
		Set("last_batch_index", updated.LastBatchIndex).
		Set("generated_ids", string(ids)).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.EQ("id", sessionID)).
		Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update session context: %w", err)
	}

	return tx.Commit()
}

func (r *sessionRepo) Questions(ctx context.Context, sessionID string) ([]batch.SessionQuestion, error) {
	return r.queryQuestions(ctx, entsql.EQ("session_id", sessionID))
}

func (r *sessionRepo) BatchQuestions(ctx context.Context, sessionID string, batchIndex int) ([]batch.SessionQuestion, error) {
	return r.queryQuestions(ctx, entsql.And(
		entsql.EQ("session_id", sessionID),
		entsql.EQ("batch_index", batchIndex),
	))
}

func (r *sessionRepo) queryQuestions(ctx context.Context, where *entsql.Predicate) ([]batch.SessionQuestion, error) {
	query, args := entsql.Dialect(dialect.SQLite).
		Select(questionColumns...).
		From(entsql.Table(tableQuestions)).
		Where(where).
		OrderBy("question_index").
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var out []batch.SessionQuestion
	for rows.Next() {
		var (
			sq       batch.SessionQuestion
			index    int
			qid      string
			body     string
			provider string
		)
		if err := rows.Scan(&sq.SessionID, &index, &sq.BatchIndex, &qid, &body, &provider, &sq.CacheHit, &sq.GeneratedAt); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal([]byte(body), &sq.Question); err != nil {
			return nil, fmt.Errorf("decode question %s: %w", qid, err)
		}
		sq.Provider = batch.Provider(provider)
		out = append(out, sq)
	}
	return out, rows.Err()
}

func (r *sessionRepo) SetStatus(ctx context.Context, id string, status SessionStatus) error {
	query, args := entsql.Dialect(dialect.SQLite).
		Update(tableSessions).
		Set("status", string(status)).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.EQ("id", id)).
		Query()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("set session status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
