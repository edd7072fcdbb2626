package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/examforge/internal/batch"
)

type answerRepo struct {
	db *sql.DB
}

var answerColumns = []string{"session_id", "question_index", "question_id", "chosen_index", "correct", "answered_at"}

func (r *answerRepo) Record(ctx context.Context, a batch.Answer) error {
	query, args := entsql.Dialect(dialect.SQLite).
		Insert(tableAnswers).
		Columns(answerColumns...).
		Values(a.SessionID, a.QuestionIndex, a.QuestionID, a.ChosenIndex, a.Correct, a.AnsweredAt.UTC()).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("question %d: %w", a.QuestionIndex, ErrAlreadyAnswered)
		}
		return fmt.Errorf("record answer: %w", err)
	}
	return nil
}

func (r *answerRepo) List(ctx context.Context, sessionID string) ([]batch.Answer, error) {
	query, args := entsql.Dialect(dialect.SQLite).
		Select(answerColumns...).
		From(entsql.Table(tableAnswers)).
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy("question_index").
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()

	var out []batch.Answer
	for rows.Next() {
		var a batch.Answer
		if err := rows.Scan(&a.SessionID, &a.QuestionIndex, &a.QuestionID, &a.ChosenIndex, &a.Correct, &a.AnsweredAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
