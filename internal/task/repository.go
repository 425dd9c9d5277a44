package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository scopes every statement to the owning user, so a task id that
// belongs to someone else behaves exactly like a missing one.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const taskColumns = `id, title, description, due, status_id, category_id, user_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (Task, error) {
	var (
		t   Task
		due time.Time
	)
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &due, &t.StatusID, &t.CategoryID, &t.UserID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return Task{}, err
	}
	t.Due = due.Format(DateLayout)
	return t, nil
}

func (r *Repository) ListByOwner(ctx context.Context, userID int64) ([]Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE user_id = $1
		ORDER BY due ASC, id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}

	return tasks, nil
}

func (r *Repository) Get(ctx context.Context, userID, id int64) (Task, error) {
	t, err := scanTask(r.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE id = $1 AND user_id = $2
	`, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, fmt.Errorf("query task: %w", err)
	}

	return t, nil
}

func (r *Repository) Create(ctx context.Context, userID int64, input Input) (Task, error) {
	due, err := time.Parse(DateLayout, input.Due)
	if err != nil {
		return Task{}, fmt.Errorf("parse due date: %w", err)
	}

	t, err := scanTask(r.db.QueryRowContext(ctx, `
		INSERT INTO tasks (title, description, due, status_id, category_id, user_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+taskColumns,
		input.Title, input.Description, due, input.StatusID, input.CategoryID, userID))
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}

	return t, nil
}

func (r *Repository) Update(ctx context.Context, userID, id int64, input Input) (Task, error) {
	due, err := time.Parse(DateLayout, input.Due)
	if err != nil {
		return Task{}, fmt.Errorf("parse due date: %w", err)
	}

	t, err := scanTask(r.db.QueryRowContext(ctx, `
		UPDATE tasks
		SET title = $3, description = $4, due = $5, status_id = $6, category_id = $7, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING `+taskColumns,
		id, userID, input.Title, input.Description, due, input.StatusID, input.CategoryID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, fmt.Errorf("update task: %w", err)
	}

	return t, nil
}

func (r *Repository) Delete(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}
