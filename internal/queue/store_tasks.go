package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewTask inserts a pending task for a source URL.
func (s *Store) NewTask(ctx context.Context, sourceURL, title string) (*Task, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	id := uuid.NewString()

	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO tasks (
            id, source_url, title, status, created_at, updated_at,
            progress_percent
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id,
		sourceURL,
		nullableString(title),
		StatusPending,
		timestamp,
		timestamp,
		0.0,
	); err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a task by identifier. Returns nil without error when the
// task does not exist.
func (s *Store) GetByID(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// FindBySourceURL returns the first task matching a source URL.
func (s *Store) FindBySourceURL(ctx context.Context, sourceURL string) (*Task, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE source_url = ? ORDER BY created_at LIMIT 1`,
		sourceURL,
	)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by source url: %w", err)
	}
	return task, nil
}

// Update persists changes to an existing task. The status column is not
// written here; status changes go through Transition.
func (s *Store) Update(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task is nil")
	}
	task.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE tasks
         SET source_url = ?, title = ?, description = ?, duration_seconds = ?,
             media_path = ?, audio_path = ?, subtitle_path = ?, burned_media_path = ?,
             metadata_json = ?, findings_json = ?, degraded = ?, qc_score = ?,
             retry_counts_json = ?, progress_stage = ?, progress_percent = ?,
             progress_message = ?, error_stage = ?, error_class = ?,
             error_attempts = ?, error_message = ?, external_id = ?,
             updated_at = ?, last_heartbeat = ?
         WHERE id = ?`,
		task.SourceURL,
		nullableString(task.Title),
		nullableString(task.Description),
		task.DurationSeconds,
		nullableString(task.MediaPath),
		nullableString(task.AudioPath),
		nullableString(task.SubtitlePath),
		nullableString(task.BurnedMediaPath),
		nullableString(task.MetadataJSON),
		nullableString(task.FindingsJSON),
		boolToInt(task.Degraded),
		task.QCScore,
		nullableString(task.RetryCountsJSON),
		nullableString(task.ProgressStage),
		task.ProgressPercent,
		nullableString(task.ProgressMessage),
		nullableString(task.ErrorStage),
		nullableString(task.ErrorClass),
		task.ErrorAttempts,
		nullableString(task.ErrorMessage),
		nullableString(task.ExternalID),
		task.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(task.LastHeartbeat),
		task.ID,
	); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// TasksByStatus returns tasks matching a status ordered by creation time.
func (s *Store) TasksByStatus(ctx context.Context, status Status) ([]*Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE status = ? ORDER BY created_at`, status)
	if err != nil {
		return nil, fmt.Errorf("query by status: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// List returns tasks filtered by status set (or all tasks when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Task, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + taskColumns + ` FROM tasks`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// NextForStatuses returns the oldest task matching any of the provided statuses.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Task, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE status IN (` + placeholders + `) ORDER BY created_at LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, args...)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Remove deletes a task by identifier.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearCompleted removes only completed tasks from the queue.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM tasks WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only failed tasks from the queue.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM tasks WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all tasks from the queue.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM tasks`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}
