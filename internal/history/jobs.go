package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"subline/internal/services"
)

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

// StatusRunning marks a job that has not finished. The terminal statuses are
// the services.Status* constants.
const StatusRunning = "running"

// Job is one recorded run.
type Job struct {
	ID               string
	Source           string
	Status           string
	Stage            string
	Language         string
	DetectedLanguage string
	ChunkCount       int
	SegmentCount     int
	OutputPath       string
	Error            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Terminal reports whether the job has finished.
func (j Job) Terminal() bool {
	return j.Status != StatusRunning
}

// Update carries the fields a stage changes. Nil fields are left as stored.
type Update struct {
	Status           *string
	Stage            *string
	DetectedLanguage *string
	ChunkCount       *int
	SegmentCount     *int
	OutputPath       *string
	Error            *string
}

const jobColumns = `id, source, status, stage, language, detected_language,
    chunk_count, segment_count, output_path, error, created_at, updated_at`

// Create inserts a running job.
func (s *Store) Create(ctx context.Context, id, source, language string) (*Job, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("job id required")
	}
	stamp := now()
	if _, err := s.exec(ctx,
		`INSERT INTO jobs (id, source, status, language, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, source, StatusRunning, nullableString(language), stamp, stamp,
	); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return s.Get(ctx, id)
}

// Apply writes the non-nil fields of u to job id.
func (s *Store) Apply(ctx context.Context, id string, u Update) error {
	sets := make([]string, 0, 8)
	args := make([]any, 0, 9)
	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if u.Status != nil {
		add("status", *u.Status)
	}
	if u.Stage != nil {
		add("stage", nullableString(*u.Stage))
	}
	if u.DetectedLanguage != nil {
		add("detected_language", nullableString(*u.DetectedLanguage))
	}
	if u.ChunkCount != nil {
		add("chunk_count", *u.ChunkCount)
	}
	if u.SegmentCount != nil {
		add("segment_count", *u.SegmentCount)
	}
	if u.OutputPath != nil {
		add("output_path", nullableString(*u.OutputPath))
	}
	if u.Error != nil {
		add("error", nullableString(*u.Error))
	}
	add("updated_at", now())
	args = append(args, id)

	res, err := s.exec(ctx, "UPDATE jobs SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update job %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetStage records the stage a running job entered.
func (s *Store) SetStage(ctx context.Context, id, stage string) error {
	return s.Apply(ctx, id, Update{Stage: &stage})
}

// Touch refreshes a job's updated_at so MarkAbandoned leaves it alone.
func (s *Store) Touch(ctx context.Context, id string) error {
	return s.Apply(ctx, id, Update{})
}

// Finish records a job's terminal status from its run error. cancelled
// overrides the status when the run stopped on request.
func (s *Store) Finish(ctx context.Context, id string, runErr error, cancelled bool) error {
	status := services.FailureStatus(runErr)
	if cancelled && runErr == nil {
		status = services.StatusCancelled
	}
	message := ""
	if runErr != nil {
		message = runErr.Error()
	}
	return s.Apply(ctx, id, Update{Status: &status, Error: &message})
}

// Get returns the job with id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// FindByPrefix resolves a unique job ID prefix, as printed by `history list`.
func (s *Store) FindByPrefix(ctx context.Context, prefix string) (*Job, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM jobs WHERE id LIKE ? ESCAPE '\' LIMIT 2`, escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("find job: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(ids) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, prefix)
	case 1:
		return s.Get(ctx, ids[0])
	default:
		return nil, fmt.Errorf("job id prefix %q is ambiguous", prefix)
	}
}

// List returns the most recent jobs first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Stats counts jobs by status.
func (s *Store) Stats(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()
	stats := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// MarkAbandoned fails jobs left running by a process that died. It returns
// the number of rows changed.
func (s *Store) MarkAbandoned(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(timeLayout)
	res, err := s.exec(ctx,
		`UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE status = ? AND updated_at < ?`,
		services.StatusFailed, "abandoned: process exited before the job finished",
		now(), StatusRunning, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("mark abandoned jobs: %w", err)
	}
	return res.RowsAffected()
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var job Job
	var stage, lang, detected, output, errText sql.NullString
	var createdRaw, updatedRaw string
	if err := scanner.Scan(
		&job.ID, &job.Source, &job.Status, &stage, &lang, &detected,
		&job.ChunkCount, &job.SegmentCount, &output, &errText, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}
	job.Stage = stage.String
	job.Language = lang.String
	job.DetectedLanguage = detected.String
	job.OutputPath = output.String
	job.Error = errText.String
	job.CreatedAt, _ = time.Parse(timeLayout, createdRaw)
	job.UpdatedAt, _ = time.Parse(timeLayout, updatedRaw)
	return &job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func escapeLike(value string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(value)
}
