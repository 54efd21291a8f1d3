package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fortcodeproject/OCR/constants"
	"github.com/fortcodeproject/OCR/internal/entity"
)

// Job is one extraction attempt for one uploaded document.
type Job struct {
	ID           uuid.UUID
	Filename     string
	Status       constants.JobStatus
	OCRText      string
	Record       *entity.DocumentRecord
	Anomalies    []string
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

type JobRepository interface {
	Start(ctx context.Context, filename string) (*Job, error)
	FinishSuccess(ctx context.Context, jobID uuid.UUID, ocrText string, record entity.DocumentRecord, anomalies []string) error
	FinishFailure(ctx context.Context, jobID uuid.UUID, message string) error
	Get(ctx context.Context, jobID uuid.UUID) (*Job, error)
	ListCompleted(ctx context.Context) ([]*Job, error)
}

type jobRepo struct {
	db  *sql.DB
	log *slog.Logger
}

func NewJobRepository(db *sql.DB, log *slog.Logger) JobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &jobRepo{db: db, log: log}
}

func (r *jobRepo) Start(ctx context.Context, filename string) (*Job, error) {
	job := &Job{
		ID:        uuid.New(),
		Filename:  filename,
		Status:    constants.JobStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO extraction_jobs (id, filename, status, started_at) VALUES (?, ?, ?, ?)`,
		job.ID.String(), job.Filename, string(job.Status), job.StartedAt,
	)
	if err != nil {
		r.log.Error("extraction_job start failed", "filename", filename, "err", err)
		return nil, err
	}
	r.log.Info("extraction_job started", "job_id", job.ID, "filename", filename)
	return job, nil
}

func (r *jobRepo) FinishSuccess(ctx context.Context, jobID uuid.UUID, ocrText string, record entity.DocumentRecord, anomalies []string) error {
	recJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if anomalies == nil {
		anomalies = []string{}
	}
	anomJSON, err := json.Marshal(anomalies)
	if err != nil {
		return fmt.Errorf("marshal anomalies: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE extraction_jobs
		 SET status = ?, ocr_text = ?, record_json = ?, anomalies = ?, finished_at = ?
		 WHERE id = ?`,
		string(constants.JobStatusOK), ocrText, string(recJSON), string(anomJSON), time.Now().UTC(), jobID.String(),
	)
	if err != nil {
		r.log.Error("extraction_job finish(OK) failed", "job_id", jobID, "err", err)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("extraction_job %s not found", jobID)
	}
	r.log.Info("extraction_job finished (OK)", "job_id", jobID, "anomalies", len(anomalies))
	return nil
}

func (r *jobRepo) FinishFailure(ctx context.Context, jobID uuid.UUID, message string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE extraction_jobs SET status = ?, error_message = ?, finished_at = ? WHERE id = ?`,
		string(constants.JobStatusFailed), message, time.Now().UTC(), jobID.String(),
	)
	if err != nil {
		r.log.Error("extraction_job finish(FAILED) failed", "job_id", jobID, "err", err)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("extraction_job %s not found", jobID)
	}
	r.log.Warn("extraction_job finished (FAILED)", "job_id", jobID, "error", message)
	return nil
}

func (r *jobRepo) Get(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, filename, status, ocr_text, record_json, anomalies, error_message, started_at, finished_at
		 FROM extraction_jobs WHERE id = ?`, jobID.String())
	return scanJob(row)
}

func (r *jobRepo) ListCompleted(ctx context.Context) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, filename, status, ocr_text, record_json, anomalies, error_message, started_at, finished_at
		 FROM extraction_jobs WHERE status = ? ORDER BY started_at`, string(constants.JobStatusOK))
	if err != nil {
		return nil, err
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		id, status, recJSON, anomJSON string
		job                           Job
		finished                      sql.NullTime
	)
	err := row.Scan(&id, &job.Filename, &status, &job.OCRText, &recJSON, &anomJSON, &job.ErrorMessage, &job.StartedAt, &finished)
	if err != nil {
		return nil, err
	}
	job.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("corrupt job id %q: %w", id, err)
	}
	job.Status = constants.JobStatus(status)
	if finished.Valid {
		t := finished.Time
		job.FinishedAt = &t
	}
	if recJSON != "" {
		var rec entity.DocumentRecord
		if err := json.Unmarshal([]byte(recJSON), &rec); err != nil {
			return nil, fmt.Errorf("corrupt record for job %s: %w", id, err)
		}
		job.Record = &rec
	}
	if anomJSON != "" {
		if err := json.Unmarshal([]byte(anomJSON), &job.Anomalies); err != nil {
			return nil, fmt.Errorf("corrupt anomalies for job %s: %w", id, err)
		}
	}
	return &job, nil
}
