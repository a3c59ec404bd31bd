package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/payload"
)

// SubmitRequest contains the parameters for inserting a pending job.
type SubmitRequest struct {
	Type        payload.JobType `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	WorkspaceID string          `json:"workspace_id"`
}

// InsertJob inserts a new pending job row and returns it.
// The payload is immutable after this point.
func (s *Store) InsertJob(req SubmitRequest) (*Job, error) {
	if !req.Type.Valid() {
		return nil, fmt.Errorf("unknown job type %q", req.Type)
	}
	if req.WorkspaceID == "" {
		return nil, fmt.Errorf("workspace id is required")
	}

	job := &Job{
		ID:          NewJobID(),
		Type:        req.Type,
		Payload:     req.Payload,
		Status:      StatusPending,
		Priority:    payload.Priority(req.Type),
		WorkspaceID: req.WorkspaceID,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := s.db.Write.Exec(`
		INSERT INTO jobs (id, type, payload, status, priority, workspace_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, job.ID, string(job.Type), string(job.Payload), job.Status, job.Priority, job.WorkspaceID, formatTime(job.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

const jobColumns = "id, type, payload, status, priority, workspace_id, error, created_at, started_at, completed_at"

func scanJob(row interface{ Scan(...any) error }) (*Job, error) {
	var j Job
	var typ, pl, createdAt string
	var errMsg, startedAt, completedAt sql.NullString
	err := row.Scan(&j.ID, &typ, &pl, &j.Status, &j.Priority, &j.WorkspaceID,
		&errMsg, &createdAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	j.Type = payload.JobType(typ)
	j.Payload = json.RawMessage(pl)
	setNullableString(&j.Error, errMsg)
	j.CreatedAt = parseTime(createdAt)
	j.StartedAt = parseNullableTime(startedAt)
	j.CompletedAt = parseNullableTime(completedAt)
	return &j, nil
}

// GetJob returns a job by id, or ErrJobNotFound.
func (s *Store) GetJob(id string) (*Job, error) {
	row := s.db.Read.QueryRow("SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job %q: %w", id, ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs returns jobs ordered by creation time descending. An empty
// workspaceID lists every workspace.
func (s *Store) ListJobs(workspaceID string) ([]*Job, error) {
	query := "SELECT " + jobColumns + " FROM jobs"
	var args []any
	if workspaceID != "" {
		query += " WHERE workspace_id = ?"
		args = append(args, workspaceID)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.Read.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// CountProcessing returns the global number of rows currently processing,
// across every orchestrator process sharing this store.
func (s *Store) CountProcessing() (int, error) {
	var n int
	err := s.db.Read.QueryRow("SELECT COUNT(*) FROM jobs WHERE status = ?", StatusProcessing).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count processing jobs: %w", err)
	}
	return n, nil
}

// HasPending reports whether any pending rows exist.
func (s *Store) HasPending() (bool, error) {
	var one int
	err := s.db.Read.QueryRow("SELECT 1 FROM jobs WHERE status = ? LIMIT 1", StatusPending).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probe pending jobs: %w", err)
	}
	return true, nil
}

// CountByStatus returns job counts keyed by status.
func (s *Store) CountByStatus() (map[string]int, error) {
	rows, err := s.db.Read.Query("SELECT status, COUNT(*) FROM jobs GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count jobs by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
