package store

import (
	"fmt"
	"time"
)

// MarkCompleted moves a processing job to completed and stamps completed_at.
// A job already terminal is left untouched; status never regresses.
func (s *Store) MarkCompleted(id string) error {
	_, err := s.db.Write.Exec(`
		UPDATE jobs SET status = ?, completed_at = ?
		WHERE id = ? AND status = ?
	`, StatusCompleted, formatTime(time.Now()), id, StatusProcessing)
	if err != nil {
		return fmt.Errorf("mark job %q completed: %w", id, err)
	}
	return nil
}

// MarkFailed moves a processing job to failed with an error message.
// Same idempotency contract as MarkCompleted.
func (s *Store) MarkFailed(id, errMsg string) error {
	_, err := s.db.Write.Exec(`
		UPDATE jobs SET status = ?, completed_at = ?, error = ?
		WHERE id = ? AND status = ?
	`, StatusFailed, formatTime(time.Now()), errMsg, id, StatusProcessing)
	if err != nil {
		return fmt.Errorf("mark job %q failed: %w", id, err)
	}
	return nil
}

// FailProcessingByWorkspace flips every processing row in a workspace
// directly to failed and returns the affected ids. Readers see the rows as
// terminated immediately, even if the in-process abort signal is slow to
// reach the matching workers.
func (s *Store) FailProcessingByWorkspace(workspaceID, errMsg string) ([]string, error) {
	rows, err := s.db.Write.Query(`
		UPDATE jobs SET status = ?, completed_at = ?, error = ?
		WHERE workspace_id = ? AND status = ?
		RETURNING id
	`, StatusFailed, formatTime(time.Now()), errMsg, workspaceID, StatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("fail processing jobs for workspace %q: %w", workspaceID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan failed job id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
