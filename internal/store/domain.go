package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/payload"
)

// Domain-entity helpers. Generators own these entities; the queue manager
// only reads them for the chaining guards and writes them for best-effort
// failure propagation.

// UpsertUseCase inserts or replaces a use-case row.
func (s *Store) UpsertUseCase(uc UseCase) error {
	createdAt := uc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Write.Exec(`
		INSERT INTO use_cases (id, folder_id, workspace_id, name, status, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			data = excluded.data
	`, uc.ID, uc.FolderID, uc.WorkspaceID, uc.Name, uc.Status, nullableJSON(uc.Data), formatTime(createdAt))
	if err != nil {
		return fmt.Errorf("upsert use case %q: %w", uc.ID, err)
	}
	return nil
}

// SetUseCaseStatus updates only the status of a use case.
func (s *Store) SetUseCaseStatus(id, status string) error {
	_, err := s.db.Write.Exec("UPDATE use_cases SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("set use case %q status: %w", id, err)
	}
	return nil
}

// AllUseCasesCompleted reports whether the folder has at least one use case
// and every one of them is completed.
func (s *Store) AllUseCasesCompleted(folderID string) (bool, error) {
	var total, completed int
	err := s.db.Read.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(status = ?), 0)
		FROM use_cases WHERE folder_id = ?
	`, EntityCompleted, folderID).Scan(&total, &completed)
	if err != nil {
		return false, fmt.Errorf("count use cases for folder %q: %w", folderID, err)
	}
	return total > 0 && completed == total, nil
}

// InsertExecutiveSummary records a generated summary for a folder.
func (s *Store) InsertExecutiveSummary(folderID, workspaceID, content string) (string, error) {
	id := NewSummaryID()
	_, err := s.db.Write.Exec(`
		INSERT INTO executive_summaries (id, folder_id, workspace_id, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, folderID, workspaceID, content, formatTime(time.Now()))
	if err != nil {
		return "", fmt.Errorf("insert executive summary for folder %q: %w", folderID, err)
	}
	return id, nil
}

// HasExecutiveSummary reports whether the folder already has a recorded
// summary or a live (non-failed) executive_summary job. This is the
// re-read-at-insertion-time guard against duplicate summary jobs; it is
// best-effort, not transactionally exclusive across the whole chain.
func (s *Store) HasExecutiveSummary(folderID string) (bool, error) {
	var one int
	err := s.db.Read.QueryRow(
		"SELECT 1 FROM executive_summaries WHERE folder_id = ? LIMIT 1", folderID,
	).Scan(&one)
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("probe executive summary for folder %q: %w", folderID, err)
	}
	if err == nil {
		return true, nil
	}

	err = s.db.Read.QueryRow(`
		SELECT 1 FROM jobs
		WHERE type = ? AND status != ? AND json_extract(payload, '$.folderId') = ?
		LIMIT 1
	`, string(payload.TypeExecutiveSummary), StatusFailed, folderID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probe executive summary jobs for folder %q: %w", folderID, err)
	}
	return true, nil
}

// UpsertDocument inserts or replaces a document row.
func (s *Store) UpsertDocument(doc Document) error {
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	status := doc.Status
	if status == "" {
		status = EntityPending
	}
	_, err := s.db.Write.Exec(`
		INSERT INTO documents (id, workspace_id, name, status, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status
	`, doc.ID, doc.WorkspaceID, doc.Name, status, formatTime(createdAt))
	if err != nil {
		return fmt.Errorf("upsert document %q: %w", doc.ID, err)
	}
	return nil
}

// GetDocument returns a document row, or nil if it does not exist.
func (s *Store) GetDocument(id string) (*Document, error) {
	var d Document
	var errMsg sql.NullString
	var createdAt string
	err := s.db.Read.QueryRow(`
		SELECT id, workspace_id, name, status, error, created_at
		FROM documents WHERE id = ?
	`, id).Scan(&d.ID, &d.WorkspaceID, &d.Name, &d.Status, &errMsg, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document %q: %w", id, err)
	}
	setNullableString(&d.Error, errMsg)
	d.CreatedAt = parseTime(createdAt)
	return &d, nil
}

// MarkDocumentFailed flips a document to failed with a sanitized message.
func (s *Store) MarkDocumentFailed(id, errMsg string) error {
	_, err := s.db.Write.Exec(`
		UPDATE documents SET status = ?, error = ? WHERE id = ?
	`, EntityFailed, SanitizeError(errMsg), id)
	if err != nil {
		return fmt.Errorf("mark document %q failed: %w", id, err)
	}
	return nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
