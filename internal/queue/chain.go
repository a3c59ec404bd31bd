package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/generate"
	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/payload"
	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/store"
)

// Chaining rules are fixed, not configurable: a completed usecase_list fans
// out one usecase_detail per stub, and the last completed usecase_detail of a
// folder triggers exactly one executive_summary. Nothing else chains.
func (m *Manager) chainAfter(job *store.Job, result json.RawMessage) {
	switch job.Type {
	case payload.TypeUseCaseList:
		m.chainUseCaseDetails(job, result)
	case payload.TypeUseCaseDetail:
		m.chainExecutiveSummary(job)
	}
}

func (m *Manager) chainUseCaseDetails(job *store.Job, result json.RawMessage) {
	stubs, err := generate.ParseUseCaseStubs(result)
	if err != nil {
		slog.Warn("usecase_list result not chainable", "job_id", job.ID, "error", err)
		return
	}
	if len(stubs) == 0 {
		return
	}

	decoded, err := payload.Decode(job.Type, job.Payload)
	if err != nil {
		slog.Warn("usecase_list payload unreadable", "job_id", job.ID, "error", err)
		return
	}
	list := decoded.(payload.UseCaseList)

	for _, stub := range stubs {
		detail := payload.UseCaseDetail{
			UseCaseID:   stub.ID,
			UseCaseName: stub.Name,
			FolderID:    list.FolderID,
			Model:       list.Model,
		}
		raw, err := json.Marshal(detail)
		if err != nil {
			slog.Error("marshal usecase_detail payload", "use_case_id", stub.ID, "error", err)
			continue
		}
		if _, err := m.Submit(context.Background(), payload.TypeUseCaseDetail, raw, job.WorkspaceID); err != nil {
			if errors.Is(err, ErrNotAccepting) {
				// Chaining is skipped while paused/cancelling, not retried.
				slog.Warn("chaining skipped: manager not accepting jobs", "job_id", job.ID)
				return
			}
			slog.Error("chain usecase_detail job", "use_case_id", stub.ID, "error", err)
		}
	}
}

func (m *Manager) chainExecutiveSummary(job *store.Job) {
	decoded, err := payload.Decode(job.Type, job.Payload)
	if err != nil {
		slog.Warn("usecase_detail payload unreadable", "job_id", job.ID, "error", err)
		return
	}
	detail := decoded.(payload.UseCaseDetail)

	done, err := m.store.AllUseCasesCompleted(detail.FolderID)
	if err != nil {
		slog.Error("check folder completion", "folder_id", detail.FolderID, "error", err)
		return
	}
	if !done {
		return
	}

	// Re-read at insertion time: this guard is the de-duplication mechanism
	// against racing usecase_detail completions. Best-effort, not
	// transactionally exclusive.
	has, err := m.store.HasExecutiveSummary(detail.FolderID)
	if err != nil {
		slog.Error("check existing summary", "folder_id", detail.FolderID, "error", err)
		return
	}
	if has {
		return
	}

	raw, err := json.Marshal(payload.ExecutiveSummary{
		FolderID: detail.FolderID,
		Model:    detail.Model,
	})
	if err != nil {
		return
	}
	if _, err := m.Submit(context.Background(), payload.TypeExecutiveSummary, raw, job.WorkspaceID); err != nil {
		if errors.Is(err, ErrNotAccepting) {
			slog.Warn("chaining skipped: manager not accepting jobs", "folder_id", detail.FolderID)
			return
		}
		slog.Error("chain executive_summary job", "folder_id", detail.FolderID, "error", err)
	}
}
