package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/payload"
	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/store"
)

// devLatency approximates a model round trip so the dev queue behaves like
// the real one under load.
const devLatency = 300 * time.Millisecond

// NewDevRegistry returns generators for every job type that fabricate
// plausible results without calling any model. They write the same domain
// rows the real generators would, so chaining behaves identically.
func NewDevRegistry(s *store.Store) Registry {
	r := Registry{}

	r.Register(payload.TypeOrganizationEnrich, Func(
		func(ctx context.Context, job *store.Job) (json.RawMessage, error) {
			if err := devSleep(ctx); err != nil {
				return nil, err
			}
			return json.RawMessage(`{"enriched":true}`), nil
		}))

	r.Register(payload.TypeUseCaseList, Func(
		func(ctx context.Context, job *store.Job) (json.RawMessage, error) {
			if err := devSleep(ctx); err != nil {
				return nil, err
			}
			decoded, err := payload.Decode(job.Type, job.Payload)
			if err != nil {
				return nil, err
			}
			list := decoded.(payload.UseCaseList)
			count := list.Count
			if count <= 0 {
				count = 3
			}
			result := UseCaseListResult{}
			for i := 0; i < count; i++ {
				id := fmt.Sprintf("%s-uc-%d", list.FolderID, i+1)
				name := fmt.Sprintf("Draft use case %d", i+1)
				if err := s.UpsertUseCase(store.UseCase{
					ID:          id,
					FolderID:    list.FolderID,
					WorkspaceID: job.WorkspaceID,
					Name:        name,
					Status:      store.EntityPending,
				}); err != nil {
					return nil, err
				}
				result.UseCases = append(result.UseCases, UseCaseStub{ID: id, Name: name})
			}
			return json.Marshal(result)
		}))

	r.Register(payload.TypeUseCaseDetail, Func(
		func(ctx context.Context, job *store.Job) (json.RawMessage, error) {
			if err := devSleep(ctx); err != nil {
				return nil, err
			}
			decoded, err := payload.Decode(job.Type, job.Payload)
			if err != nil {
				return nil, err
			}
			detail := decoded.(payload.UseCaseDetail)
			data, _ := json.Marshal(map[string]string{
				"description": "Placeholder detail for " + detail.UseCaseName,
			})
			if err := s.UpsertUseCase(store.UseCase{
				ID:          detail.UseCaseID,
				FolderID:    detail.FolderID,
				WorkspaceID: job.WorkspaceID,
				Name:        detail.UseCaseName,
				Status:      store.EntityCompleted,
				Data:        data,
			}); err != nil {
				return nil, err
			}
			return json.RawMessage(`{}`), nil
		}))

	r.Register(payload.TypeExecutiveSummary, Func(
		func(ctx context.Context, job *store.Job) (json.RawMessage, error) {
			if err := devSleep(ctx); err != nil {
				return nil, err
			}
			decoded, err := payload.Decode(job.Type, job.Payload)
			if err != nil {
				return nil, err
			}
			sum := decoded.(payload.ExecutiveSummary)
			if _, err := s.InsertExecutiveSummary(sum.FolderID, job.WorkspaceID, "Placeholder executive summary."); err != nil {
				return nil, err
			}
			return json.RawMessage(`{}`), nil
		}))

	r.Register(payload.TypeChatMessage, Func(
		func(ctx context.Context, job *store.Job) (json.RawMessage, error) {
			if err := devSleep(ctx); err != nil {
				return nil, err
			}
			return json.RawMessage(`{"reply":"This is a placeholder assistant reply."}`), nil
		}))

	r.Register(payload.TypeDocumentSummary, Func(
		func(ctx context.Context, job *store.Job) (json.RawMessage, error) {
			if err := devSleep(ctx); err != nil {
				return nil, err
			}
			return json.RawMessage(`{"summary":"Placeholder document summary."}`), nil
		}))

	return r
}

func devSleep(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(devLatency):
		return nil
	}
}
