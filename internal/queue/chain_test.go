package queue_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/generate"
	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/payload"
	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/queue"
	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/store"
)

// chainRegistry wires generators the way the real server does: the list
// generator creates pending use-case rows, the detail generator completes
// them, the summary generator records the folder summary.
func chainRegistry(t *testing.T, s *store.Store, stubs int) generate.Registry {
	t.Helper()
	gens := generate.Registry{}

	gens.Register(payload.TypeUseCaseList, generate.Func(
		func(_ context.Context, job *store.Job) (json.RawMessage, error) {
			decoded, err := payload.Decode(job.Type, job.Payload)
			if err != nil {
				return nil, err
			}
			list := decoded.(payload.UseCaseList)
			result := generate.UseCaseListResult{}
			for i := 0; i < stubs; i++ {
				id := fmt.Sprintf("uc-%d", i)
				if err := s.UpsertUseCase(store.UseCase{
					ID:          id,
					FolderID:    list.FolderID,
					WorkspaceID: job.WorkspaceID,
					Name:        fmt.Sprintf("Use case %d", i),
					Status:      store.EntityPending,
				}); err != nil {
					return nil, err
				}
				result.UseCases = append(result.UseCases, generate.UseCaseStub{
					ID:   id,
					Name: fmt.Sprintf("Use case %d", i),
				})
			}
			return json.Marshal(result)
		}))

	gens.Register(payload.TypeUseCaseDetail, generate.Func(
		func(_ context.Context, job *store.Job) (json.RawMessage, error) {
			decoded, err := payload.Decode(job.Type, job.Payload)
			if err != nil {
				return nil, err
			}
			detail := decoded.(payload.UseCaseDetail)
			if err := s.SetUseCaseStatus(detail.UseCaseID, store.EntityCompleted); err != nil {
				return nil, err
			}
			return json.RawMessage(`{}`), nil
		}))

	gens.Register(payload.TypeExecutiveSummary, generate.Func(
		func(_ context.Context, job *store.Job) (json.RawMessage, error) {
			decoded, err := payload.Decode(job.Type, job.Payload)
			if err != nil {
				return nil, err
			}
			sum := decoded.(payload.ExecutiveSummary)
			if _, err := s.InsertExecutiveSummary(sum.FolderID, job.WorkspaceID, "summary"); err != nil {
				return nil, err
			}
			return json.RawMessage(`{}`), nil
		}))

	return gens
}

func jobsByType(t *testing.T, m *queue.Manager, typ payload.JobType) []*store.Job {
	t.Helper()
	all, err := m.ListJobs("")
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	var out []*store.Job
	for _, j := range all {
		if j.Type == typ {
			out = append(out, j)
		}
	}
	return out
}

func waitForChain(t *testing.T, m *queue.Manager, typ payload.JobType, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		jobs := jobsByType(t, m, typ)
		done := 0
		for _, j := range jobs {
			if j.Status == store.StatusCompleted {
				done++
			}
		}
		if done == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("never saw %d completed %s jobs", want, typ)
}

func TestListFansOutDetailJobs(t *testing.T) {
	s := testStore(t)
	m := testManager(t, s, chainRegistry(t, s, 3))

	_, err := m.Submit(context.Background(), payload.TypeUseCaseList,
		json.RawMessage(`{"folderId":"f1","input":"ops automation","count":3}`), "w1")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	waitForChain(t, m, payload.TypeUseCaseDetail, 3)

	details := jobsByType(t, m, payload.TypeUseCaseDetail)
	seen := map[string]bool{}
	for _, j := range details {
		decoded, err := payload.Decode(j.Type, j.Payload)
		if err != nil {
			t.Fatalf("decode detail payload: %v", err)
		}
		d := decoded.(payload.UseCaseDetail)
		if d.FolderID != "f1" {
			t.Errorf("detail job %s folder = %q, want f1", j.ID, d.FolderID)
		}
		seen[d.UseCaseID] = true
	}
	if len(seen) != 3 {
		t.Errorf("fanned out to %d distinct use cases, want 3", len(seen))
	}
}

func TestLastDetailTriggersSingleSummary(t *testing.T) {
	s := testStore(t)
	m := testManager(t, s, chainRegistry(t, s, 3))

	if _, err := m.Submit(context.Background(), payload.TypeUseCaseList,
		json.RawMessage(`{"folderId":"f1","count":3}`), "w1"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	waitForChain(t, m, payload.TypeExecutiveSummary, 1)
	if !m.Drain(2 * time.Second) {
		t.Fatal("drain timed out")
	}

	if got := len(jobsByType(t, m, payload.TypeExecutiveSummary)); got != 1 {
		t.Errorf("%d executive_summary jobs queued, want exactly 1", got)
	}
	has, err := s.HasExecutiveSummary("f1")
	if err != nil {
		t.Fatalf("HasExecutiveSummary: %v", err)
	}
	if !has {
		t.Error("summary row missing after chain completed")
	}
}

func TestCompletedFolderDoesNotChainSecondSummary(t *testing.T) {
	s := testStore(t)
	m := testManager(t, s, chainRegistry(t, s, 2))

	if _, err := m.Submit(context.Background(), payload.TypeUseCaseList,
		json.RawMessage(`{"folderId":"f1","count":2}`), "w1"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForChain(t, m, payload.TypeExecutiveSummary, 1)

	// A detail re-run on an already summarized folder completes but must not
	// enqueue another summary: the insertion-time guard sees the existing one.
	id, err := m.Submit(context.Background(), payload.TypeUseCaseDetail,
		json.RawMessage(`{"useCaseId":"uc-0","useCaseName":"Use case 0","folderId":"f1"}`), "w1")
	if err != nil {
		t.Fatalf("Submit rerun: %v", err)
	}
	waitForStatus(t, m, id, store.StatusCompleted)
	if !m.Drain(2 * time.Second) {
		t.Fatal("drain timed out")
	}

	if got := len(jobsByType(t, m, payload.TypeExecutiveSummary)); got != 1 {
		t.Errorf("%d executive_summary jobs after rerun, want 1", got)
	}
}

func TestIncompleteFolderDoesNotChainSummary(t *testing.T) {
	s := testStore(t)
	gens := chainRegistry(t, s, 2)
	// Replace the detail generator with one that leaves its use case pending,
	// so the folder never reaches all-completed.
	gens.Register(payload.TypeUseCaseDetail, fixedResult(`{}`))
	m := testManager(t, s, gens)

	if _, err := m.Submit(context.Background(), payload.TypeUseCaseList,
		json.RawMessage(`{"folderId":"f1","count":2}`), "w1"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForChain(t, m, payload.TypeUseCaseDetail, 2)
	if !m.Drain(2 * time.Second) {
		t.Fatal("drain timed out")
	}

	if got := len(jobsByType(t, m, payload.TypeExecutiveSummary)); got != 0 {
		t.Errorf("%d executive_summary jobs for incomplete folder, want 0", got)
	}
}
