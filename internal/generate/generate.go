// Package generate defines the contract between the queue manager and the
// per-job-type business logic (organization enrichment, use-case list/detail
// generation, executive summaries, chat replies, document summaries). The
// manager treats generators as black boxes: run with a typed payload and a
// cancellable context, return a structured result or an error.
package generate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/payload"
	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/store"
)

// Generator runs one job. The context carries the cooperative abort signal;
// implementations are expected to check it at their own checkpoints, before
// and after each model call. The manager never force-kills a generator.
type Generator interface {
	Generate(ctx context.Context, job *store.Job) (json.RawMessage, error)
}

// Func adapts a plain function to the Generator interface.
type Func func(ctx context.Context, job *store.Job) (json.RawMessage, error)

func (f Func) Generate(ctx context.Context, job *store.Job) (json.RawMessage, error) {
	return f(ctx, job)
}

// Registry maps each job type to its generator. One entry per type.
type Registry map[payload.JobType]Generator

// Register binds a generator to a job type, replacing any previous binding.
func (r Registry) Register(t payload.JobType, g Generator) {
	r[t] = g
}

// Lookup returns the generator for t.
func (r Registry) Lookup(t payload.JobType) (Generator, bool) {
	g, ok := r[t]
	return g, ok
}

// UseCaseStub is one entry of a usecase_list generator's result. Each stub
// chains into a usecase_detail job.
type UseCaseStub struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UseCaseListResult is the structured result of a usecase_list generator.
type UseCaseListResult struct {
	UseCases []UseCaseStub `json:"useCases"`
}

// ParseUseCaseStubs extracts the stubs from a usecase_list result. A bare
// array is accepted as well as the wrapped form.
func ParseUseCaseStubs(result json.RawMessage) ([]UseCaseStub, error) {
	if len(result) == 0 {
		return nil, nil
	}
	var wrapped UseCaseListResult
	if err := json.Unmarshal(result, &wrapped); err == nil && wrapped.UseCases != nil {
		return wrapped.UseCases, nil
	}
	var bare []UseCaseStub
	if err := json.Unmarshal(result, &bare); err == nil {
		return bare, nil
	}
	return nil, fmt.Errorf("usecase_list result is neither {useCases:[...]} nor [...]")
}
