package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/payload"
	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/store"
	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/stream"
)

// runJob executes one claimed job end to end: defensive re-read, dispatch to
// the matching generator under a cancellation handle, terminal bookkeeping,
// and chaining. It never panics the loop; every failure ends as a terminal
// row update local to this job.
func (m *Manager) runJob(job *store.Job) {
	cur, err := m.store.GetJob(job.ID)
	if err != nil {
		// A store failure here would otherwise strand a claimed row in
		// processing; fail it so the row reaches a terminal state.
		slog.Error("re-read claimed job", "job_id", job.ID, "error", err)
		m.failJob(context.Background(), job, fmt.Errorf("re-read claimed job: %w", err))
		return
	}
	if cur.Status != store.StatusProcessing {
		// Lost a race with external deletion or a scope cancel between claim
		// and start. Not an error.
		slog.Debug("skipping job no longer processing", "job_id", job.ID)
		return
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	m.mu.Lock()
	m.handles[job.ID] = cancel
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.handles, job.ID)
		m.mu.Unlock()
	}()

	m.publishJob(ctx, job.ID, store.StatusProcessing)

	spanCtx, span := m.tracer.Start(ctx, "queue.job",
		trace.WithAttributes(
			attribute.String("job.id", job.ID),
			attribute.String("job.type", string(job.Type)),
			attribute.String("job.workspace_id", job.WorkspaceID),
		))
	result, genErr := m.dispatch(spanCtx, cur)
	if genErr != nil {
		span.RecordError(genErr)
		span.SetStatus(codes.Error, genErr.Error())
	}
	span.End()

	if genErr != nil {
		m.failJob(context.Background(), cur, genErr)
		return
	}

	if err := m.store.MarkCompleted(job.ID); err != nil {
		slog.Error("mark job completed", "job_id", job.ID, "error", err)
	}
	m.publishJob(context.Background(), job.ID, store.StatusCompleted)
	m.chainAfter(cur, result)
}

// dispatch routes the job to its generator. When the abort handle fired, the
// cancel cause replaces whatever the generator returned so the persisted
// message follows the "cancelled: <reason>" convention.
func (m *Manager) dispatch(ctx context.Context, job *store.Job) (json.RawMessage, error) {
	gen, ok := m.gens.Lookup(job.Type)
	if !ok {
		return nil, fmt.Errorf("no generator registered for job type %q", job.Type)
	}

	result, err := gen.Generate(ctx, job)
	if err != nil {
		if ctx.Err() != nil {
			if cause := context.Cause(ctx); cause != nil {
				return nil, cause
			}
		}
		return nil, err
	}
	return result, nil
}

// failJob records the terminal failure and, for document summaries, pushes
// the failure onto the owning document and its stream. Side-effect failures
// are logged and swallowed; they never mask the job failure.
func (m *Manager) failJob(ctx context.Context, job *store.Job, genErr error) {
	msg := genErr.Error()
	if err := m.store.MarkFailed(job.ID, msg); err != nil {
		slog.Error("mark job failed", "job_id", job.ID, "error", err)
	}
	m.publishJob(ctx, job.ID, store.StatusFailed)
	slog.Warn("job failed", "job_id", job.ID, "type", job.Type, "error", msg)

	if job.Type == payload.TypeDocumentSummary {
		m.propagateDocumentFailure(job, msg)
	}
}

func (m *Manager) propagateDocumentFailure(job *store.Job, msg string) {
	decoded, err := payload.Decode(job.Type, job.Payload)
	if err != nil {
		slog.Warn("document failure propagation: bad payload", "job_id", job.ID, "error", err)
		return
	}
	doc := decoded.(payload.DocumentSummary)

	if err := m.store.MarkDocumentFailed(doc.DocumentID, msg); err != nil {
		slog.Warn("mark document failed", "document_id", doc.DocumentID, "error", err)
	}

	if m.streams == nil {
		return
	}
	data, err := json.Marshal(map[string]string{"error": store.SanitizeError(msg)})
	if err != nil {
		return
	}
	if _, err := m.streams.Append(DocumentStreamID(doc.DocumentID), stream.TypeError, data); err != nil {
		slog.Warn("append terminal stream event", "document_id", doc.DocumentID, "error", err)
	}
}

// DocumentStreamID names the event stream observers follow for a document.
func DocumentStreamID(documentID string) string {
	return "document:" + documentID
}
