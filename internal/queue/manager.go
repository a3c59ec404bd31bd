// Package queue is the job orchestration engine: it schedules pending job
// rows from the shared store under a global concurrency budget, dispatches
// them to generators, tracks in-flight cancellation handles, and chains
// dependent jobs.
//
// Multiple manager processes may share one store; correctness of the global
// budget rests entirely on the store's atomic claim, not on any in-process
// state. Known gap: if a process crashes mid-job, its rows stay processing
// forever. There is no lease, heartbeat, or reaper; CancelForScope is the
// manual cleanup path.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/generate"
	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/notify"
	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/payload"
	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/settings"
	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/store"
	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/stream"
)

// ErrNotAccepting is returned by Submit while the manager is paused or in
// the middle of a global cancel. The job was not queued.
var ErrNotAccepting = errors.New("queue manager is not accepting jobs")

const (
	// Sleep when idle but the global budget is saturated by other processes.
	idleSleep = 200 * time.Millisecond
	// Backoff after a store connectivity error during claim/probe.
	storeBackoff = time.Second
	// How long CancelAll waits for in-flight workers to observe the abort.
	cancelDrainTimeout = 30 * time.Second

	drainPollInterval = 10 * time.Millisecond
)

// Options wires the manager's collaborators.
type Options struct {
	Store      *store.Store
	Generators generate.Registry
	Notifier   notify.Publisher // defaults to an in-process hub
	Streams    *stream.Log      // optional; used for document failure events
	Settings   *settings.Settings
}

// Manager owns the scheduling loop for one process.
type Manager struct {
	store    *store.Store
	gens     generate.Registry
	notifier notify.Publisher
	streams  *stream.Log
	settings *settings.Settings
	tracer   trace.Tracer

	mu          sync.Mutex
	handles     map[string]context.CancelCauseFunc
	paused      bool
	cancelling  bool
	loopRunning bool
	pendingWake bool
	inflight    int

	workerDone chan struct{} // coalesced worker-completion signal
}

// New creates a Manager. The scheduling loop starts lazily on first Submit.
func New(opts Options) *Manager {
	if opts.Store == nil {
		panic("queue: Options.Store is required")
	}
	if opts.Generators == nil {
		opts.Generators = generate.Registry{}
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.NewHub()
	}
	if opts.Settings == nil {
		opts.Settings = settings.Static(settings.Config{})
	}
	return &Manager{
		store:      opts.Store,
		gens:       opts.Generators,
		notifier:   opts.Notifier,
		streams:    opts.Streams,
		settings:   opts.Settings,
		tracer:     otel.Tracer("queue"),
		handles:    make(map[string]context.CancelCauseFunc),
		workerDone: make(chan struct{}, 1),
	}
}

// Submit validates and inserts a pending job, notifies observers, and makes
// sure the scheduling loop is running. Returns ErrNotAccepting while paused
// or cancelling: the job was not queued and the caller must not assume
// otherwise.
func (m *Manager) Submit(ctx context.Context, typ payload.JobType, raw json.RawMessage, workspaceID string) (string, error) {
	if err := payload.Validate(typ, raw); err != nil {
		return "", err
	}

	m.mu.Lock()
	if m.paused || m.cancelling {
		m.mu.Unlock()
		return "", ErrNotAccepting
	}
	m.mu.Unlock()

	job, err := m.store.InsertJob(store.SubmitRequest{
		Type:        typ,
		Payload:     raw,
		WorkspaceID: workspaceID,
	})
	if err != nil {
		return "", err
	}

	m.publishJob(ctx, job.ID, store.StatusPending)
	m.wakeLoop()
	return job.ID, nil
}

// GetJob returns a job row.
func (m *Manager) GetJob(id string) (*store.Job, error) {
	return m.store.GetJob(id)
}

// ListJobs returns jobs newest-first, optionally scoped to a workspace.
func (m *Manager) ListJobs(workspaceID string) ([]*store.Job, error) {
	return m.store.ListJobs(workspaceID)
}

// Stats summarizes the queue for operators.
type Stats struct {
	ByStatus    map[string]int `json:"by_status"`
	Inflight    int            `json:"inflight"`
	Concurrency int            `json:"concurrency"`
	Paused      bool           `json:"paused"`
}

// Stats returns current queue counts. ByStatus is global to the shared store;
// Inflight counts only this process's workers.
func (m *Manager) Stats() (Stats, error) {
	counts, err := m.store.CountByStatus()
	if err != nil {
		return Stats{}, err
	}
	m.mu.Lock()
	inflight, paused := m.inflight, m.paused
	m.mu.Unlock()
	return Stats{
		ByStatus:    counts,
		Inflight:    inflight,
		Concurrency: m.settings.Queue().Concurrency,
		Paused:      paused,
	}, nil
}

// Pause stops new claims. In-flight work is not interrupted.
func (m *Manager) Pause() {
	m.mu.Lock()
	m.paused = true
	m.mu.Unlock()
	slog.Info("queue manager paused")
}

// Resume lifts a pause and restarts the loop if it went idle.
func (m *Manager) Resume() {
	m.mu.Lock()
	m.paused = false
	m.mu.Unlock()
	slog.Info("queue manager resumed")
	m.wakeLoop()
}

// Drain blocks until no workers are in flight or the timeout elapses.
// Reports whether the in-flight set emptied.
func (m *Manager) Drain(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if m.inflightCount() == 0 {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(drainPollInterval)
	}
}

// CancelAll rejects new submissions, signals every in-flight worker to abort,
// and waits for them to finish. Cancellation is cooperative: a generator that
// never checks its context keeps its slot until it returns.
func (m *Manager) CancelAll(reason string) {
	m.mu.Lock()
	m.cancelling = true
	cancels := make([]context.CancelCauseFunc, 0, len(m.handles))
	for _, c := range m.handles {
		cancels = append(cancels, c)
	}
	m.mu.Unlock()

	slog.Info("cancelling all in-flight jobs", "count", len(cancels), "reason", reason)
	cause := fmt.Errorf("cancelled: %s", reason)
	for _, cancel := range cancels {
		cancel(cause)
	}

	if !m.Drain(cancelDrainTimeout) {
		slog.Warn("cancel drain timed out with workers still in flight")
	}

	m.mu.Lock()
	m.cancelling = false
	m.mu.Unlock()

	// The loop exits while cancelling; rows that stayed pending because the
	// budget was held by the aborted jobs still need claiming.
	m.wakeLoop()
}

// CancelForScope terminates a workspace's processing jobs: the rows are
// flipped to failed in the store first (so readers see them terminated even
// before the local abort propagates), then any matching in-process handles
// are signalled, then observers are notified per affected id.
func (m *Manager) CancelForScope(ctx context.Context, workspaceID, reason string) error {
	cause := fmt.Errorf("cancelled: %s", reason)
	ids, err := m.store.FailProcessingByWorkspace(workspaceID, cause.Error())
	if err != nil {
		return err
	}

	m.mu.Lock()
	cancels := make([]context.CancelCauseFunc, 0, len(ids))
	for _, id := range ids {
		if cancel, ok := m.handles[id]; ok {
			cancels = append(cancels, cancel)
		}
	}
	m.mu.Unlock()

	for _, cancel := range cancels {
		cancel(cause)
	}
	for _, id := range ids {
		m.publishJob(ctx, id, store.StatusFailed)
	}
	slog.Info("cancelled workspace jobs", "workspace_id", workspaceID, "count", len(ids))
	return nil
}

// ReloadConcurrencySettings re-reads the concurrency limit and poll interval
// from the settings source. The next loop iteration picks them up.
func (m *Manager) ReloadConcurrencySettings() error {
	if err := m.settings.Reload(); err != nil {
		return fmt.Errorf("reload queue settings: %w", err)
	}
	cfg := m.settings.Queue()
	slog.Info("queue settings reloaded",
		"concurrency", cfg.Concurrency,
		"processing_interval", cfg.ProcessingInterval)
	return nil
}

// wakeLoop ensures the scheduling loop is running (or will notice new work
// before exiting). Re-entrant; at most one loop runs per manager.
func (m *Manager) wakeLoop() {
	m.mu.Lock()
	m.pendingWake = true
	start := !m.loopRunning && !m.paused && !m.cancelling
	if start {
		m.loopRunning = true
	}
	m.mu.Unlock()
	if start {
		go m.loop()
	}
}

func (m *Manager) loop() {
	for {
		m.mu.Lock()
		if m.paused || m.cancelling {
			m.loopRunning = false
			m.mu.Unlock()
			return
		}
		m.pendingWake = false
		m.mu.Unlock()

		cfg := m.settings.Queue()
		jobs, err := m.store.ClaimPending(cfg.Concurrency)
		if err != nil {
			slog.Error("claim pending jobs", "error", err)
			time.Sleep(storeBackoff)
			continue
		}
		for _, job := range jobs {
			m.startWorker(job)
		}

		if m.inflightCount() > 0 {
			// Wait for a slot to free up locally, or re-probe after the
			// polling interval in case jobs owned by other processes
			// completed and freed budget.
			select {
			case <-m.workerDone:
			case <-time.After(cfg.ProcessingInterval):
			}
			continue
		}

		pending, err := m.store.HasPending()
		if err != nil {
			slog.Error("probe pending backlog", "error", err)
			time.Sleep(storeBackoff)
			continue
		}
		if pending {
			// Backlog exists but the budget is saturated elsewhere.
			time.Sleep(idleSleep)
			continue
		}

		m.mu.Lock()
		if m.pendingWake || m.inflight > 0 {
			m.mu.Unlock()
			continue
		}
		m.loopRunning = false
		m.mu.Unlock()
		return
	}
}

func (m *Manager) startWorker(job *store.Job) {
	m.mu.Lock()
	m.inflight++
	m.mu.Unlock()

	go func() {
		defer func() {
			m.mu.Lock()
			m.inflight--
			m.mu.Unlock()
			select {
			case m.workerDone <- struct{}{}:
			default:
			}
		}()
		m.runJob(job)
	}()
}

func (m *Manager) inflightCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inflight
}

// InflightHandles returns the number of registered cancellation handles.
func (m *Manager) InflightHandles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handles)
}

func (m *Manager) publishJob(ctx context.Context, id, status string) {
	msg, err := json.Marshal(map[string]string{"id": id, "status": status})
	if err != nil {
		return
	}
	m.notifier.Publish(ctx, notify.ChannelJob, string(msg))
}
