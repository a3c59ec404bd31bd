package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/generate"
	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/notify"
	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/payload"
	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/queue"
	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/settings"
	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/store"
)

func testServer(t *testing.T) (*Server, *notify.Hub) {
	t.Helper()
	db, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	gens := generate.Registry{}
	gens.Register(payload.TypeChatMessage, generate.Func(
		func(context.Context, *store.Job) (json.RawMessage, error) {
			return json.RawMessage(`{}`), nil
		}))

	hub := notify.NewHub()
	m := queue.New(queue.Options{
		Store:      store.NewStore(db),
		Generators: gens,
		Notifier:   hub,
		Settings: settings.Static(settings.Config{
			Concurrency:        2,
			ProcessingInterval: 20 * time.Millisecond,
		}),
	})
	return New(Options{Manager: m, Hub: hub, BindAddr: ":0"}), hub
}

func doRequest(srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rr.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := testServer(t)
	rr := doRequest(srv, "GET", "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestSubmitEndpoint(t *testing.T) {
	srv, _ := testServer(t)
	rr := doRequest(srv, "POST", "/api/v1/jobs", map[string]any{
		"type":        "chat_message",
		"payload":     map[string]string{"chatId": "c1", "messageId": "m1"},
		"workspaceId": "w1",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d, body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	var result struct {
		ID string `json:"id"`
	}
	decodeResponse(t, rr, &result)
	if result.ID == "" {
		t.Error("id is empty")
	}

	rr = doRequest(srv, "GET", "/api/v1/jobs/"+result.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d, body: %s", rr.Code, rr.Body.String())
	}
	var job store.Job
	decodeResponse(t, rr, &job)
	if job.Type != payload.TypeChatMessage {
		t.Errorf("type = %q", job.Type)
	}
}

func TestSubmitValidation(t *testing.T) {
	srv, _ := testServer(t)
	rr := doRequest(srv, "POST", "/api/v1/jobs", map[string]any{
		"type":        "chat_message",
		"payload":     map[string]string{"chatId": "c1"},
		"workspaceId": "w1",
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if !strings.Contains(rr.Body.String(), "INVALID_PAYLOAD") {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestSubmitRejectedWhilePaused(t *testing.T) {
	srv, _ := testServer(t)
	if rr := doRequest(srv, "POST", "/api/v1/queue/pause", map[string]any{}); rr.Code != http.StatusOK {
		t.Fatalf("pause status = %d", rr.Code)
	}
	rr := doRequest(srv, "POST", "/api/v1/jobs", map[string]any{
		"type":        "chat_message",
		"payload":     map[string]string{"chatId": "c1", "messageId": "m1"},
		"workspaceId": "w1",
	})
	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusConflict)
	}
	if rr := doRequest(srv, "POST", "/api/v1/queue/resume", map[string]any{}); rr.Code != http.StatusOK {
		t.Fatalf("resume status = %d", rr.Code)
	}
}

func TestGetJobNotFound(t *testing.T) {
	srv, _ := testServer(t)
	rr := doRequest(srv, "GET", "/api/v1/jobs/job_missing", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestListJobsByWorkspace(t *testing.T) {
	srv, _ := testServer(t)
	for _, ws := range []string{"w1", "w2"} {
		rr := doRequest(srv, "POST", "/api/v1/jobs", map[string]any{
			"type":        "chat_message",
			"payload":     map[string]string{"chatId": "c", "messageId": ws},
			"workspaceId": ws,
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("submit %s: %d", ws, rr.Code)
		}
	}

	rr := doRequest(srv, "GET", "/api/v1/jobs?workspace_id=w1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var result struct {
		Jobs []store.Job `json:"jobs"`
	}
	decodeResponse(t, rr, &result)
	if len(result.Jobs) != 1 || result.Jobs[0].WorkspaceID != "w1" {
		t.Errorf("jobs = %+v", result.Jobs)
	}
}

func TestQueueStats(t *testing.T) {
	srv, _ := testServer(t)
	rr := doRequest(srv, "POST", "/api/v1/jobs", map[string]any{
		"type":        "chat_message",
		"payload":     map[string]string{"chatId": "c1", "messageId": "m1"},
		"workspaceId": "w1",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("submit: %d", rr.Code)
	}

	rr = doRequest(srv, "GET", "/api/v1/queue/stats", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var stats queue.Stats
	decodeResponse(t, rr, &stats)
	if stats.Concurrency != 2 {
		t.Errorf("concurrency = %d, want 2", stats.Concurrency)
	}
	total := 0
	for _, n := range stats.ByStatus {
		total += n
	}
	if total != 1 {
		t.Errorf("total jobs = %d, want 1", total)
	}
}

func TestStreamsDisabled(t *testing.T) {
	srv, _ := testServer(t)
	rr := doRequest(srv, "GET", "/api/v1/streams/document:d1/events", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}

func TestSSEDeliversHubMessages(t *testing.T) {
	srv, hub := testServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/events?channels=job", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open SSE: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	// Publish after the subscription is live. A short retry loop covers the
	// window between the HTTP response and the hub registration.
	lines := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()
	go func() {
		for i := 0; i < 50; i++ {
			hub.Publish(context.Background(), notify.ChannelJob, `{"id":"job_x","status":"pending"}`)
			time.Sleep(20 * time.Millisecond)
		}
	}()

	deadline := time.After(5 * time.Second)
	var event, data string
	for event == "" || data == "" {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("SSE stream closed early")
			}
			if strings.HasPrefix(line, "event: ") {
				event = strings.TrimPrefix(line, "event: ")
			}
			if strings.HasPrefix(line, "data: ") {
				data = strings.TrimPrefix(line, "data: ")
			}
		case <-deadline:
			t.Fatal("no SSE event received")
		}
	}
	if event != notify.ChannelJob {
		t.Errorf("event = %q, want %q", event, notify.ChannelJob)
	}
	if !strings.Contains(data, "job_x") {
		t.Errorf("data = %q", data)
	}
}
