// Package stream is an append-only, per-stream event log backed by Pebble.
// Generators write progress events to a stream while observers tail it; the
// queue manager appends a terminal "error" event when a document summary job
// fails so followers see a deterministic end state.
package stream

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/kv"
)

// Terminal event types.
const (
	TypeError = "error"
	TypeDone  = "done"
)

// Event is one sequenced record in a stream. Seq is strictly increasing per
// stream and never reused.
type Event struct {
	StreamID string          `json:"stream_id"`
	Seq      uint64          `json:"seq"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	AtNs     uint64          `json:"at_ns"`
}

// Log is a Pebble-backed event log. Safe for concurrent use.
type Log struct {
	db        *pebble.DB
	writeOpts *pebble.WriteOptions

	mu      sync.Mutex
	cursors map[string]uint64 // stream id -> last assigned seq
}

// Open opens (or creates) the event log under dir.
func Open(dir string) (*Log, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open stream log: %w", err)
	}
	return &Log{
		db:        db,
		writeOpts: pebble.Sync,
		cursors:   make(map[string]uint64),
	}, nil
}

// Append writes one event to streamID and returns its sequence number.
func (l *Log) Append(streamID, typ string, payload json.RawMessage) (uint64, error) {
	if streamID == "" {
		return 0, fmt.Errorf("stream id is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	seq, ok := l.cursors[streamID]
	if !ok {
		seq = l.loadCursor(streamID)
	}
	seq++

	ev := Event{
		StreamID: streamID,
		Seq:      seq,
		Type:     typ,
		Payload:  payload,
		AtNs:     uint64(time.Now().UnixNano()),
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return 0, fmt.Errorf("marshal stream event: %w", err)
	}

	batch := l.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(kv.StreamEventKey(streamID, seq), data, nil); err != nil {
		return 0, fmt.Errorf("set stream event key: %w", err)
	}
	if err := batch.Set(kv.StreamCursorKey(streamID), kv.PutUint64BE(nil, seq), nil); err != nil {
		return 0, fmt.Errorf("set stream cursor: %w", err)
	}
	if err := batch.Commit(l.writeOpts); err != nil {
		return 0, fmt.Errorf("commit stream event: %w", err)
	}

	l.cursors[streamID] = seq
	return seq, nil
}

// loadCursor reads the persisted cursor for a stream; 0 if none.
// Caller holds l.mu.
func (l *Log) loadCursor(streamID string) uint64 {
	val, closer, err := l.db.Get(kv.StreamCursorKey(streamID))
	if err != nil {
		return 0
	}
	defer closer.Close()
	if len(val) < 8 {
		return 0
	}
	return kv.GetUint64BE(val)
}

// Read returns up to limit events of streamID with Seq > fromSeq, in order.
func (l *Log) Read(streamID string, fromSeq uint64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	lower := kv.StreamEventKey(streamID, fromSeq+1)
	upper := prefixUpperBound(kv.StreamEventPrefix(streamID))

	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("open stream iterator: %w", err)
	}
	defer iter.Close()

	out := make([]Event, 0, limit)
	for iter.First(); iter.Valid() && len(out) < limit; iter.Next() {
		var ev Event
		if err := json.Unmarshal(iter.Value(), &ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("scan stream %q: %w", streamID, err)
	}
	return out, nil
}

// LastSeq returns the last assigned sequence for streamID, 0 if the stream
// has never been written.
func (l *Log) LastSeq(streamID string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if seq, ok := l.cursors[streamID]; ok {
		return seq
	}
	return l.loadCursor(streamID)
}

// Close closes the underlying Pebble database.
func (l *Log) Close() error {
	return l.db.Close()
}

// prefixUpperBound returns the smallest key greater than every key with the
// given prefix. The prefix always ends in the '\x00' separator, so bumping
// the final byte is sufficient.
func prefixUpperBound(prefix []byte) []byte {
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	upper[len(upper)-1]++
	return upper
}
