package kv

// Key prefixes. Each prefix ends with '|' as a separator.
const (
	PrefixStreamEvent  = "se|"  // se|{stream_id}\x00{seq:8BE}
	PrefixStreamCursor = "sec|" // sec|{stream_id} => last assigned seq
)

const sep = '\x00'

// StreamEventKey returns the Pebble key for one stream event.
// Big-endian sequence keeps events ordered under a prefix scan.
func StreamEventKey(streamID string, seq uint64) []byte {
	k := append([]byte(PrefixStreamEvent), streamID...)
	k = append(k, sep)
	return PutUint64BE(k, seq)
}

// StreamEventPrefix returns the scan prefix for all events of a stream.
func StreamEventPrefix(streamID string) []byte {
	k := append([]byte(PrefixStreamEvent), streamID...)
	return append(k, sep)
}

// StreamCursorKey returns the Pebble key holding a stream's last sequence.
func StreamCursorKey(streamID string) []byte {
	return append([]byte(PrefixStreamCursor), streamID...)
}
