// Package notify is a fire-and-forget broadcast used to wake interested
// observers (UI live-refresh) when a row changes. At-most-once delivery; a
// slow subscriber drops messages rather than blocking a publisher.
package notify

import (
	"context"
	"sync"
)

// One channel per domain.
const (
	ChannelJob          = "job"
	ChannelOrganization = "organization"
	ChannelFolder       = "folder"
	ChannelUseCase      = "usecase"
)

// Message is one published notification.
type Message struct {
	Channel string `json:"channel"`
	Payload string `json:"payload"`
}

// Publisher broadcasts a message on a channel. No delivery guarantee.
type Publisher interface {
	Publish(ctx context.Context, channel, payload string)
}

// Fanout publishes to several publishers in order.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, channel, payload string) {
	for _, p := range f {
		p.Publish(ctx, channel, payload)
	}
}

// Hub is the in-process Publisher. Subscribers receive messages for the
// channels they subscribed to; each subscriber has a small buffer and loses
// messages if it falls behind.
type Hub struct {
	mu   sync.RWMutex
	subs map[*subscription]struct{}
}

type subscription struct {
	channels map[string]struct{} // empty = all channels
	ch       chan Message
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*subscription]struct{})}
}

// Publish sends payload to every subscriber of channel. Never blocks.
func (h *Hub) Publish(_ context.Context, channel, payload string) {
	msg := Message{Channel: channel, Payload: payload}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		if len(sub.channels) > 0 {
			if _, ok := sub.channels[channel]; !ok {
				continue
			}
		}
		select {
		case sub.ch <- msg:
		default:
		}
	}
}

// Subscribe registers a subscriber for the given channels (all channels when
// none are given). The returned cancel func must be called to release the
// subscription; after cancel the message channel is closed.
func (h *Hub) Subscribe(channels ...string) (<-chan Message, func()) {
	sub := &subscription{
		channels: make(map[string]struct{}, len(channels)),
		ch:       make(chan Message, 64),
	}
	for _, c := range channels {
		sub.channels[c] = struct{}{}
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[sub]; ok {
			delete(h.subs, sub)
			close(sub.ch)
		}
		h.mu.Unlock()
	}
	return sub.ch, cancel
}
