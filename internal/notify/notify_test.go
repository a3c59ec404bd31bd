package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/notify"
)

func TestPublishReachesSubscriber(t *testing.T) {
	h := notify.NewHub()
	msgs, cancel := h.Subscribe(notify.ChannelJob)
	defer cancel()

	h.Publish(context.Background(), notify.ChannelJob, "job_1")

	select {
	case msg := <-msgs:
		if msg.Channel != notify.ChannelJob || msg.Payload != "job_1" {
			t.Errorf("got %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never received message")
	}
}

func TestChannelFiltering(t *testing.T) {
	h := notify.NewHub()
	msgs, cancel := h.Subscribe(notify.ChannelFolder)
	defer cancel()

	h.Publish(context.Background(), notify.ChannelJob, "job_1")
	h.Publish(context.Background(), notify.ChannelFolder, "f1")

	select {
	case msg := <-msgs:
		if msg.Channel != notify.ChannelFolder {
			t.Errorf("received %q, want folder-only", msg.Channel)
		}
	case <-time.After(time.Second):
		t.Fatal("folder message not delivered")
	}
	select {
	case msg := <-msgs:
		t.Errorf("unexpected extra message %+v", msg)
	default:
	}
}

func TestSubscribeAllChannels(t *testing.T) {
	h := notify.NewHub()
	msgs, cancel := h.Subscribe()
	defer cancel()

	h.Publish(context.Background(), notify.ChannelUseCase, "u1")

	select {
	case msg := <-msgs:
		if msg.Channel != notify.ChannelUseCase {
			t.Errorf("channel = %q", msg.Channel)
		}
	case <-time.After(time.Second):
		t.Fatal("catch-all subscriber missed message")
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	h := notify.NewHub()
	_, cancel := h.Subscribe(notify.ChannelJob)
	defer cancel()

	done := make(chan struct{})
	go func() {
		// Overflow the subscriber buffer; publishes must drop, not block.
		for i := 0; i < 1000; i++ {
			h.Publish(context.Background(), notify.ChannelJob, "x")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestCancelClosesChannel(t *testing.T) {
	h := notify.NewHub()
	msgs, cancel := h.Subscribe(notify.ChannelJob)
	cancel()
	cancel() // idempotent

	if _, ok := <-msgs; ok {
		t.Error("channel should be closed after cancel")
	}

	// Publishing after cancel must not panic.
	h.Publish(context.Background(), notify.ChannelJob, "job_1")
}
