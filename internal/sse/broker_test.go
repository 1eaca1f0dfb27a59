package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func drain(ch chan []byte) []string {
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe("s1")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishRoutesByTopic(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	mine := b.Subscribe("s1")
	defer b.Unsubscribe(mine)
	other := b.Subscribe("s2")
	defer b.Unsubscribe(other)

	b.Publish(Event{Topic: "s1", Type: EventIndexReady, Data: map[string]int{"chunks": 12}})

	select {
	case msg := <-mine:
		s := string(msg)
		if !strings.Contains(s, "event: index.ready") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"chunks":12`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}

	time.Sleep(50 * time.Millisecond)
	if got := drain(other); len(got) != 0 {
		t.Errorf("other session received %v", got)
	}
}

func TestPublishWithoutTopicReachesAll(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	a := b.Subscribe("s1")
	defer b.Unsubscribe(a)
	c := b.Subscribe("s2")
	defer b.Unsubscribe(c)

	b.Publish(Event{Type: EventCatalogChanged, Data: map[string]string{}})
	time.Sleep(50 * time.Millisecond)

	if len(drain(a)) != 1 || len(drain(c)) != 1 {
		t.Fatal("broadcast not delivered to every client")
	}
}

func TestPublishProgressThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("s1")
	defer b.Unsubscribe(ch)

	// First report passes, the second is throttled, the final always passes.
	b.PublishProgress("s1", 16, 64)
	b.PublishProgress("s1", 32, 64)
	b.PublishProgress("s1", 64, 64)

	time.Sleep(50 * time.Millisecond)
	got := drain(ch)
	if len(got) != 2 {
		t.Fatalf("progress events = %d, want 2: %v", len(got), got)
	}
	if !strings.Contains(got[1], `"done":64`) {
		t.Errorf("final progress missing: %q", got[1])
	}
}

func TestServe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.Serve(w, req, "s1")
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Topic: "s1", Type: EventAnswerReady, Data: map[string]string{"kind": "answered"}})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: answer.ready") {
		t.Errorf("handler output missing event: %q", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe("s1")
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Topic: "s1", Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestConcurrentPublishers(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				b.PublishProgress("s1", j, 20)
			}
		}()
	}
	wg.Wait()
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe("s1")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: EventSessionReset})
	b.PublishProgress("s1", 1, 2)
}
