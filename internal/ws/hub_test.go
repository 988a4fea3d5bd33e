package ws

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Fallenproud/create.xyzdashboard/internal/domain"
)

type recordingSubscriber struct {
	mu       sync.Mutex
	payloads [][]byte
	failWith error
	closed   bool
	got      chan struct{}
}

func newRecordingSubscriber() *recordingSubscriber {
	return &recordingSubscriber{got: make(chan struct{}, 16)}
}

func (s *recordingSubscriber) Send(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.payloads = append(s.payloads, append([]byte(nil), p...))
	s.got <- struct{}{}
	return nil
}

func (s *recordingSubscriber) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *recordingSubscriber) wait(t *testing.T) {
	t.Helper()
	select {
	case <-s.got:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for payload")
	}
}

func TestHubDeliversByTopic(t *testing.T) {
	h := NewHub()
	defer h.Close()

	a := newRecordingSubscriber()
	b := newRecordingSubscriber()
	h.Register(DeploymentTopic("p1"), a)
	h.Register(DeploymentTopic("p2"), b)

	h.DeploymentUpdated(domain.Deployment{ID: "d1", ProjectID: "p1", Status: domain.DeploymentStatusPending})
	a.wait(t)

	var evt struct {
		Type string            `json:"type"`
		Data domain.Deployment `json:"data"`
	}
	if err := json.Unmarshal(a.payloads[0], &evt); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if evt.Type != EventDeployment || evt.Data.ID != "d1" {
		t.Fatalf("unexpected event %+v", evt)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.payloads) != 0 {
		t.Fatalf("expected no payload for other project, got %d", len(b.payloads))
	}
}

func TestHubDropsFailingSubscriber(t *testing.T) {
	h := NewHub()
	defer h.Close()

	bad := newRecordingSubscriber()
	bad.failWith = errors.New("broken pipe")
	good := newRecordingSubscriber()
	topic := PresenceTopic("p1")
	h.Register(topic, bad)
	h.Register(topic, good)

	h.PresenceChanged("p1", nil)
	good.wait(t)

	if n := h.Subscribers(topic); n != 1 {
		t.Fatalf("expected 1 subscriber after failure, got %d", n)
	}
	bad.mu.Lock()
	defer bad.mu.Unlock()
	if !bad.closed {
		t.Fatal("expected failing subscriber to be closed")
	}
	if !strings.Contains(string(good.payloads[0]), `"data":[]`) {
		t.Fatalf("expected empty online list, got %s", good.payloads[0])
	}
}

func TestHubUnregister(t *testing.T) {
	h := NewHub()
	defer h.Close()

	s := newRecordingSubscriber()
	h.Register("t", s)
	if n := h.Subscribers("t"); n != 1 {
		t.Fatalf("expected 1 subscriber, got %d", n)
	}
	h.Unregister("t", s)
	if n := h.Subscribers("t"); n != 0 {
		t.Fatalf("expected 0 subscribers, got %d", n)
	}
}

func TestSSEClientFramesEvents(t *testing.T) {
	rec := httptest.NewRecorder()
	c := NewSSEClient(rec, rec, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := c.Send([]byte(`{"type":"deployment"}`)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := c.Heartbeat(); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	c.Close()
	if err := c.Send([]byte("late")); err != io.EOF {
		t.Fatalf("expected io.EOF after close, got %v", err)
	}
	select {
	case <-c.Done():
	default:
		t.Fatal("expected done channel closed")
	}

	body := rec.Body.String()
	for _, want := range []string{"retry: 3000\n\n", "id: 1\ndata: {\"type\":\"deployment\"}\n\n", ": ping\n\n"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in body %q", want, body)
		}
	}
}
