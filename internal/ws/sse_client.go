package ws

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
)

// SSEClient streams hub events as Server-Sent Events for clients that cannot
// hold a websocket open.
type SSEClient struct {
	mu      sync.Mutex
	writer  io.Writer
	flusher http.Flusher
	log     *slog.Logger
	closed  bool
	seq     uint64
	done    chan struct{}
}

// NewSSEClient builds an SSE client and writes the reconnect hint.
func NewSSEClient(writer io.Writer, flusher http.Flusher, logger *slog.Logger) *SSEClient {
	c := &SSEClient{writer: writer, flusher: flusher, log: logger, done: make(chan struct{})}
	if _, err := fmt.Fprint(writer, "retry: 3000\n\n"); err == nil {
		flusher.Flush()
	}
	return c
}

// Send emits a data event to the SSE stream.
func (c *SSEClient) Send(payload []byte) error {
	return c.write(func(w io.Writer) error {
		c.seq++
		_, err := fmt.Fprintf(w, "id: %d\ndata: %s\n\n", c.seq, payload)
		return err
	})
}

// Heartbeat emits a comment frame to keep intermediaries from timing out.
func (c *SSEClient) Heartbeat() error {
	return c.write(func(w io.Writer) error {
		_, err := fmt.Fprint(w, ": ping\n\n")
		return err
	})
}

func (c *SSEClient) write(fn func(io.Writer) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return io.EOF
	}
	if err := fn(c.writer); err != nil {
		c.closeLocked()
		c.log.Warn("sse write failed", "error", err)
		return err
	}
	c.flusher.Flush()
	return nil
}

// Close marks the stream as closed.
func (c *SSEClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *SSEClient) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

// Done is closed once the stream has been closed by the hub or a failed write.
func (c *SSEClient) Done() <-chan struct{} { return c.done }
