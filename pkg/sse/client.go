/*
Package sse implements the client side of the tape event stream. The
serving side lives in pkg/service/sse; this package is for tooling that
watches a running service, such as the events command.
*/
package sse

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/theapemachine/bub-go/pkg/metrics"
)

const (
	maxRetries = 3
	baseDelay  = time.Second
)

/*
Event is one server-sent event. The tape stream sends unnamed events
whose Data is a JSON-encoded tape event.
*/
type Event struct {
	Name string
	Data []byte
}

/*
Client subscribes to an SSE endpoint and hands each event to a handler.
It reconnects on stream EOF and gives up after repeated connection
failures. Not safe for concurrent Subscribe calls.
*/
type Client struct {
	URL     string
	Headers map[string]string
	Metrics *metrics.StreamingMetrics

	mu     sync.Mutex
	body   io.ReadCloser
	reader *bufio.Reader
	stop   chan struct{}
	once   sync.Once
}

func NewClient(url string) *Client {
	return &Client{
		URL:     url,
		Headers: make(map[string]string),
		Metrics: metrics.NewStreamingMetrics(),
		stop:    make(chan struct{}),
	}
}

/*
Subscribe connects to the stream and blocks, calling handler for every
event until the context is canceled, Close is called, or the connection
fails past the retry budget. A clean server EOF triggers a reconnect.
*/
func (c *Client) Subscribe(ctx context.Context, handler func(*Event)) error {
	retries := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if c.stopped() {
			return nil
		}

		if err := c.connect(ctx); err != nil {
			if retries >= maxRetries {
				return fmt.Errorf("event stream unreachable: %w", err)
			}

			select {
			case <-time.After(baseDelay * time.Duration(1<<retries)):
			case <-ctx.Done():
				return ctx.Err()
			case <-c.stop:
				return nil
			}

			retries++
			continue
		}

		retries = 0

		err := c.processEvents(ctx, handler)
		c.cleanup()

		switch {
		case err == nil:
			return nil
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			c.Metrics.RecordReconnection()
		default:
			return err
		}
	}
}

// Close stops the subscription and releases the connection.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.stop)
	})

	c.cleanup()
}

func (c *Client) stopped() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

func (c *Client) connect(ctx context.Context) error {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)

	if err != nil {
		c.Metrics.RecordConnection(false, time.Since(start))
		return err
	}

	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	for key, value := range c.Headers {
		req.Header.Set(key, value)
	}

	// No client timeout; the context bounds the stream's lifetime.
	resp, err := (&http.Client{}).Do(req)

	if err != nil {
		c.Metrics.RecordConnection(false, time.Since(start))
		return err
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		c.Metrics.RecordConnection(false, time.Since(start))
		return fmt.Errorf("event stream returned status %d", resp.StatusCode)
	}

	c.mu.Lock()
	c.body = resp.Body
	c.reader = bufio.NewReader(resp.Body)
	c.mu.Unlock()

	c.Metrics.RecordConnection(true, time.Since(start))
	return nil
}

func (c *Client) processEvents(ctx context.Context, handler func(*Event)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stop:
			return nil
		default:
		}

		event, err := c.readEvent()

		if err != nil {
			return err
		}

		start := time.Now()
		handler(event)
		c.Metrics.RecordEvent(false, time.Since(start))
	}
}

/*
readEvent blocks until a complete event arrives. Comment lines, which the
broker uses as heartbeats, are skipped without ending the read.
*/
func (c *Client) readEvent() (*Event, error) {
	c.mu.Lock()
	reader := c.reader
	c.mu.Unlock()

	if reader == nil {
		return nil, io.EOF
	}

	event := &Event{}
	var data strings.Builder
	sawField := false

	for {
		line, err := reader.ReadString('\n')

		if err != nil {
			return nil, err
		}

		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if sawField {
				event.Data = []byte(data.String())
				return event, nil
			}

			continue
		}

		switch {
		case strings.HasPrefix(line, ":"):
			// heartbeat
		case strings.HasPrefix(line, "event:"):
			event.Name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			sawField = true
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}

			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			sawField = true
		}
	}
}

func (c *Client) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.body != nil {
		c.body.Close()
		c.body = nil
		c.reader = nil
	}
}
