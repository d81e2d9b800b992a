package appserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/agentcore/agentcore/internal/common/logger"
)

// NotificationHandler receives server notifications in read-loop order.
type NotificationHandler func(method string, params json.RawMessage)

// Client speaks newline-delimited JSON-RPC over a pair of pipes. One
// goroutine reads the server's stdout; callers of Call block until the
// matching response arrives.
type Client struct {
	stdin  io.Writer
	stdout io.Reader
	log    *logger.Logger

	requestID atomic.Int64

	mu      sync.Mutex
	pending map[int64]chan *Response
	closed  bool

	notifyHandler NotificationHandler

	done chan struct{}
	once sync.Once

	writeMu sync.Mutex
}

// NewClient wraps the given pipes. Call Start to begin reading.
func NewClient(stdin io.Writer, stdout io.Reader, log *logger.Logger) *Client {
	return &Client{
		stdin:   stdin,
		stdout:  stdout,
		log:     log,
		pending: make(map[int64]chan *Response),
		done:    make(chan struct{}),
	}
}

// SetNotificationHandler installs the handler for server notifications.
func (c *Client) SetNotificationHandler(h NotificationHandler) {
	c.mu.Lock()
	c.notifyHandler = h
	c.mu.Unlock()
}

// Start launches the read loop.
func (c *Client) Start() {
	go c.readLoop()
}

// Close stops the read loop and fails all pending calls.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		c.mu.Lock()
		c.closed = true
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.mu.Unlock()
	})
}

// Done is closed when the read loop has stopped.
func (c *Client) Done() <-chan struct{} { return c.done }

// Call sends a request and waits for its response.
func (c *Client) Call(ctx context.Context, method string, params interface{}, result interface{}) error {
	id := c.requestID.Add(1)

	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params for %s: %w", method, err)
		}
		raw = b
	}

	respCh := make(chan *Response, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("client closed")
	}
	c.pending[id] = respCh
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.send(Request{ID: id, Method: method, Params: raw}); err != nil {
		return err
	}

	select {
	case resp, ok := <-respCh:
		if !ok {
			return fmt.Errorf("client closed while waiting for %s", method)
		}
		if resp.Error != nil {
			return fmt.Errorf("%s failed: %w", method, resp.Error)
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("unmarshal %s result: %w", method, err)
			}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return fmt.Errorf("client closed while waiting for %s", method)
	}
}

// Notify sends a notification; no response is expected.
func (c *Client) Notify(method string, params interface{}) error {
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params for %s: %w", method, err)
		}
		raw = b
	}
	return c.send(Notification{Method: method, Params: raw})
}

func (c *Client) send(msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.stdin.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

func (c *Client) readLoop() {
	defer c.Close()

	scanner := bufio.NewScanner(c.stdout)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-c.done:
			return
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var probe struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.Unmarshal(line, &probe); err != nil {
			c.log.WithError(err).Warn("Discarding unparseable engine message")
			continue
		}

		switch {
		case len(probe.ID) > 0 && probe.Method == "":
			var resp Response
			if err := json.Unmarshal(line, &resp); err != nil {
				c.log.WithError(err).Warn("Discarding malformed response")
				continue
			}
			c.dispatchResponse(&resp)
		case probe.Method != "":
			// Server-initiated requests (approvals) share the notification
			// path; approval policy is fixed at thread start so none are
			// expected here.
			var note Notification
			if err := json.Unmarshal(line, &note); err != nil {
				c.log.WithError(err).Warn("Discarding malformed notification")
				continue
			}
			c.mu.Lock()
			handler := c.notifyHandler
			c.mu.Unlock()
			if handler != nil {
				handler(note.Method, note.Params)
			}
		default:
			c.log.Warn("Discarding message with neither id nor method")
		}
	}

	if err := scanner.Err(); err != nil {
		c.log.WithError(err).Debug("Engine stdout closed")
	}
}

func (c *Client) dispatchResponse(resp *Response) {
	id, ok := numericID(resp.ID)
	if !ok {
		c.log.Warn("Discarding response with non-numeric id")
		return
	}

	c.mu.Lock()
	ch, found := c.pending[id]
	c.mu.Unlock()
	if !found {
		c.log.Debug("No pending call for response", zap.Int64("id", id))
		return
	}
	ch <- resp
}

func numericID(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}
