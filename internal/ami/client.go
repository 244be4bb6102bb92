package ami

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotConnected is returned when an action is sent on a client whose
// transport is gone. Callers treat it as a fatal precondition violation.
var ErrNotConnected = errors.New("ami: not connected")

const subscriberBuffer = 256

// Client speaks the manager interface: CRLF-delimited key/value frames
// over one TCP connection. Action responses are correlated by ActionID;
// unsolicited events are fanned out to subscribers, each on its own
// goroutine so a slow subscriber never stalls the read loop.
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	w       *bufio.Writer
	pending map[string]chan Response
	subs    []chan Event
	closed  chan struct{}
	once    sync.Once
	log     *zap.SugaredLogger
}

// Dial connects to the manager interface, consumes the protocol banner and
// starts the read loop. Login must be called before sending other actions.
func Dial(ctx context.Context, addr string, log *zap.SugaredLogger) (*Client, error) {
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial manager %s: %w", addr, err)
	}

	r := bufio.NewReader(conn)
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	banner, err := r.ReadString('\n')
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read manager banner: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})
	log.Infow("connected to manager interface", "addr", addr, "banner", strings.TrimSpace(banner))

	c := newClient(conn, log)
	go c.readLoop(r)
	return c, nil
}

// NewClient wraps an established transport. The banner, if any, must have
// been consumed already. Used by tests with an in-memory pipe.
func NewClient(conn net.Conn, log *zap.SugaredLogger) *Client {
	c := newClient(conn, log)
	go c.readLoop(bufio.NewReader(conn))
	return c
}

func newClient(conn net.Conn, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{
		conn:    conn,
		w:       bufio.NewWriter(conn),
		pending: make(map[string]chan Response),
		closed:  make(chan struct{}),
		log:     log,
	}
}

// Login authenticates the manager session.
func (c *Client) Login(ctx context.Context, username, secret string) error {
	resp, err := c.Send(ctx, Action{
		Name: "Login",
		Fields: map[string]string{
			"Username": username,
			"Secret":   secret,
		},
	})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if !resp.Success {
		return fmt.Errorf("login rejected: %s", resp.Message)
	}
	return nil
}

// Logoff ends the manager session politely. Errors are reported but the
// connection is closed regardless.
func (c *Client) Logoff(ctx context.Context) error {
	_, err := c.Send(ctx, Action{Name: "Logoff"})
	c.Close()
	return err
}

// Subscribe registers fn to receive every unsolicited event, in arrival
// order. Events are dropped (with a warning) if fn falls more than
// subscriberBuffer events behind.
func (c *Client) Subscribe(fn func(Event)) {
	ch := make(chan Event, subscriberBuffer)
	c.mu.Lock()
	c.subs = append(c.subs, ch)
	c.mu.Unlock()

	go func() {
		for {
			select {
			case <-c.closed:
				return
			case ev := <-ch:
				fn(ev)
			}
		}
	}()
}

// Send writes one action and waits for its correlated response.
func (c *Client) Send(ctx context.Context, action Action) (Response, error) {
	actionID := uuid.NewString()
	ch := make(chan Response, 1)

	c.mu.Lock()
	select {
	case <-c.closed:
		c.mu.Unlock()
		return Response{}, ErrNotConnected
	default:
	}
	c.pending[actionID] = ch

	c.w.WriteString("Action: " + action.Name + "\r\n")
	c.w.WriteString("ActionID: " + actionID + "\r\n")
	for k, v := range action.Fields {
		c.w.WriteString(k + ": " + v + "\r\n")
	}
	c.w.WriteString("\r\n")
	err := c.w.Flush()
	c.mu.Unlock()

	if err != nil {
		c.dropPending(actionID)
		return Response{}, fmt.Errorf("send action %s: %w", action.Name, err)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		c.dropPending(actionID)
		return Response{}, fmt.Errorf("action %s: %w", action.Name, ctx.Err())
	case <-c.closed:
		return Response{}, ErrNotConnected
	}
}

// Close tears down the transport and unblocks all waiters.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
}

func (c *Client) dropPending(actionID string) {
	c.mu.Lock()
	delete(c.pending, actionID)
	c.mu.Unlock()
}

func (c *Client) readLoop(r *bufio.Reader) {
	defer c.Close()

	frame := make(map[string]string)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			select {
			case <-c.closed:
			default:
				c.log.Warnw("manager connection closed", "error", err)
			}
			return
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if len(frame) > 0 {
				c.dispatch(frame)
				frame = make(map[string]string)
			}
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		frame[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
}

func (c *Client) dispatch(frame map[string]string) {
	if v, ok := frame["Response"]; ok {
		resp := Response{
			Success:  strings.EqualFold(v, "Success"),
			Message:  frame["Message"],
			ActionID: frame["ActionID"],
			Attrs:    frame,
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ActionID]
		if ok {
			delete(c.pending, resp.ActionID)
		}
		c.mu.Unlock()
		if ok {
			ch <- resp
		} else {
			c.log.Debugw("uncorrelated response", "action_id", resp.ActionID)
		}
		return
	}

	name, ok := frame["Event"]
	if !ok {
		return
	}
	ev := Event{Name: name, Attrs: frame}
	c.mu.Lock()
	subs := c.subs
	c.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			c.log.Warnw("dropping event; subscriber queue full", "event", name)
		}
	}
}
