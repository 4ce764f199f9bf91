package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/replaykit/replayd/internal/infrastructure/logging"
	"github.com/replaykit/replayd/internal/platform"
	"github.com/replaykit/replayd/internal/shared/id"
	"github.com/replaykit/replayd/internal/shared/types"
)

const focusBuffer = 64

var _ platform.Driver = (*Client)(nil)

type watchState struct {
	ch chan platform.FocusChange
}

// Client speaks the driver protocol over one WebSocket connection.
type Client struct {
	url     string
	timeout time.Duration
	logger  *logging.Logger

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan Envelope
	watches map[string]*watchState
	closed  bool
	done    chan struct{}
}

// Option configures the client.
type Option func(*Client)

// WithCallTimeout bounds every driver call. Defaults to 3s.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// Dial connects to a native driver endpoint.
func Dial(url string, logger *logging.Logger, opts ...Option) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial driver %s: %w", url, err)
	}

	c := &Client{
		url:     url,
		timeout: 3 * time.Second,
		logger:  logger.Named("driver"),
		conn:    conn,
		pending: make(map[string]chan Envelope),
		watches: make(map[string]*watchState),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.readLoop()

	c.logger.Info("Connected to native driver", zap.String("url", url))
	return c, nil
}

// readLoop routes incoming frames to pending calls and watch streams.
func (c *Client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.failAll(err)
			return
		}

		var env Envelope
		if err := sonic.Unmarshal(data, &env); err != nil {
			c.logger.Warn("Dropping malformed driver frame", zap.Error(err))
			continue
		}

		if env.Op == OpFocusChange {
			c.routeFocusChange(env)
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[env.ID]
		if ok {
			delete(c.pending, env.ID)
		}
		c.mu.Unlock()

		if ok {
			ch <- env
		}
	}
}

func (c *Client) routeFocusChange(env Envelope) {
	c.mu.Lock()
	w, ok := c.watches[env.WatchID]
	c.mu.Unlock()
	if !ok {
		return
	}

	change := platform.FocusChange{
		TargetFocused: env.TargetFocused,
		HolderPID:     env.HolderPID,
		HolderName:    env.HolderName,
		WindowTitle:   env.WindowTitle,
		At:            time.UnixMilli(env.At),
	}
	if env.Error != "" {
		change.Err = errors.New(env.Error)
	}

	select {
	case w.ch <- change:
	default:
		c.logger.Warn("Focus stream full, dropping change",
			zap.String("watch_id", env.WatchID))
	}
}

// failAll terminates every pending call and watch after a read failure.
func (c *Client) failAll(err error) {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	pending := c.pending
	watches := c.watches
	c.pending = make(map[string]chan Envelope)
	c.watches = make(map[string]*watchState)
	c.mu.Unlock()

	c.logger.Warn("Driver connection lost", zap.Error(err))

	for _, ch := range pending {
		ch <- Envelope{OK: false, Error: platform.ErrDriverClosed.Error()}
	}
	for _, w := range watches {
		close(w.ch)
	}
}

// call issues one request and waits for the matching response.
func (c *Client) call(ctx context.Context, req Request) (Envelope, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Envelope{}, platform.ErrDriverClosed
	}
	req.ID = string(id.NewRequestID())
	ch := make(chan Envelope, 1)
	c.pending[req.ID] = ch
	c.mu.Unlock()

	data, err := sonic.Marshal(req)
	if err != nil {
		c.dropPending(req.ID)
		return Envelope{}, fmt.Errorf("marshal %s: %w", req.Op, err)
	}

	c.writeMu.Lock()
	err = c.conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		c.dropPending(req.ID)
		return Envelope{}, fmt.Errorf("write %s: %w", req.Op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	select {
	case env := <-ch:
		if !env.OK {
			return env, c.mapError(env)
		}
		return env, nil
	case <-ctx.Done():
		c.dropPending(req.ID)
		return Envelope{}, fmt.Errorf("%s: %w", req.Op, ctx.Err())
	case <-c.done:
		return Envelope{}, platform.ErrDriverClosed
	}
}

func (c *Client) dropPending(reqID string) {
	c.mu.Lock()
	delete(c.pending, reqID)
	c.mu.Unlock()
}

// mapError converts protocol error codes to the typed platform errors.
func (c *Client) mapError(env Envelope) error {
	switch env.Code {
	case CodeProcessNotFound:
		return platform.ErrProcessNotFound
	case CodeWindowNotFound:
		return platform.ErrWindowNotFound
	}
	if env.Error == platform.ErrDriverClosed.Error() {
		return platform.ErrDriverClosed
	}
	return fmt.Errorf("driver: %s", env.Error)
}

// Watch implements platform.FocusWatcher.
func (c *Client) Watch(ctx context.Context, pid uint32) (<-chan platform.FocusChange, error) {
	env, err := c.call(ctx, Request{Op: OpWatch, PID: pid})
	if err != nil {
		return nil, err
	}
	if env.WatchID == "" {
		return nil, errors.New("driver returned no watch id")
	}

	w := &watchState{ch: make(chan platform.FocusChange, focusBuffer)}
	c.mu.Lock()
	c.watches[env.WatchID] = w
	c.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-c.done:
			return // failAll already closed the stream
		}

		unwatchCtx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		_, _ = c.call(unwatchCtx, Request{Op: OpUnwatch, WatchID: env.WatchID})

		c.mu.Lock()
		if _, ok := c.watches[env.WatchID]; ok {
			delete(c.watches, env.WatchID)
			close(w.ch)
		}
		c.mu.Unlock()
	}()

	return w.ch, nil
}

// ProcessExists implements platform.ApplicationDetector.
func (c *Client) ProcessExists(ctx context.Context, pid uint32) (bool, error) {
	env, err := c.call(ctx, Request{Op: OpProcessExists, PID: pid})
	if err != nil {
		return false, err
	}
	return env.Exists != nil && *env.Exists, nil
}

// ProcessResponsive implements platform.ApplicationDetector.
func (c *Client) ProcessResponsive(ctx context.Context, pid uint32) (bool, error) {
	env, err := c.call(ctx, Request{Op: OpProcessResponsive, PID: pid})
	if err != nil {
		return false, err
	}
	return env.Responsive != nil && *env.Responsive, nil
}

// FocusedProcess implements platform.ApplicationDetector.
func (c *Client) FocusedProcess(ctx context.Context) (platform.ProcessInfo, error) {
	env, err := c.call(ctx, Request{Op: OpFocusedProcess})
	if err != nil {
		return platform.ProcessInfo{}, err
	}
	return platform.ProcessInfo{PID: env.PID, Name: env.Name}, nil
}

// ResolveWindow implements platform.WindowResolver.
func (c *Client) ResolveWindow(ctx context.Context, pid uint32) (types.WindowHandle, error) {
	env, err := c.call(ctx, Request{Op: OpResolveWindow, PID: pid})
	if err != nil {
		return types.NoWindow, err
	}
	return env.Handle, nil
}

// WindowBounds implements platform.WindowResolver.
func (c *Client) WindowBounds(ctx context.Context, handle types.WindowHandle) (types.Bounds, error) {
	env, err := c.call(ctx, Request{Op: OpWindowBounds, Handle: handle})
	if err != nil {
		return types.Bounds{}, err
	}
	if env.Bounds == nil {
		return types.Bounds{}, errors.New("driver returned no bounds")
	}
	return *env.Bounds, nil
}

// MouseMove implements platform.InputInjector.
func (c *Client) MouseMove(ctx context.Context, p types.Point) error {
	_, err := c.call(ctx, Request{Op: OpMouseMove, Point: &p})
	return err
}

// MouseClick implements platform.InputInjector.
func (c *Client) MouseClick(ctx context.Context, p types.Point) error {
	_, err := c.call(ctx, Request{Op: OpMouseClick, Point: &p})
	return err
}

// MouseDrag implements platform.InputInjector.
func (c *Client) MouseDrag(ctx context.Context, from, to types.Point) error {
	_, err := c.call(ctx, Request{Op: OpMouseDrag, From: &from, To: &to})
	return err
}

// TypeText implements platform.InputInjector.
func (c *Client) TypeText(ctx context.Context, text string) error {
	_, err := c.call(ctx, Request{Op: OpTypeText, Text: text})
	return err
}

// PressKey implements platform.InputInjector.
func (c *Client) PressKey(ctx context.Context, key string) error {
	_, err := c.call(ctx, Request{Op: OpPressKey, Key: key})
	return err
}

// Close shuts the connection down. Active watches end with closed streams.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	err := c.conn.Close()
	// readLoop observes the closed connection and runs failAll.
	return err
}
