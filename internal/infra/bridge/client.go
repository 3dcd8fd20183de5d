// Package bridge connects to a WebSocket bridge plugin running inside
// a live trading terminal. The plugin pushes quotes and instrument
// metadata; indicator reads go out as correlated requests.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"fxlink/internal/domain"
	"fxlink/internal/event"
	"fxlink/internal/infra"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	maxRetries          = 10
	defaultReqTimeout   = 5 * time.Second
	defaultPingInterval = 30 * time.Second
	defaultReadTimeout  = 60 * time.Second
)

// Config carries the bridge connection settings.
type Config struct {
	URL          string
	AuthToken    string
	Symbols      []string
	ReqTimeout   time.Duration
	PingInterval time.Duration
	ReadTimeout  time.Duration
}

// Client implements domain.TerminalProvider over the bridge socket.
// Pushed ticks and specs are cached so market data reads never block;
// indicator reads are synchronous round trips.
type Client struct {
	cfg     Config
	emitter *event.Emitter // nil disables doorbell events

	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	stateMu sync.RWMutex
	ticks   map[string]domain.Tick
	specs   map[string]domain.InstrumentSpec

	pendMu  sync.Mutex
	pending map[string]chan serverFrame
}

// NewClient creates a bridge client. Zero timeouts fall back to
// defaults.
func NewClient(cfg Config, emitter *event.Emitter) *Client {
	if cfg.ReqTimeout <= 0 {
		cfg.ReqTimeout = defaultReqTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	return &Client{
		cfg:     cfg,
		emitter: emitter,
		ticks:   make(map[string]domain.Tick),
		specs:   make(map[string]domain.InstrumentSpec),
		pending: make(map[string]chan serverFrame),
	}
}

// ==================================================
// Connection lifecycle
// ==================================================

// Connect starts the connection loop and the keepalive.
func (c *Client) Connect(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(2)
	go c.connectionLoop(ctx)
	go c.pingLoop(ctx)
	return nil
}

func (c *Client) connectionLoop(ctx context.Context) {
	defer c.wg.Done()
	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.connect(ctx); err != nil {
			slog.Warn("Bridge connection failed", slog.Any("error", err), slog.Int("retry", retryCount))
			delay := infra.CalculateBackoff(retryCount)
			retryCount++
			if retryCount > maxRetries {
				retryCount = 0
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		} else {
			retryCount = 0
			c.readLoop(ctx)
		}
	}
}

func (c *Client) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := make(http.Header)
	if c.cfg.AuthToken != "" {
		header.Set("Authorization", "Bearer "+c.cfg.AuthToken)
	}

	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	infra.GlobalMetrics.IncrementConnections()

	if err := c.subscribe(); err != nil {
		c.closeConnection()
		return err
	}

	slog.Info("Bridge connected", slog.String("url", c.cfg.URL), slog.Int("subs", len(c.cfg.Symbols)))
	return nil
}

func (c *Client) subscribe() error {
	req := request{
		Op:      opSubscribe,
		Symbols: c.cfg.Symbols,
		Token:   c.cfg.AuthToken,
	}
	b, _ := json.Marshal(req)
	return c.threadSafeWrite(websocket.TextMessage, b)
}

func (c *Client) pingLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.threadSafeWrite(websocket.TextMessage, []byte("ping"))
		}
	}
}

func (c *Client) threadSafeWrite(msgType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil {
		return fmt.Errorf("no conn")
	}
	return c.conn.WriteMessage(msgType, data)
}

func (c *Client) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		if c.conn == nil {
			c.mu.RUnlock()
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		c.mu.RUnlock()

		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			c.closeConnection()
			return
		}
		if string(msg) == "pong" {
			continue
		}
		c.handleMessage(ctx, msg)
	}
}

func (c *Client) handleMessage(ctx context.Context, msg []byte) {
	var f serverFrame
	if json.Unmarshal(msg, &f) != nil {
		return
	}

	switch f.Type {
	case frameTick:
		if f.Tick == nil {
			return
		}
		c.stateMu.Lock()
		c.ticks[f.Tick.Symbol] = f.Tick.tick()
		c.stateMu.Unlock()

		if c.emitter != nil {
			ev := event.AcquireQuoteEvent()
			ev.Symbol = f.Tick.Symbol
			if !c.emitter.Emit(ctx, ev) {
				event.ReleaseQuoteEvent(ev)
			}
		}

	case frameSpec:
		if f.Spec == nil {
			return
		}
		c.stateMu.Lock()
		c.specs[f.Spec.Symbol] = *f.Spec
		c.stateMu.Unlock()

	case frameResponse:
		c.deliverResponse(f)
	}
}

func (c *Client) closeConnection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	if c.connected {
		c.connected = false
		infra.GlobalMetrics.DecrementConnections()
	}
}

// Disconnect stops the loops and closes the socket.
func (c *Client) Disconnect() {
	if c.cancel != nil {
		c.cancel()
	}
	c.closeConnection()
	c.wg.Wait()
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// ==================================================
// Request/response plumbing
// ==================================================

func (c *Client) request(req request) (serverFrame, error) {
	req.ID = uuid.NewString()

	ch := make(chan serverFrame, 1)
	c.pendMu.Lock()
	c.pending[req.ID] = ch
	c.pendMu.Unlock()

	b, err := json.Marshal(req)
	if err == nil {
		err = c.threadSafeWrite(websocket.TextMessage, b)
	}
	if err != nil {
		c.dropPending(req.ID)
		return serverFrame{}, domain.NewTerminalError(req.Op, req.Symbol, err)
	}

	select {
	case f := <-ch:
		if !f.OK {
			return f, responseError(req.Op, req.Symbol, f.Error)
		}
		return f, nil
	case <-time.After(c.cfg.ReqTimeout):
		c.dropPending(req.ID)
		return serverFrame{}, domain.NewTerminalError(req.Op, req.Symbol, domain.ErrRequestTimeout)
	}
}

func (c *Client) deliverResponse(f serverFrame) {
	c.pendMu.Lock()
	ch, ok := c.pending[f.ID]
	if ok {
		delete(c.pending, f.ID)
	}
	c.pendMu.Unlock()

	if ok {
		ch <- f // buffered, never blocks
	}
}

func (c *Client) dropPending(id string) {
	c.pendMu.Lock()
	delete(c.pending, id)
	c.pendMu.Unlock()
}

func responseError(op, symbol, code string) error {
	switch code {
	case codeInvalidHandle:
		return domain.NewFatalTerminalError(op, symbol, domain.ErrInvalidHandle)
	case codeUnknownSymbol:
		return domain.NewFatalTerminalError(op, symbol, domain.ErrUnknownSymbol)
	case codeOffline:
		return domain.NewTerminalError(op, symbol, domain.ErrOffline)
	default:
		return domain.NewFatalTerminalError(op, symbol, fmt.Errorf("bridge: %s", code))
	}
}

// ==================================================
// Market data (served from the push caches)
// ==================================================

func (c *Client) FetchTick(symbol string) (domain.Tick, error) {
	c.stateMu.RLock()
	t, ok := c.ticks[symbol]
	c.stateMu.RUnlock()
	if !ok {
		return domain.Tick{}, domain.NewTerminalError("fetch_tick", symbol, domain.ErrNoQuote)
	}
	return t, nil
}

func (c *Client) FetchDouble(symbol string, field domain.DoubleField) (decimal.Decimal, error) {
	spec, err := c.specFor("fetch_double", symbol)
	if err != nil {
		return decimal.Zero, err
	}
	v, err := spec.DoubleField(field)
	if err != nil {
		return decimal.Zero, domain.NewFatalTerminalError("fetch_double", symbol, err)
	}
	return v, nil
}

func (c *Client) FetchInteger(symbol string, field domain.IntegerField) (int64, error) {
	spec, err := c.specFor("fetch_integer", symbol)
	if err != nil {
		return 0, err
	}
	v, err := spec.IntegerField(field)
	if err != nil {
		return 0, domain.NewFatalTerminalError("fetch_integer", symbol, err)
	}
	return v, nil
}

// specFor reads the metadata cache. A missing spec is retriable: the
// bridge pushes specs shortly after subscribe.
func (c *Client) specFor(op, symbol string) (domain.InstrumentSpec, error) {
	c.stateMu.RLock()
	spec, ok := c.specs[symbol]
	c.stateMu.RUnlock()
	if !ok {
		return domain.InstrumentSpec{}, domain.NewTerminalError(op, symbol, domain.ErrUnknownSymbol)
	}
	return spec, nil
}

// ==================================================
// Indicators (round trips to the terminal)
// ==================================================

func (c *Client) FetchIndicatorDirect(symbol string, tf domain.Timeframe, spec domain.IndicatorSpec, line, shift int) (float64, error) {
	f, err := c.request(request{
		Op:        opIndicatorDirect,
		Symbol:    symbol,
		Timeframe: tf.String(),
		Kind:      spec.Kind.String(),
		KPeriod:   spec.KPeriod,
		DPeriod:   spec.DPeriod,
		Slowing:   spec.Slowing,
		Line:      line,
		Shift:     shift,
	})
	if err != nil {
		return 0, err
	}
	if f.Value == nil {
		return 0, domain.NewFatalTerminalError(opIndicatorDirect, symbol, fmt.Errorf("response missing value"))
	}
	return *f.Value, nil
}

func (c *Client) ObtainIndicatorHandle(symbol string, tf domain.Timeframe, spec domain.IndicatorSpec) (domain.IndicatorHandle, error) {
	f, err := c.request(request{
		Op:        opObtainHandle,
		Symbol:    symbol,
		Timeframe: tf.String(),
		Kind:      spec.Kind.String(),
		KPeriod:   spec.KPeriod,
		DPeriod:   spec.DPeriod,
		Slowing:   spec.Slowing,
	})
	if err != nil {
		return domain.InvalidHandle, err
	}
	if f.Handle == nil {
		return domain.InvalidHandle, domain.NewFatalTerminalError(opObtainHandle, symbol, fmt.Errorf("response missing handle"))
	}
	return domain.IndicatorHandle(*f.Handle), nil
}

func (c *Client) CopyBuffer(handle domain.IndicatorHandle, line, shift, count int) ([]float64, error) {
	f, err := c.request(request{
		Op:     opCopyBuffer,
		Handle: int64(handle),
		Line:   line,
		Shift:  shift,
		Count:  count,
	})
	if err != nil {
		return nil, err
	}
	return f.Values, nil
}

func (c *Client) ReleaseIndicatorHandle(handle domain.IndicatorHandle) error {
	_, err := c.request(request{
		Op:     opReleaseHandle,
		Handle: int64(handle),
	})
	return err
}
