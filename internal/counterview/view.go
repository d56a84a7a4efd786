// Package counterview is a headless client for the live waitlist count.
// It fetches a baseline over HTTP, follows updates over the websocket,
// polls while disconnected, and animates the displayed number.
package counterview

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/websocket"
)

// Client defaults.
const (
	DefaultPollInterval   = 5 * time.Second
	DefaultReconnectDelay = 3 * time.Second
	DefaultRequestTimeout = 5 * time.Second
)

const (
	typeCountUpdate = "count_update"
)

// RenderFunc receives every change to the displayed value or the connection state.
type RenderFunc func(display int64, connected bool)

// Config configures a View.
type Config struct {
	// BaseURL is the service root, e.g. http://localhost:8080.
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *slog.Logger
	Render         RenderFunc
	PollInterval   time.Duration
	ReconnectDelay time.Duration
	RequestTimeout time.Duration
	TweenDuration  time.Duration
	TweenMaxSteps  int
}

// View tracks the count shown to one viewer.
type View struct {
	cfg      Config
	logger   *slog.Logger
	countURL string
	wsURL    string
	origin   string

	mu        sync.Mutex
	display   int64
	target    int64
	connected bool
	hasValue  bool
}

type eventKind int

const (
	eventOpen eventKind = iota
	eventCount
	eventClosed
)

type event struct {
	kind  eventKind
	count int64
}

// New validates cfg and returns a View.
func New(cfg Config) (*View, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", cfg.BaseURL)
	}

	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Render == nil {
		cfg.Render = func(int64, bool) {}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.TweenDuration <= 0 {
		cfg.TweenDuration = DefaultTweenDuration
	}
	if cfg.TweenMaxSteps <= 0 {
		cfg.TweenMaxSteps = DefaultTweenMaxSteps
	}

	ws := *base
	ws.Scheme = "ws"
	if base.Scheme == "https" {
		ws.Scheme = "wss"
	}
	ws.Path += "/ws"

	return &View{
		cfg:      cfg,
		logger:   cfg.Logger.With("component", "counterview"),
		countURL: base.String() + "/count",
		wsURL:    ws.String(),
		origin:   base.Scheme + "://" + base.Host,
	}, nil
}

// State returns the displayed value, the latest known count and whether
// the subscription is open.
func (v *View) State() (display, target int64, connected bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.display, v.target, v.connected
}

// Run drives the view until ctx is cancelled. All timers and goroutines
// it starts have stopped when it returns.
func (v *View) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	events := make(chan event, 16)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	if count, err := v.fetchCount(ctx); err != nil {
		v.logger.Warn("baseline fetch failed", "error", err)
	} else {
		v.mu.Lock()
		v.display, v.target, v.hasValue = count, count, true
		v.mu.Unlock()
	}
	v.render()

	var (
		pollTicker     *time.Ticker
		pollC          <-chan time.Time
		reconnectTimer *time.Timer
		reconnectC     <-chan time.Time
		tweenTimer     *time.Timer
		tweenC         <-chan time.Time
		current        *tween
	)
	defer func() {
		if pollTicker != nil {
			pollTicker.Stop()
		}
		if reconnectTimer != nil {
			reconnectTimer.Stop()
		}
		if tweenTimer != nil {
			tweenTimer.Stop()
		}
	}()

	subscribe := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v.subscribe(ctx, events)
		}()
	}

	// Not connected until the first session opens, so poll meanwhile.
	pollTicker = time.NewTicker(v.cfg.PollInterval)
	pollC = pollTicker.C
	subscribe()

	retarget := func(count int64) {
		v.mu.Lock()
		if v.hasValue && count == v.target {
			v.mu.Unlock()
			return
		}
		from := v.display
		first := !v.hasValue
		v.target, v.hasValue = count, true
		if first {
			v.display = count
		}
		v.mu.Unlock()

		if tweenTimer != nil {
			tweenTimer.Stop()
			tweenC = nil
		}
		if first {
			current = nil
			v.render()
			return
		}
		current = newTween(from, count, v.cfg.TweenDuration, v.cfg.TweenMaxSteps)
		tweenTimer = time.NewTimer(current.interval)
		tweenC = tweenTimer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev := <-events:
			switch ev.kind {
			case eventOpen:
				v.setConnected(true)
				if pollTicker != nil {
					pollTicker.Stop()
					pollTicker, pollC = nil, nil
				}
			case eventCount:
				retarget(ev.count)
			case eventClosed:
				v.setConnected(false)
				if pollTicker == nil {
					pollTicker = time.NewTicker(v.cfg.PollInterval)
					pollC = pollTicker.C
				}
				reconnectTimer = time.NewTimer(v.cfg.ReconnectDelay)
				reconnectC = reconnectTimer.C
			}

		case <-pollC:
			wg.Add(1)
			go func() {
				defer wg.Done()
				count, err := v.fetchCount(ctx)
				if err != nil {
					v.logger.Debug("poll failed", "error", err)
					return
				}
				emit(ctx, events, event{kind: eventCount, count: count})
			}()

		case <-reconnectC:
			reconnectC = nil
			subscribe()

		case <-tweenC:
			value, done := current.next()
			v.mu.Lock()
			v.display = value
			v.mu.Unlock()
			v.render()
			if done {
				current, tweenC = nil, nil
				continue
			}
			tweenTimer.Reset(current.interval)
		}
	}
}

// subscribe holds one websocket session and reports its lifecycle on events.
// It always ends with eventClosed unless ctx is done.
func (v *View) subscribe(ctx context.Context, events chan<- event) {
	conn, err := v.dial(ctx)
	if err != nil {
		v.logger.Debug("subscribe failed", "error", err)
		emit(ctx, events, event{kind: eventClosed})
		return
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		stop()
		_ = conn.Close()
	}()

	if !emit(ctx, events, event{kind: eventOpen}) {
		return
	}

	for {
		var raw string
		if err := websocket.Message.Receive(conn, &raw); err != nil {
			if ctx.Err() == nil {
				v.logger.Debug("subscription closed", "error", err)
				emit(ctx, events, event{kind: eventClosed})
			}
			return
		}

		var msg struct {
			Type  string `json:"type"`
			Count int64  `json:"count"`
		}
		if err := json.Unmarshal([]byte(raw), &msg); err != nil || msg.Type != typeCountUpdate {
			continue
		}
		if !emit(ctx, events, event{kind: eventCount, count: msg.Count}) {
			return
		}
	}
}

// dial opens the websocket. The TCP connect and the upgrade handshake are
// both bounded by RequestTimeout and abandoned when ctx ends.
func (v *View) dial(ctx context.Context) (*websocket.Conn, error) {
	config, err := websocket.NewConfig(v.wsURL, v.origin)
	if err != nil {
		return nil, fmt.Errorf("websocket config: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, v.cfg.RequestTimeout)
	defer cancel()

	loc := config.Location
	port := loc.Port()
	if port == "" {
		port = "80"
		if loc.Scheme == "wss" {
			port = "443"
		}
	}

	var d net.Dialer
	raw, err := d.DialContext(ctx, "tcp", net.JoinHostPort(loc.Hostname(), port))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", loc.Host, err)
	}
	if loc.Scheme == "wss" {
		tlsConfig := config.TlsConfig
		if tlsConfig == nil {
			tlsConfig = &tls.Config{}
		}
		if tlsConfig.ServerName == "" {
			tlsConfig = tlsConfig.Clone()
			tlsConfig.ServerName = loc.Hostname()
		}
		raw = tls.Client(raw, tlsConfig)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = raw.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = raw.Close() })

	conn, err := websocket.NewClient(config, raw)
	if !stop() {
		// ctx ended during the handshake and raw is already closed.
		if err == nil {
			_ = conn.Close()
		}
		return nil, fmt.Errorf("websocket handshake: %w", context.Cause(ctx))
	}
	if err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("websocket handshake: %w", err)
	}
	_ = raw.SetDeadline(time.Time{})
	return conn, nil
}

// fetchCount reads GET /count.
func (v *View) fetchCount(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, v.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.countURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.cfg.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("GET /count: status %d", resp.StatusCode)
	}

	var body struct {
		Count *int64 `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode count: %w", err)
	}
	if body.Count == nil {
		return 0, errors.New("decode count: missing count")
	}
	return *body.Count, nil
}

func (v *View) setConnected(connected bool) {
	v.mu.Lock()
	changed := v.connected != connected
	v.connected = connected
	v.mu.Unlock()
	if changed {
		v.render()
	}
}

func (v *View) render() {
	v.mu.Lock()
	display, connected := v.display, v.connected
	v.mu.Unlock()
	v.cfg.Render(display, connected)
}

// emit delivers ev unless ctx ends first.
func emit(ctx context.Context, events chan<- event, ev event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
