package slideshow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/punchdeck/go/internal/punch"
)

// ErrNotConnected is returned when a message is sent without a live session
var ErrNotConnected = errors.New("display is not connected")

// Image is one slide as listed by the hub
type Image struct {
	ID       int    `json:"id"`
	URL      string `json:"url"`
	Alt      string `json:"alt"`
	Filename string `json:"filename"`
}

// ClientConfig holds configuration for a display client
type ClientConfig struct {
	// HubURL is the hub base URL, e.g. http://localhost:8080
	HubURL                string
	ClientID              string
	ReconnectBase         time.Duration
	ReconnectMax          time.Duration
	ConfigRefreshInterval time.Duration
	HTTPTimeout           time.Duration
	SendBufferSize        int
	Reconciler            ReconcilerConfig
}

// DefaultClientConfig returns default display client configuration
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HubURL:                "http://localhost:8080",
		ReconnectBase:         time.Second,
		ReconnectMax:          5 * time.Second,
		ConfigRefreshInterval: 5 * time.Minute,
		HTTPTimeout:           10 * time.Second,
		SendBufferSize:        64,
		Reconciler:            DefaultReconcilerConfig(),
	}
}

// Client is a headless slideshow display. It follows punches and peers over the
// ui-signals channel and reconnects with capped exponential backoff.
type Client struct {
	config     ClientConfig
	clock      clockwork.Clock
	dialer     *websocket.Dialer
	httpClient *http.Client
	reconciler *Reconciler

	mu          sync.RWMutex
	photoScroll punch.PhotoScroll
	out         chan []byte

	// OnChange is called after every change of the displayed slide
	OnChange func(State)
}

// NewClient creates a display client
func NewClient(config ClientConfig, clock clockwork.Clock) *Client {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if config.ClientID == "" {
		config.ClientID = uuid.New().String()
	}
	config.Reconciler.ClientID = config.ClientID

	c := &Client{
		config:      config,
		clock:       clock,
		dialer:      websocket.DefaultDialer,
		httpClient:  &http.Client{Timeout: config.HTTPTimeout},
		photoScroll: punch.DefaultConfig().PhotoScroll,
	}
	c.reconciler = NewReconciler(config.Reconciler, clock, c.sendSync)
	return c
}

// Reconciler exposes the sync state machine
func (c *Client) Reconciler() *Reconciler {
	return c.reconciler
}

// Backoff is the delay before reconnect attempt n (0-based): base * 2^n capped at max
func Backoff(attempt int, base, maxDelay time.Duration) time.Duration {
	delay := base
	for i := 0; i < attempt && delay < maxDelay; i++ {
		delay *= 2
	}
	return min(delay, maxDelay)
}

// Run connects and reconnects until ctx is cancelled
func (c *Client) Run(ctx context.Context) error {
	attempt := 0
	for {
		if err := c.Refresh(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to refresh slideshow state")
		}

		conn, err := c.dial(ctx)
		if err == nil {
			attempt = 0
			c.runSession(ctx, conn)
		} else {
			log.Warn().Err(err).Int("attempt", attempt).Msg("failed to connect to hub")
		}

		if ctx.Err() != nil {
			return nil
		}

		delay := Backoff(attempt, c.config.ReconnectBase, c.config.ReconnectMax)
		attempt++
		log.Info().Dur("delay", delay).Msg("reconnecting to hub")

		select {
		case <-ctx.Done():
			return nil
		case <-c.clock.After(delay):
		}
	}
}

// Refresh fetches the image list and punch tuning from the hub
func (c *Client) Refresh(ctx context.Context) error {
	var images []Image
	if err := c.getJSON(ctx, "/api/images", &images); err != nil {
		return fmt.Errorf("failed to fetch images: %w", err)
	}
	c.reconciler.SetImages(images)

	return c.refreshConfig(ctx)
}

func (c *Client) refreshConfig(ctx context.Context) error {
	var doc struct {
		Punch *punch.Patch `json:"punch"`
	}
	if err := c.getJSON(ctx, "/api/config", &doc); err != nil {
		return fmt.Errorf("failed to fetch config: %w", err)
	}
	if doc.Punch == nil {
		return nil
	}

	cfg := punch.DefaultConfig().Merge(*doc.Punch)
	c.mu.Lock()
	c.photoScroll = cfg.PhotoScroll
	c.mu.Unlock()
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.config.HubURL, "/")+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("hub returned status code: %d, response: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.config.HubURL)
	if err != nil {
		return nil, fmt.Errorf("invalid hub url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws/ui-signals"

	conn, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", u.String(), err)
	}
	return conn, nil
}

// runSession pumps one connection until it fails or ctx is cancelled
func (c *Client) runSession(ctx context.Context, conn *websocket.Conn) {
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make(chan []byte, c.config.SendBufferSize)
	c.mu.Lock()
	c.out = out
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.out = nil
		c.mu.Unlock()
	}()

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		c.writeLoop(sessionCtx, conn, out)
	}()
	go func() {
		defer wg.Done()
		c.reconciler.Run(sessionCtx)
	}()
	go func() {
		defer wg.Done()
		c.refreshLoop(sessionCtx)
	}()

	// closing the socket unblocks ReadMessage on shutdown
	go func() {
		<-sessionCtx.Done()
		conn.Close()
	}()

	log.Info().Str("client_id", c.config.ClientID).Msg("display connected")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Warn().Err(err).Msg("display connection lost")
			}
			break
		}
		c.HandleFrame(data)
	}

	cancel()
	wg.Wait()
}

func (c *Client) writeLoop(ctx context.Context, conn *websocket.Conn, out <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-out:
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Warn().Err(err).Msg("failed to write sync message")
				conn.Close()
				return
			}
		}
	}
}

func (c *Client) refreshLoop(ctx context.Context) {
	if c.config.ConfigRefreshInterval <= 0 {
		return
	}
	ticker := c.clock.NewTicker(c.config.ConfigRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if err := c.refreshConfig(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to refresh punch config")
			}
		}
	}
}

// sendSync queues msg for the live session without blocking
func (c *Client) sendSync(msg SyncMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal sync message: %w", err)
	}

	c.mu.RLock()
	out := c.out
	c.mu.RUnlock()

	if out == nil {
		return ErrNotConnected
	}
	select {
	case out <- data:
		return nil
	default:
		return errors.New("sync send buffer full")
	}
}

// inboundFrame covers every frame the hub sends on ui-signals
type inboundFrame struct {
	Type         string     `json:"type"`
	Action       SyncAction `json:"action"`
	SyncCounter  *int64     `json:"syncCounter"`
	Acceleration float64    `json:"acceleration"`
}

// HandleFrame applies one frame received from the hub
func (c *Client) HandleFrame(data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Warn().Err(err).Msg("ignoring malformed frame")
		return
	}

	changed := false
	switch {
	case frame.Type == punch.EventTypePunch:
		if frame.SyncCounter != nil {
			c.reconciler.ObserveCounter(*frame.SyncCounter)
		}
		c.mu.RLock()
		n := PhotosToAdvance(frame.Acceleration, c.photoScroll)
		c.mu.RUnlock()
		c.reconciler.Advance(n)
		changed = true

		log.Debug().
			Float64("acceleration", frame.Acceleration).
			Int("photos", n).
			Msg("punch applied")

	case frame.Type == "sync" && frame.Action != "":
		var msg SyncMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn().Err(err).Msg("ignoring malformed sync message")
			return
		}
		changed = c.reconciler.HandleSync(msg)

	case frame.Type == "sync" && frame.SyncCounter != nil:
		changed = c.reconciler.ObserveCounter(*frame.SyncCounter)
	}

	if changed && c.OnChange != nil {
		c.OnChange(c.reconciler.Snapshot())
	}
}
