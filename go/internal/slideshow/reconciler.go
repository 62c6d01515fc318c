package slideshow

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Phase is the reconciler lifecycle state
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePeriodicSync
	PhaseReconciling
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePeriodicSync:
		return "periodic_sync"
	case PhaseReconciling:
		return "reconciling"
	default:
		return "unknown"
	}
}

// SyncAction distinguishes full state announcements from heartbeats
type SyncAction string

const (
	SyncActionFull   SyncAction = "fullSync"
	SyncActionUpdate SyncAction = "update"
)

// SyncMessage is exchanged between displays over the ui-signals channel
type SyncMessage struct {
	Type      string     `json:"type"`
	Action    SyncAction `json:"action"`
	ClientID  string     `json:"clientId"`
	Timestamp int64      `json:"timestamp"`
	Data      SyncData   `json:"data"`
}

// SyncData is the state carried by a SyncMessage
type SyncData struct {
	SelectedIndex *int `json:"selectedIndex,omitempty"`
	Seed          Seed `json:"seed"`
	TotalImages   *int `json:"totalImages,omitempty"`
}

// Seed is the shuffle seed. Browser displays send it as a string taken from the page URL.
type Seed int64

// UnmarshalJSON reads a number or the leading integer of a string, the way parseInt does.
// Anything unreadable decodes as 0 so the rest of the sync message still applies.
func (s *Seed) UnmarshalJSON(data []byte) error {
	*s = 0

	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*s = Seed(leadingInt(text))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return nil
	}
	if v, err := n.Int64(); err == nil {
		*s = Seed(v)
		return nil
	}
	if f, err := n.Float64(); err == nil && !math.IsInf(f, 0) && math.Abs(f) < math.MaxInt64 {
		*s = Seed(int64(f))
	}
	return nil
}

// leadingInt parses an optional sign and the digits that follow it, ignoring the rest
func leadingInt(text string) int64 {
	text = strings.TrimSpace(text)
	end := 0
	if end < len(text) && (text[end] == '-' || text[end] == '+') {
		end++
	}
	digits := end
	for end < len(text) && text[end] >= '0' && text[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	v, err := strconv.ParseInt(text[:end], 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// Sender delivers an outbound sync message
type Sender func(msg SyncMessage) error

// ReconcilerConfig holds the sync timing of a display
type ReconcilerConfig struct {
	ClientID          string
	Seed              int64 // used until a sync counter is observed
	SyncInterval      time.Duration
	ForceSyncInterval time.Duration
	GraceDelay        time.Duration
}

// DefaultReconcilerConfig returns the timing the browser displays use
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		SyncInterval:      2 * time.Second,
		ForceSyncInterval: 10 * time.Second,
		GraceDelay:        500 * time.Millisecond,
	}
}

// State is a snapshot of the reconciler
type State struct {
	Phase               Phase
	SelectedIndex       int
	LastSyncMs          int64
	SyncCounterObserved *int64
	Seed                int64
	Order               []Image
}

// Reconciler keeps one display's slide selection in step with its peers. Peers converge
// on the same order through the shared seed and on the same slide through last-writer-wins
// on sender timestamps.
type Reconciler struct {
	config ReconcilerConfig
	clock  clockwork.Clock
	send   Sender

	mu              sync.Mutex
	phase           Phase
	images          []Image
	order           []Image
	selectedIndex   int
	lastSyncMs      int64
	counterObserved *int64
}

// NewReconciler creates a reconciler in the idle phase
func NewReconciler(config ReconcilerConfig, clock clockwork.Clock, send Sender) *Reconciler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Reconciler{
		config: config,
		clock:  clock,
		send:   send,
		phase:  PhaseIdle,
	}
}

// Run announces the full state after the grace delay and then syncs every SyncInterval
// until ctx is cancelled
func (r *Reconciler) Run(ctx context.Context) error {
	grace := r.clock.NewTimer(r.config.GraceDelay)
	defer grace.Stop()

	select {
	case <-ctx.Done():
		return nil
	case <-grace.Chan():
	}

	r.mu.Lock()
	r.phase = PhasePeriodicSync
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.phase = PhaseIdle
		r.mu.Unlock()
	}()

	r.SendFullSync()

	ticker := r.clock.NewTicker(r.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			r.Tick()
		}
	}
}

// Tick sends a full sync when the last one is older than ForceSyncInterval and a
// heartbeat update otherwise. Nothing is sent before images are loaded.
func (r *Reconciler) Tick() {
	r.mu.Lock()
	if len(r.order) == 0 {
		r.mu.Unlock()
		return
	}
	now := r.clock.Now().UnixMilli()
	full := now-r.lastSyncMs > r.config.ForceSyncInterval.Milliseconds()
	r.mu.Unlock()

	if full {
		r.SendFullSync()
		return
	}
	r.sendUpdate()
}

// SendFullSync announces the selection, seed and image count and marks the state synced
func (r *Reconciler) SendFullSync() {
	r.mu.Lock()
	now := r.clock.Now().UnixMilli()
	r.lastSyncMs = now
	index, total := r.selectedIndex, len(r.order)
	msg := SyncMessage{
		Type:      "sync",
		Action:    SyncActionFull,
		ClientID:  r.config.ClientID,
		Timestamp: now,
		Data: SyncData{
			SelectedIndex: &index,
			Seed:          Seed(r.seedLocked()),
			TotalImages:   &total,
		},
	}
	r.mu.Unlock()

	r.deliver(msg)
}

func (r *Reconciler) sendUpdate() {
	r.mu.Lock()
	index := r.selectedIndex
	msg := SyncMessage{
		Type:      "sync",
		Action:    SyncActionUpdate,
		ClientID:  r.config.ClientID,
		Timestamp: r.clock.Now().UnixMilli(),
		Data: SyncData{
			SelectedIndex: &index,
			Seed:          Seed(r.seedLocked()),
		},
	}
	r.mu.Unlock()

	r.deliver(msg)
}

func (r *Reconciler) deliver(msg SyncMessage) {
	if r.send == nil {
		return
	}
	if err := r.send(msg); err != nil {
		log.Debug().Err(err).Str("action", string(msg.Action)).Msg("sync message not sent")
	}
}

// HandleSync applies a peer's sync message. Own messages, unknown actions and messages
// not newer than the last sync are ignored. An in-range index is adopted without
// broadcasting. It reports whether the selection changed.
func (r *Reconciler) HandleSync(msg SyncMessage) bool {
	if r.config.ClientID != "" && msg.ClientID == r.config.ClientID {
		return false
	}
	if msg.Action != SyncActionFull && msg.Action != SyncActionUpdate {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.Timestamp <= r.lastSyncMs {
		return false
	}

	previous := r.phase
	r.phase = PhaseReconciling
	defer func() { r.phase = previous }()

	r.lastSyncMs = msg.Timestamp

	index := msg.Data.SelectedIndex
	if index == nil || *index == r.selectedIndex || *index < 0 || *index >= len(r.order) {
		return false
	}

	log.Debug().
		Str("from", msg.ClientID).
		Int("previous_index", r.selectedIndex).
		Int("selected_index", *index).
		Msg("adopting peer selection")

	r.selectedIndex = *index
	return true
}

// SetImages replaces the image list and reshuffles it with the current seed
func (r *Reconciler) SetImages(images []Image) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.images = append([]Image(nil), images...)
	r.order = Shuffle(r.images, r.seedLocked())
	if r.selectedIndex >= len(r.order) {
		r.selectedIndex = 0
	}
}

// ObserveCounter reshuffles with v as the seed and returns to the first slide when v
// differs from the last observed counter. It reports whether a reshuffle happened.
func (r *Reconciler) ObserveCounter(v int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.counterObserved != nil && *r.counterObserved == v {
		return false
	}
	r.counterObserved = &v
	r.order = Shuffle(r.images, v)
	r.selectedIndex = 0
	return true
}

// Advance moves the selection forward by n slides, wrapping at the end, and broadcasts
// the new selection
func (r *Reconciler) Advance(n int) {
	r.mu.Lock()
	if len(r.order) == 0 || n <= 0 {
		r.mu.Unlock()
		return
	}
	r.selectedIndex = (r.selectedIndex + n) % len(r.order)
	r.lastSyncMs = r.clock.Now().UnixMilli()
	r.mu.Unlock()

	r.sendUpdate()
}

// Current returns the selected image
func (r *Reconciler) Current() (Image, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.order) == 0 {
		return Image{}, false
	}
	return r.order[r.selectedIndex], true
}

// Snapshot returns a copy of the reconciler state
func (r *Reconciler) Snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := State{
		Phase:         r.phase,
		SelectedIndex: r.selectedIndex,
		LastSyncMs:    r.lastSyncMs,
		Seed:          r.seedLocked(),
		Order:         append([]Image(nil), r.order...),
	}
	if r.counterObserved != nil {
		v := *r.counterObserved
		state.SyncCounterObserved = &v
	}
	return state
}

func (r *Reconciler) seedLocked() int64 {
	if r.counterObserved != nil {
		return *r.counterObserved
	}
	return r.config.Seed
}
