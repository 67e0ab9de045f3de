package taximeter

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

var ErrPermissionDenied = errors.New("location permission denied")

const (
	defaultTickInterval     = time.Second
	defaultSnapshotInterval = 5 * time.Second
	persistTimeout          = 2 * time.Second
)

// Permission is the answer of the location subsystem
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// LocationFeed is the positioning sensor
type LocationFeed interface {
	Permission(ctx context.Context) (Permission, error)
	RequestPermission(ctx context.Context) (Permission, error)
	// Watch delivers samples until ctx is cancelled
	Watch(ctx context.Context) (<-chan Position, error)
}

// Gateway persists the in-progress snapshot and the drive history.
// LoadSnapshot returns nil without error when no usable snapshot exists.
type Gateway interface {
	LoadHistory(ctx context.Context) ([]HistoryItem, error)
	AppendHistory(ctx context.Context, item HistoryItem) error
	LoadSnapshot(ctx context.Context) (*Snapshot, error)
	SaveSnapshot(ctx context.Context, snap Snapshot) error
	ClearSnapshot(ctx context.Context) error
}

// Status is what the meter displays
type Status struct {
	State           State    `json:"state"`
	PresetID        string   `json:"preset_id"`
	FareYen         Yen      `json:"fare_yen"`
	ElapsedMs       int64    `json:"elapsed_ms"`
	Elapsed         string   `json:"elapsed"`
	DistanceKm      float64  `json:"distance_km"`
	SpeedKmh        *float64 `json:"speed_kmh"`
	Mode            Mode     `json:"mode"`
	AcceptedSamples int      `json:"accepted_samples"`
	FilteredSamples int      `json:"filtered_samples"`
	LastReject      Reason   `json:"last_reject,omitempty"`
	Message         string   `json:"message,omitempty"`
}

// Option configures a Meter
type Option func(*Meter)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Meter) { m.now = now }
}

// WithTickInterval sets how often Run publishes the status to the tick handler
func WithTickInterval(d time.Duration) Option {
	return func(m *Meter) { m.tickInterval = d }
}

// WithSnapshotInterval sets how often Run persists the active session
func WithSnapshotInterval(d time.Duration) Option {
	return func(m *Meter) { m.snapshotInterval = d }
}

// WithTickHandler receives the status on every tick of Run
func WithTickHandler(fn func(Status)) Option {
	return func(m *Meter) { m.onTick = fn }
}

// Meter owns the drive session. Every mutation happens under mu, so samples are applied
// one at a time in arrival order no matter which goroutine delivers them.
type Meter struct {
	mu      sync.Mutex
	presets Presets
	preset  Preset
	session Session
	message string

	gateway Gateway
	writer  *snapshotWriter
	feed    LocationFeed
	now     func() time.Time

	// watchGen identifies the current location watch; samples of older watches are dropped
	watchGen    uint64
	watchCancel context.CancelFunc
	wg          sync.WaitGroup

	tickInterval     time.Duration
	snapshotInterval time.Duration
	onTick           func(Status)
}

// New creates an idle meter with the first preset selected
func New(presets Presets, gateway Gateway, feed LocationFeed, opts ...Option) (*Meter, error) {
	if err := presets.Validate(); err != nil {
		return nil, err
	}
	if gateway == nil || feed == nil {
		return nil, errors.New("meter needs a gateway and a location feed")
	}

	m := &Meter{
		presets:          presets,
		preset:           presets.Default(),
		gateway:          gateway,
		feed:             feed,
		now:              time.Now,
		tickInterval:     defaultTickInterval,
		snapshotInterval: defaultSnapshotInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.session = idleSession(m.preset)
	m.writer = newSnapshotWriter(gateway)
	return m, nil
}

// Presets returns the configured presets
func (m *Meter) Presets() Presets {
	return m.presets
}

// Preset returns the selected preset
func (m *Meter) Preset() Preset {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.preset
}

// SelectPreset switches the preset. Only allowed while idle; it resets the runtime.
func (m *Meter) SelectPreset(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.IsActive() {
		return errors.Join(ErrIllegalTransition, errors.New("preset can only change while idle"))
	}
	p, err := m.presets.Find(id)
	if err != nil {
		return err
	}
	m.preset = p
	m.session = idleSession(p)
	return nil
}

// Start begins a new drive. A denied permission leaves the meter idle with a status message.
func (m *Meter) Start(ctx context.Context) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := next(m.session.State, actionStart); err != nil {
		return m.statusLocked(), err
	}
	if err := m.acquirePermission(ctx); err != nil {
		return m.statusLocked(), err
	}

	session, err := m.session.Start(m.preset, m.now())
	if err != nil {
		return m.statusLocked(), err
	}
	if err := m.startWatchLocked(); err != nil {
		m.message = "location unavailable"
		return m.statusLocked(), err
	}
	m.session = session
	m.message = ""
	m.persistLocked()
	log.Printf("[meter] session started with preset %s", m.preset.ID)
	return m.statusLocked(), nil
}

// Pause stops the location watch and freezes the elapsed time
func (m *Meter) Pause(ctx context.Context) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.session.Pause(m.now())
	if err != nil {
		return m.statusLocked(), err
	}
	m.stopWatchLocked()
	m.session = session
	m.persistLocked()
	return m.statusLocked(), nil
}

// Resume re-opens a running segment and restarts the location watch
func (m *Meter) Resume(ctx context.Context) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := next(m.session.State, actionResume); err != nil {
		return m.statusLocked(), err
	}
	if err := m.startWatchLocked(); err != nil {
		m.message = "location unavailable"
		return m.statusLocked(), err
	}
	session, err := m.session.Resume(m.now())
	if err != nil {
		m.stopWatchLocked()
		return m.statusLocked(), err
	}
	m.session = session
	m.message = ""
	m.persistLocked()
	return m.statusLocked(), nil
}

// Finish ends the drive, records it in the history and returns to idle.
// The returned item is nil when the session had never started.
func (m *Meter) Finish(ctx context.Context) (*HistoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	finished, err := m.session.Finish(now)
	if err != nil {
		return nil, err
	}
	m.stopWatchLocked()

	var item *HistoryItem
	if !finished.StartedAt.IsZero() {
		h := NewHistoryItem(finished, now)
		item = &h
		m.bestEffort(ctx, "append history", func(ctx context.Context) error {
			return m.gateway.AppendHistory(ctx, h)
		})
	}
	m.writer.clear()

	m.session = idleSession(m.preset)
	m.message = ""
	if item != nil {
		log.Printf("[meter] session finished: %d yen, %.3f km, %s", item.FareYen, item.DistanceKm, FormatDuration(item.Elapsed()))
	}
	return item, nil
}

// PendingSnapshot returns the snapshot left behind by an interrupted session, if any
func (m *Meter) PendingSnapshot(ctx context.Context) (*Snapshot, error) {
	return m.gateway.LoadSnapshot(ctx)
}

// Restore rebuilds an interrupted session into the paused state
func (m *Meter) Restore(ctx context.Context, snap Snapshot) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := next(m.session.State, actionRestore); err != nil {
		return m.statusLocked(), err
	}
	p, err := m.presets.Find(snap.PresetID)
	if err != nil {
		return m.statusLocked(), err
	}
	if err := snap.ValidateFor(p); err != nil {
		return m.statusLocked(), err
	}
	if err := m.acquirePermission(ctx); err != nil {
		return m.statusLocked(), err
	}
	session, err := m.session.Restore(p, snap)
	if err != nil {
		return m.statusLocked(), err
	}
	m.preset = p
	m.session = session
	m.message = ""
	m.persistLocked()
	log.Printf("[meter] session restored with preset %s at %d yen", p.ID, session.Runtime.FareYen)
	return m.statusLocked(), nil
}

// Sample applies one location sample synchronously. It is a no-op unless running.
func (m *Meter) Sample(p Position) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ingestLocked(p)
	return m.statusLocked()
}

// Status returns what the meter currently displays
func (m *Meter) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

// Session returns a copy of the current session
func (m *Meter) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// History returns the persisted drives, newest first
func (m *Meter) History(ctx context.Context) ([]HistoryItem, error) {
	return m.gateway.LoadHistory(ctx)
}

// Run drives the elapsed-time tick and the periodic snapshot until ctx is done, then saves
// a last snapshot of an active session. None of them mutate the session.
func (m *Meter) Run(ctx context.Context) {
	tick := time.NewTicker(m.tickInterval)
	defer tick.Stop()
	persist := time.NewTicker(m.snapshotInterval)
	defer persist.Stop()

	for {
		select {
		case <-ctx.Done():
			m.checkpoint()
			return
		case <-tick.C:
			if m.onTick != nil {
				m.onTick(m.Status())
			}
		case <-persist.C:
			m.checkpoint()
		}
	}
}

func (m *Meter) checkpoint() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session.IsActive() {
		m.persistLocked()
	}
}

// Close tears down the location watch, waits for its goroutine and writes the last
// queued snapshot change
func (m *Meter) Close() {
	m.mu.Lock()
	m.stopWatchLocked()
	m.mu.Unlock()
	m.wg.Wait()
	m.writer.close()
}

func (m *Meter) acquirePermission(ctx context.Context) error {
	perm, err := m.feed.Permission(ctx)
	if err == nil && perm != PermissionGranted {
		perm, err = m.feed.RequestPermission(ctx)
	}
	if err != nil || perm != PermissionGranted {
		m.message = ErrPermissionDenied.Error()
		if err != nil {
			return errors.Join(ErrPermissionDenied, err)
		}
		return ErrPermissionDenied
	}
	return nil
}

func (m *Meter) startWatchLocked() error {
	ctx, cancel := context.WithCancel(context.Background())
	samples, err := m.feed.Watch(ctx)
	if err != nil {
		cancel()
		return err
	}
	m.stopWatchLocked()
	m.watchGen++
	m.watchCancel = cancel

	gen := m.watchGen
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case p, ok := <-samples:
				if !ok {
					return
				}
				m.mu.Lock()
				if gen == m.watchGen {
					m.ingestLocked(p)
				}
				m.mu.Unlock()
			}
		}
	}()
	return nil
}

func (m *Meter) stopWatchLocked() {
	if m.watchCancel != nil {
		m.watchCancel()
		m.watchCancel = nil
	}
	m.watchGen++
}

func (m *Meter) ingestLocked(p Position) {
	session, seg, ok := m.session.Ingest(m.preset, p)
	m.session = session
	if ok && !seg.Accepted() {
		log.Printf("[meter] sample filtered: %s (%.4f km in %.1fs at %.1f km/h, accuracy %.0f m)",
			seg.RejectReason, seg.DistanceKm, seg.Seconds, seg.SpeedKmh, seg.AccuracyM)
	}
}

func (m *Meter) persistLocked() {
	m.writer.save(m.session.Snapshot(m.now()))
}

// bestEffort runs a persistence call and only logs its failure
func (m *Meter) bestEffort(ctx context.Context, what string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Printf("[meter] %s: %s", what, err)
	}
}

func (m *Meter) statusLocked() Status {
	s := m.session
	elapsed := s.Elapsed(m.now())
	st := Status{
		State:           s.State,
		PresetID:        m.preset.ID,
		FareYen:         s.Runtime.FareYen,
		ElapsedMs:       elapsed.Milliseconds(),
		Elapsed:         FormatDuration(elapsed),
		DistanceKm:      s.DistanceKm,
		Mode:            s.Mode,
		AcceptedSamples: s.AcceptedSamples,
		FilteredSamples: s.FilteredSamples,
		LastReject:      s.LastReject,
		Message:         m.message,
	}
	if s.Mode != ModeUnknown {
		speed := s.SpeedKmh
		st.SpeedKmh = &speed
	}
	return st
}

func idleSession(p Preset) Session {
	return Session{
		State:    StateIdle,
		PresetID: p.ID,
		Runtime:  NewRuntime(p),
		Mode:     ModeUnknown,
	}
}
