package panel

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"algopilot-panel/internal/engine"
	apperrors "algopilot-panel/internal/errors"
	"algopilot-panel/internal/logging"
	"algopilot-panel/internal/models"
)

// Subscriber receives every applied status snapshot.
type Subscriber func(models.StatusSnapshot)

// Poller runs the fixed-interval status fetch loop. Each tick is
// independent: a failed tick is recorded but never stops the loop and never
// clears the last-known-good snapshot. Responses carry a monotonic sequence
// number; a response older than the latest applied one is discarded, so the
// UI can never move backwards in time.
type Poller struct {
	api      engine.API
	logger   zerolog.Logger
	interval time.Duration

	seq      atomic.Uint64
	inFlight atomic.Bool // tick-loop fetch guard: skip, never queue

	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	done        chan struct{}
	lastApplied uint64
	latest      *models.StatusSnapshot
	lastErr     error
	tickErrors  uint64
	subs        []Subscriber
}

// NewPoller creates a poller over the given engine API.
func NewPoller(api engine.API, interval time.Duration, logger zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{
		api:      api,
		logger:   logger,
		interval: interval,
	}
}

// Subscribe registers a callback invoked after each applied snapshot.
// Must be called before Start.
func (p *Poller) Subscribe(fn Subscriber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs = append(p.subs, fn)
}

// Start begins the repeating fetch. An immediate fetch is issued before the
// first interval elapses. Start on a running poller is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.running = true
	p.cancel = cancel
	p.done = make(chan struct{})
	p.mu.Unlock()

	go p.loop(ctx)
}

// Stop halts the loop. In-flight requests may complete but their results
// are discarded.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	cancel()
	<-done
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)

	// First fetch right away so the view isn't blank for a full interval.
	p.tick(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick runs one guarded fetch. If the previous fetch has not completed the
// tick is skipped rather than queued.
func (p *Poller) tick(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.logger.Debug().Msg("Poll tick skipped, fetch still in flight")
		return
	}
	defer p.inFlight.Store(false)

	if err := p.fetchOnce(ctx); err != nil {
		p.mu.Lock()
		p.lastErr = err
		p.tickErrors++
		p.mu.Unlock()
	}
}

// RefreshNow issues an out-of-band sequenced fetch, used after a control
// command succeeds. Ordering against concurrent tick fetches is protected by
// the sequence check in apply.
func (p *Poller) RefreshNow(ctx context.Context) (models.StatusSnapshot, error) {
	if err := p.fetchOnce(ctx); err != nil {
		return models.StatusSnapshot{}, err
	}
	snap, ok := p.Latest()
	if !ok {
		return models.StatusSnapshot{}, apperrors.ErrPollerStopped
	}
	return snap, nil
}

func (p *Poller) fetchOnce(ctx context.Context) error {
	seq := p.seq.Add(1)
	start := time.Now()
	status, err := p.api.GetStatus(ctx)
	elapsed := time.Since(start)
	if err != nil {
		logging.LogPoll(p.logger, seq, elapsed, err)
		return err
	}

	snap := models.StatusSnapshot{
		Status:     status,
		Sequence:   seq,
		ReceivedAt: time.Now(),
	}
	if applied := p.apply(snap); applied {
		logging.LogPoll(p.logger, seq, elapsed, nil)
	}
	return nil
}

// apply installs a snapshot unless a newer one has already been applied.
// Returns whether it was applied. Loop fetches in flight when Stop is called
// die with a canceled context, so nothing of theirs lands after Stop
// returns; RefreshNow is a direct user action and applies regardless of
// whether the background loop is running.
func (p *Poller) apply(snap models.StatusSnapshot) bool {
	p.mu.Lock()
	if snap.Sequence <= p.lastApplied {
		p.mu.Unlock()
		return false
	}
	p.lastApplied = snap.Sequence
	p.latest = &snap
	p.lastErr = nil
	subs := make([]Subscriber, len(p.subs))
	copy(subs, p.subs)
	p.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	return true
}

// Latest returns the last applied snapshot, if any. Stale-but-present data
// is preferred over no data, so a failed tick never clears this.
func (p *Poller) Latest() (models.StatusSnapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latest == nil {
		return models.StatusSnapshot{}, false
	}
	return *p.latest, true
}

// LastError returns the most recent tick failure, cleared by the next
// successful fetch, along with the total number of failed ticks.
func (p *Poller) LastError() (error, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr, p.tickErrors
}

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
