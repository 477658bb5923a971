// Package poller keeps the dashboard snapshot fresh: every refresh interval
// it fetches the sensor feed and lime histories for the selected lookback
// window and replaces the snapshot, notifying subscribers.
package poller

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Capstone-E1/hydrodose_console/internal/models"
)

// windowTimeLayout is the backend's query-parameter timestamp format.
const windowTimeLayout = "2006-01-02T15:04:05"

// HistoryService is the slice of the gateway the poller reads from.
type HistoryService interface {
	SensorFeed(ctx context.Context, startDate, endDate string) ([]models.SensorFeedPoint, error)
	PreLimeHistory(ctx context.Context, startDate, endDate string) ([]models.HistoryPoint, error)
	PostLimeHistory(ctx context.Context, startDate, endDate string) ([]models.HistoryPoint, error)
}

// Supported lookback windows for the dashboard charts.
const (
	Lookback15Min = 15 * time.Minute
	Lookback1Hour = time.Hour
	Lookback24Hour = 24 * time.Hour
)

// ParseLookback maps the dashboard's window labels onto durations.
func ParseLookback(label string) (time.Duration, error) {
	switch label {
	case "15m":
		return Lookback15Min, nil
	case "1h":
		return Lookback1Hour, nil
	case "24h":
		return Lookback24Hour, nil
	default:
		return 0, fmt.Errorf("unknown lookback window %q", label)
	}
}

// Snapshot is the dashboard's current view of the plant.
type Snapshot struct {
	Lookback   time.Duration             `json:"-"`
	UpdatedAt  time.Time                 `json:"updated_at"`
	SensorFeed []models.SensorFeedPoint  `json:"sensor_feed"`
	PreLime    []models.HistoryPoint     `json:"pre_lime_history"`
	PostLime   []models.HistoryPoint     `json:"post_lime_history"`
}

// Poller refreshes the snapshot on a fixed interval. SetLookback switches
// the window and refreshes immediately instead of waiting for the next tick.
// After Stop no snapshot update or notification is delivered, even for
// fetches already in flight.
type Poller struct {
	svc      HistoryService
	interval time.Duration

	mu          sync.Mutex
	lookback    time.Duration
	running     bool
	generation  uint64
	stopChan    chan struct{}
	refreshChan chan struct{}
	snapshot    Snapshot
	subscribers []func(Snapshot)

	now func() time.Time
}

// New returns a stopped poller with the given refresh interval and initial
// lookback window.
func New(svc HistoryService, interval, lookback time.Duration) *Poller {
	return &Poller{
		svc:      svc,
		interval: interval,
		lookback: lookback,
		now:      time.Now,
	}
}

// OnUpdate registers a callback invoked with each new snapshot.
func (p *Poller) OnUpdate(fn func(Snapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, fn)
}

// Start launches the refresh loop. The first fetch happens immediately.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.generation++
	p.stopChan = make(chan struct{})
	p.refreshChan = make(chan struct{}, 1)
	stop, refresh, gen := p.stopChan, p.refreshChan, p.generation
	p.mu.Unlock()

	log.Printf("Dashboard poller started (interval %s)", p.interval)
	go p.run(stop, refresh, gen)
}

// Stop halts the loop. Fetches still in flight resolve into the void.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.generation++
	close(p.stopChan)
	p.mu.Unlock()

	log.Println("Dashboard poller stopped")
}

// SetLookback switches the dashboard window and triggers one immediate
// out-of-cycle refresh so the charts don't show the old window for up to a
// full interval.
func (p *Poller) SetLookback(lookback time.Duration) {
	p.mu.Lock()
	p.lookback = lookback
	running, refresh := p.running, p.refreshChan
	p.mu.Unlock()

	if running {
		select {
		case refresh <- struct{}{}:
		default:
		}
	}
}

// Lookback returns the currently selected window.
func (p *Poller) Lookback() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lookback
}

// Snapshot returns the latest dashboard snapshot.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot
}

func (p *Poller) run(stop <-chan struct{}, refresh <-chan struct{}, gen uint64) {
	p.refreshOnce(gen)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.refreshOnce(gen)
		case <-refresh:
			p.refreshOnce(gen)
		case <-stop:
			return
		}
	}
}

// refreshOnce fetches the window and replaces the snapshot unless the poller
// was stopped or restarted while the fetch was in flight.
func (p *Poller) refreshOnce(gen uint64) {
	p.mu.Lock()
	lookback := p.lookback
	p.mu.Unlock()

	end := p.now()
	start := end.Add(-lookback)
	startDate := start.Format(windowTimeLayout)
	endDate := end.Format(windowTimeLayout)

	ctx := context.Background()
	feed, err := p.svc.SensorFeed(ctx, startDate, endDate)
	if err != nil {
		log.Printf("Dashboard refresh failed (sensor feed): %v", err)
		return
	}
	preLime, err := p.svc.PreLimeHistory(ctx, startDate, endDate)
	if err != nil {
		log.Printf("Dashboard refresh failed (pre-lime history): %v", err)
		return
	}
	postLime, err := p.svc.PostLimeHistory(ctx, startDate, endDate)
	if err != nil {
		log.Printf("Dashboard refresh failed (post-lime history): %v", err)
		return
	}

	snapshot := Snapshot{
		Lookback:   lookback,
		UpdatedAt:  end,
		SensorFeed: feed,
		PreLime:    preLime,
		PostLime:   postLime,
	}

	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return
	}
	p.snapshot = snapshot
	subscribers := append(make([]func(Snapshot), 0, len(p.subscribers)), p.subscribers...)
	p.mu.Unlock()

	for _, fn := range subscribers {
		fn(snapshot)
	}
}
