// Package connectivity tracks whether the inventory API is reachable and announces transitions.
package connectivity

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Event is a connectivity transition.
type Event string

const (
	EventOnline  Event = "online"
	EventOffline Event = "offline"
)

// Prober checks whether the server is reachable right now.
type Prober interface {
	Probe(ctx context.Context) bool
}

// Detector holds the current connectivity state and notifies listeners on transitions.
type Detector struct {
	mu        sync.Mutex
	online    bool
	listeners []func(Event)
	prober    Prober
	interval  time.Duration
	logger    *slog.Logger
}

// NewDetector creates a Detector that starts offline. prober may be nil when the state is only
// driven through Set.
func NewDetector(prober Prober, interval time.Duration, logger *slog.Logger) *Detector {
	return &Detector{
		prober:   prober,
		interval: interval,
		logger:   logger,
	}
}

// IsOnline reports the current state.
func (d *Detector) IsOnline() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.online
}

// OnChange registers fn to be called on every transition. Listeners run synchronously, in
// registration order, and must not block.
func (d *Detector) OnChange(fn func(Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

// Set records a platform connectivity signal. Listeners are only called when the state changes.
func (d *Detector) Set(online bool) {
	d.mu.Lock()
	if d.online == online {
		d.mu.Unlock()
		return
	}
	d.online = online
	listeners := d.listeners
	d.mu.Unlock()

	event := EventOffline
	if online {
		event = EventOnline
	}
	d.logger.Info("connectivity changed", slog.String("state", string(event)))
	d.emit(listeners, event)
}

// Announce re-emits the online event when already online, e.g. at startup or after a user
// returned a dead-lettered operation to the queue.
func (d *Detector) Announce() {
	d.mu.Lock()
	online := d.online
	listeners := d.listeners
	d.mu.Unlock()

	if online {
		d.emit(listeners, EventOnline)
	}
}

// Run probes the server immediately and then every interval until ctx is done.
func (d *Detector) Run(ctx context.Context) error {
	if d.prober == nil {
		<-ctx.Done()
		return nil
	}

	d.Set(d.prober.Probe(ctx))

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			online := d.prober.Probe(ctx)
			if ctx.Err() != nil {
				return nil
			}
			d.Set(online)
		}
	}
}

func (d *Detector) emit(listeners []func(Event), event Event) {
	for _, fn := range listeners {
		fn(event)
	}
}

// HTTPProber probes a URL; any response below 500 means the server is reachable.
type HTTPProber struct {
	client *http.Client
	url    string
}

// NewHTTPProber creates an HTTPProber with the given request timeout.
func NewHTTPProber(url string, timeout time.Duration) *HTTPProber {
	return &HTTPProber{
		client: &http.Client{Timeout: timeout},
		url:    url,
	}
}

// Probe performs a single GET against the probe URL.
func (p *HTTPProber) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}
