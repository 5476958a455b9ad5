// Package connectivity answers one question for the rest of the field
// client: are we online right now? It also notifies listeners on
// transitions, which is what triggers the sync engine's drain.
package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Oracle reports the current connectivity belief and notifies on changes.
//
// "Belief" is the right word: the network can vanish between Online()
// returning true and the next request. Consumers must treat a true as a
// hint and still handle request failures.
type Oracle interface {
	// Online reports the current belief.
	Online() bool
	// OnChange registers fn to run on every transition. The returned
	// function cancels the registration.
	OnChange(fn func(online bool)) (cancel func())
}

// Manual is an Oracle driven entirely by Set calls. Tests drive it directly;
// the CLI uses it when the caller wants to force offline capture.
type Manual struct {
	mu        sync.Mutex
	online    bool
	nextID    int
	listeners map[int]func(bool)
}

// NewManual returns a Manual oracle with the given initial belief.
func NewManual(online bool) *Manual {
	return &Manual{online: online, listeners: map[int]func(bool){}}
}

// Online reports the current belief.
func (m *Manual) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set updates the belief and, on a transition, notifies listeners.
// Listeners run synchronously on the caller's goroutine, in no particular
// order, outside the lock so a listener may call back into the oracle.
func (m *Manual) Set(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	fns := make([]func(bool), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(online)
	}
}

// OnChange registers a transition listener.
func (m *Manual) OnChange(fn func(bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// Probe is an Oracle that periodically polls the server's health endpoint
// and feeds the result into an embedded Manual, inheriting its listener
// machinery. A failed request flips the belief to offline immediately.
type Probe struct {
	*Manual
	url    string
	client *http.Client
}

// NewProbe builds a probe against healthURL. The belief starts offline until
// the first successful poll; a client starting in a dead zone should not
// pretend otherwise.
func NewProbe(healthURL string, timeout time.Duration) *Probe {
	return &Probe{
		Manual: NewManual(false),
		url:    healthURL,
		client: &http.Client{Timeout: timeout},
	}
}

// Check polls once and updates the belief.
func (p *Probe) Check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		p.Set(false)
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.Set(false)
		return false
	}
	resp.Body.Close()
	ok := resp.StatusCode == http.StatusOK
	p.Set(ok)
	return ok
}

// Run polls every interval until ctx is cancelled. Intended to run on its
// own goroutine from the composition root.
func (p *Probe) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	p.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Check(ctx)
		}
	}
}

// ReportFailure lets request sites feed evidence back into the oracle: any
// transport-level failure means we are offline, regardless of what the last
// poll said.
func (p *Probe) ReportFailure() { p.Set(false) }
