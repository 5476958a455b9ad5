package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestManual_TransitionsNotify(t *testing.T) {
	m := NewManual(false)

	var events []bool
	cancel := m.OnChange(func(online bool) { events = append(events, online) })
	defer cancel()

	m.Set(true)
	m.Set(true) // no transition, no event
	m.Set(false)

	if len(events) != 2 || events[0] != true || events[1] != false {
		t.Errorf("events: got %v, want [true false]", events)
	}
	if m.Online() {
		t.Error("final belief should be offline")
	}
}

func TestManual_CancelStopsNotifications(t *testing.T) {
	m := NewManual(false)
	var count int32
	cancel := m.OnChange(func(bool) { atomic.AddInt32(&count, 1) })

	m.Set(true)
	cancel()
	m.Set(false)

	if got := atomic.LoadInt32(&count); got != 1 {
		t.Errorf("notifications after cancel: got %d, want 1", got)
	}
}

func TestProbe_Check(t *testing.T) {
	healthy := int32(1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.LoadInt32(&healthy) == 1 {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewProbe(srv.URL, time.Second)
	if p.Online() {
		t.Error("belief should start offline")
	}

	if !p.Check(context.Background()) || !p.Online() {
		t.Error("healthy server should flip the belief online")
	}

	atomic.StoreInt32(&healthy, 0)
	if p.Check(context.Background()) || p.Online() {
		t.Error("unhealthy server should flip the belief offline")
	}
}

func TestProbe_DeadServerIsOffline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // nothing listening anymore

	p := NewProbe(url, 200*time.Millisecond)
	p.Set(true) // pretend a stale belief
	if p.Check(context.Background()) {
		t.Error("dead server should report offline")
	}
	if p.Online() {
		t.Error("belief should have flipped")
	}
}
