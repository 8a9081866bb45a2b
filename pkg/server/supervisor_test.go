package server

import (
	"sync"
	"testing"
	"time"
)

// blockingCloser unblocks its task when closed.
type blockingCloser struct {
	once sync.Once
	ch   chan struct{}
}

func newBlockingCloser() *blockingCloser {
	return &blockingCloser{ch: make(chan struct{})}
}

func (b *blockingCloser) Close() error {
	b.once.Do(func() { close(b.ch) })
	return nil
}

func TestSupervisorStopAfterForcesStragglers(t *testing.T) {
	sv := newSupervisor()
	stuck := newBlockingCloser()
	sv.GoConn("10.0.0.1:1", stuck, func() { <-stuck.ch })
	sv.GoConn("10.0.0.2:1", newBlockingCloser(), func() {})

	start := time.Now()
	forced := sv.StopAfter(20 * time.Millisecond)
	if forced != 1 {
		t.Fatalf("forced = %d, want 1", forced)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("StopAfter returned after %v, before the grace period", elapsed)
	}
	if active := sv.Active(); len(active) != 0 {
		t.Fatalf("Active after StopAfter = %v", active)
	}
}

func TestSupervisorStopAfterClean(t *testing.T) {
	sv := newSupervisor()
	sv.Go(func() {})
	sv.GoConn("10.0.0.1:1", newBlockingCloser(), func() {})
	if forced := sv.StopAfter(time.Second); forced != 0 {
		t.Fatalf("forced = %d, want 0", forced)
	}
}

func TestSupervisorStop(t *testing.T) {
	sv := newSupervisor()
	c := newBlockingCloser()
	release := make(chan struct{})
	sv.GoConn("10.0.0.1:1", c, func() {
		<-c.ch
		<-release
	})

	if got := sv.Active(); len(got) != 1 || got[0] != "10.0.0.1:1" {
		t.Fatalf("Active = %v", got)
	}
	if !sv.Stop("10.0.0.1:1") {
		t.Fatal("Stop returned false for a live task")
	}
	if sv.Stop("10.0.0.9:1") {
		t.Fatal("Stop returned true for an unknown ip")
	}
	close(release)
	sv.StopAfter(time.Second)
}
