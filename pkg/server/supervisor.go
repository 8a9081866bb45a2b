package server

import (
	"io"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// supervisor tracks every goroutine a session spawns. Connection tasks are
// keyed by remote ip so teardown can enumerate them and cut off stragglers
// by closing their connection.
type supervisor struct {
	g errgroup.Group

	mu    sync.Mutex
	conns map[string]io.Closer // ip -> connection owned by a running task
}

func newSupervisor() *supervisor {
	return &supervisor{conns: make(map[string]io.Closer)}
}

// Go runs fn as an untracked-by-ip task.
func (sv *supervisor) Go(fn func()) {
	sv.g.Go(func() error {
		fn()
		return nil
	})
}

// GoConn runs fn as the task owning conn, registered under ip until fn returns.
func (sv *supervisor) GoConn(ip string, conn io.Closer, fn func()) {
	sv.mu.Lock()
	sv.conns[ip] = conn
	sv.mu.Unlock()

	sv.g.Go(func() error {
		defer func() {
			sv.mu.Lock()
			if sv.conns[ip] == conn {
				delete(sv.conns, ip)
			}
			sv.mu.Unlock()
		}()
		fn()
		return nil
	})
}

// Active returns the ips of running connection tasks, sorted.
func (sv *supervisor) Active() []string {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	ips := make([]string, 0, len(sv.conns))
	for ip := range sv.conns {
		ips = append(ips, ip)
	}
	sort.Strings(ips)
	return ips
}

// Stop closes the connection of the task registered under ip.
func (sv *supervisor) Stop(ip string) bool {
	sv.mu.Lock()
	conn, ok := sv.conns[ip]
	sv.mu.Unlock()
	if ok {
		_ = conn.Close()
	}
	return ok
}

// StopAll closes every tracked connection and returns how many there were.
func (sv *supervisor) StopAll() int {
	sv.mu.Lock()
	conns := make([]io.Closer, 0, len(sv.conns))
	for _, c := range sv.conns {
		conns = append(conns, c)
	}
	sv.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	return len(conns)
}

// StopAfter waits up to grace for all tasks to finish on their own, then
// closes the connections of whatever is still running and waits for it.
// No new tasks may be started once StopAfter is called.
func (sv *supervisor) StopAfter(grace time.Duration) (forced int) {
	done := make(chan struct{})
	go func() {
		_ = sv.g.Wait()
		close(done)
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
		return 0
	case <-timer.C:
	}

	forced = sv.StopAll()
	<-done
	return forced
}
