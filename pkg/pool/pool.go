package pool

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type TestFunc[T any] func(T) bool
type DestructorFunc[T any] func(T) error

// Pool is a round-robin pool for balancing requests over ledger nodes. The same connection may be handed to
// several callers at once, so the connection type must be safe for concurrent use.
type Pool[T comparable] struct {
	mu         sync.Mutex
	next       int
	alive      []T
	dead       []T
	lastTested map[T]time.Time

	config Config[T]

	closeOnce sync.Once
	closeCh   chan struct{}
	wg        sync.WaitGroup
}

type Config[T any] struct {
	// A connection that passed a test within this window is not tested again.
	LivenessValidThreshold time.Duration
	// How often dead connections are retested. Zero disables retesting.
	DeadConnCheckInterval time.Duration
	TestFunc              TestFunc[T]
	DestructorFunc        DestructorFunc[T]
}

var ErrPoolEmpty = errors.New("pool is empty")

func New[T comparable](conns []T, config Config[T]) *Pool[T] {
	if config.TestFunc == nil {
		config.TestFunc = func(T) bool { return true }
	}

	p := &Pool[T]{
		lastTested: make(map[T]time.Time),
		config:     config,
		closeCh:    make(chan struct{}),
	}

	p.Add(conns...)

	if config.DeadConnCheckInterval > 0 {
		p.wg.Add(1)
		go p.reviveLoop()
	}

	return p
}

func (p *Pool[T]) Add(conns ...T) {
	for _, conn := range conns {
		isAlive := p.config.TestFunc(conn)

		p.mu.Lock()
		if isAlive {
			p.alive = append(p.alive, conn)
			p.lastTested[conn] = time.Now()
		} else {
			p.dead = append(p.dead, conn)
		}
		p.mu.Unlock()
	}
}

func (p *Pool[T]) Remove(conn T) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if i := indexOf(p.alive, conn); i >= 0 {
		p.removeAlive(i)
	} else if i := indexOf(p.dead, conn); i >= 0 {
		p.dead = append(p.dead[:i], p.dead[i+1:]...)
	}

	delete(p.lastTested, conn)
}

// Get returns the next live connection. Connections that fail their liveness test are moved to the dead set.
func (p *Pool[T]) Get() (T, error) {
	for {
		p.mu.Lock()
		if len(p.alive) == 0 {
			p.mu.Unlock()

			var zero T
			return zero, ErrPoolEmpty
		}

		idx := p.next % len(p.alive)
		p.next = idx + 1

		conn := p.alive[idx]
		fresh := p.isFresh(conn)
		p.mu.Unlock()

		if fresh || p.test(conn) {
			return conn, nil
		}
	}
}

// GetAll returns every live connection, testing any whose last test is stale. With includeDead, every tracked
// connection is returned untested.
func (p *Pool[T]) GetAll(includeDead bool) []T {
	p.mu.Lock()
	snapshot := make([]T, 0, len(p.alive)+len(p.dead))
	snapshot = append(snapshot, p.alive...)
	if includeDead {
		snapshot = append(snapshot, p.dead...)
		p.mu.Unlock()
		return snapshot
	}
	p.mu.Unlock()

	conns := make([]T, 0, len(snapshot))
	for _, conn := range snapshot {
		p.mu.Lock()
		fresh := p.isFresh(conn)
		p.mu.Unlock()

		if fresh || p.test(conn) {
			conns = append(conns, conn)
		}
	}

	return conns
}

// Len returns the number of live and dead connections.
func (p *Pool[T]) Len() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.alive), len(p.dead)
}

func (p *Pool[T]) Close() error {
	p.closeOnce.Do(func() {
		close(p.closeCh)
	})
	p.wg.Wait()

	if p.config.DestructorFunc == nil {
		return nil
	}

	p.mu.Lock()
	conns := make([]T, 0, len(p.alive)+len(p.dead))
	conns = append(conns, p.alive...)
	conns = append(conns, p.dead...)
	p.mu.Unlock()

	var group errgroup.Group
	for _, conn := range conns {
		conn := conn

		group.Go(func() error {
			return p.config.DestructorFunc(conn)
		})
	}

	return group.Wait()
}

// test runs the liveness test outside the lock and records the outcome.
func (p *Pool[T]) test(conn T) bool {
	isAlive := p.config.TestFunc(conn)

	p.mu.Lock()
	defer p.mu.Unlock()

	if isAlive {
		p.lastTested[conn] = time.Now()
	} else if i := indexOf(p.alive, conn); i >= 0 {
		p.removeAlive(i)
		p.dead = append(p.dead, conn)
	}

	return isAlive
}

func (p *Pool[T]) reviveLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.DeadConnCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.mu.Lock()
			dead := append([]T(nil), p.dead...)
			p.mu.Unlock()

			for _, conn := range dead {
				if !p.config.TestFunc(conn) {
					continue
				}

				p.mu.Lock()
				if i := indexOf(p.dead, conn); i >= 0 {
					p.dead = append(p.dead[:i], p.dead[i+1:]...)
					p.alive = append(p.alive, conn)
					p.lastTested[conn] = time.Now()
				}
				p.mu.Unlock()
			}
		case <-p.closeCh:
			return
		}
	}
}

// Must hold the lock.
func (p *Pool[T]) isFresh(conn T) bool {
	lastTested, ok := p.lastTested[conn]
	return ok && time.Since(lastTested) <= p.config.LivenessValidThreshold
}

// Must hold the lock. Keeps the round-robin cursor pointing at the same successor.
func (p *Pool[T]) removeAlive(i int) {
	p.alive = append(p.alive[:i], p.alive[i+1:]...)
	if i < p.next {
		p.next--
	}
}

func indexOf[T comparable](s []T, v T) int {
	for i := range s {
		if s[i] == v {
			return i
		}
	}

	return -1
}
