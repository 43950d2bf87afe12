// Package server tracks live client connections so outbound delivery stays
// safe against concurrent teardown and shutdown can close every socket.
package server

import (
	"log"
	"sync"
	"time"
)

// connSet is the set of currently-connected clients. It serializes the
// race between room broadcasts delivering frames and the read pump tearing
// a connection down: a send only happens while the client is still tracked,
// and a client's send channel is closed exactly once, on removal.
type connSet struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	wg      sync.WaitGroup
}

func newConnSet() *connSet {
	return &connSet{clients: make(map[*Client]struct{})}
}

// add tracks a client and launches its pump goroutines.
func (s *connSet) add(c *Client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	count := len(s.clients)
	s.mu.Unlock()
	log.Printf("Client registered from %s. Total clients: %d", c.addr, count)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		c.writePump()
	}()
	go func() {
		defer s.wg.Done()
		c.readPump()
	}()
}

// remove untracks a client and closes its send channel. Removing a client
// that is already gone is a no-op.
func (s *connSet) remove(c *Client) {
	s.mu.Lock()
	if _, tracked := s.clients[c]; !tracked {
		s.mu.Unlock()
		return
	}
	delete(s.clients, c)
	count := len(s.clients)
	// Closing under the write lock guarantees no send is in flight.
	close(c.send)
	s.mu.Unlock()
	log.Printf("Client unregistered from %s. Total clients: %d", c.addr, count)
}

// send queues an encoded frame for a tracked client. It reports false when
// the client is gone or its buffer is full; it never blocks.
func (s *connSet) send(c *Client, data []byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, tracked := s.clients[c]; !tracked {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeAll closes every tracked connection's socket, unblocking the pumps.
func (s *connSet) closeAll() {
	s.mu.RLock()
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		if c.conn == nil {
			continue
		}
		if err := c.conn.Close(); err != nil {
			if !isExpectedCloseError(err) {
				log.Printf("Error closing client connection from %s: %v", c.addr, err)
			}
		}
	}

	log.Printf("Closed %d client connections", len(clients))
}

// wait blocks until every pump goroutine has finished or the timeout
// expires, reporting false on timeout.
func (s *connSet) wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
