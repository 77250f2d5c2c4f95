// Package lifecycle runs the cleanup ticker that evicts expired job rows,
// modeled on the teacher's api-go/internal/scheduler.EtymologyScheduler
// ticker/stop-channel/mutex shape, repurposed from "fetch next priority
// word" to "delete expired job rows" (spec.md §4.9).
package lifecycle

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/double-tu/youtube-subtitle-proxy/internal/store"
)

// Cleanup periodically deletes expired job rows. It never mutates live rows
// (spec.md §3.2).
type Cleanup struct {
	store    *store.Store
	interval time.Duration

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
}

// NewCleanup builds a Cleanup ticker with the given interval.
func NewCleanup(st *store.Store, interval time.Duration) *Cleanup {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Cleanup{
		store:    st,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start runs the ticker loop until ctx is cancelled or Stop is called.
func (c *Cleanup) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	log.Printf("lifecycle: cleanup ticker starting with interval %v", c.interval)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("lifecycle: cleanup ticker stopping, context cancelled")
			return
		case <-c.stopChan:
			log.Println("lifecycle: cleanup ticker stopping, stop requested")
			return
		case <-ticker.C:
			c.runOnce()
		}
	}
}

// Stop halts the ticker loop (spec.md §4.9 "Shutdown cancels the cleanup
// ticker immediately").
func (c *Cleanup) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		close(c.stopChan)
		c.running = false
	}
}

func (c *Cleanup) runOnce() {
	n, err := c.store.DeleteExpired()
	if err != nil {
		log.Printf("lifecycle: cleanup pass failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("lifecycle: cleanup pass deleted %d expired job rows", n)
	}
}
