package jobs

import (
	"context"
	"log"
	"time"

	"sportsblock/internal/repository"
)

// LockSweeper periodically flips past-due OPEN predictions to LOCKED.
// Correctness never depends on it: every read and mutation path evaluates
// the lock time lazily. The sweeper just keeps stored statuses tidy so list
// queries filtering on LOCKED stay accurate.
type LockSweeper struct {
	repo     *repository.Repository
	interval time.Duration
	stopChan chan struct{}
}

// NewLockSweeper creates a new lock sweeper job
func NewLockSweeper(repo *repository.Repository, interval time.Duration) *LockSweeper {
	return &LockSweeper{
		repo:     repo,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the sweep loop
func (ls *LockSweeper) Start() {
	log.Printf("[LockSweeper] Starting lock sweep job (interval: %v)", ls.interval)

	ticker := time.NewTicker(ls.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ls.sweep()
		case <-ls.stopChan:
			log.Println("[LockSweeper] Stopping lock sweep job")
			return
		}
	}
}

// Stop stops the sweep loop
func (ls *LockSweeper) Stop() {
	close(ls.stopChan)
}

// sweep locks every OPEN prediction whose lock time has passed
func (ls *LockSweeper) sweep() {
	ctx := context.Background()
	now := time.Now()

	ids, err := ls.repo.ListDuePredictionIDs(ctx, now, 100)
	if err != nil {
		log.Printf("[LockSweeper] Error listing due predictions: %v", err)
		return
	}

	if len(ids) == 0 {
		return
	}

	lockedCount := 0
	for _, id := range ids {
		locked, err := ls.repo.MarkLockedIfDue(ctx, id, now)
		if err != nil {
			log.Printf("[LockSweeper] Error locking prediction %s: %v", id, err)
			continue
		}
		if locked {
			lockedCount++
		}
	}

	log.Printf("[LockSweeper] Locked %d/%d due predictions", lockedCount, len(ids))
}
