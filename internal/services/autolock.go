package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/rosterkeeper/internal/session"
)

// StartAutoLock locks the session after it has been idle for the given
// duration. It blocks until ctx is done; run it in its own goroutine.
// A non-positive duration disables the watcher.
func (s *RosterService) StartAutoLock(ctx context.Context, after time.Duration) {
	if after <= 0 {
		return
	}
	interval := after / 4
	if interval > time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.auth.State() != session.StateUnlocked {
				continue
			}
			idle := s.now().Sub(time.Unix(0, s.lastActivity.Load()))
			if idle < after {
				continue
			}
			if err := s.Lock(ctx); err != nil {
				s.log.Error(ctx, "auto-lock failed", "error", err)
				continue
			}
			s.log.Info(ctx, "session locked after inactivity", "idle", idle.Round(time.Second).String())

		case <-ctx.Done():
			return
		}
	}
}
