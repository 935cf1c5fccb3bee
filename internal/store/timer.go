package store

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type studyTimer struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Accrue adds the whole minutes elapsed since the checkpoint to the study
// time counter. The checkpoint moves to now only when at least one minute
// accrued, so partial minutes carry over to the next call.
func (s *Store) Accrue(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady || s.checkpoint.IsZero() {
		return 0
	}
	minutes := int(now.Sub(s.checkpoint) / time.Minute)
	if minutes < 1 {
		return 0
	}
	s.stats.StudyTimeMinutes += minutes
	s.checkpoint = now
	return minutes
}

// Checkpoint is the instant study time was last accrued up to.
func (s *Store) Checkpoint() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkpoint
}

// Flush accrues study time and saves stats if anything accrued.
func (s *Store) Flush(ctx context.Context) error {
	if s.Accrue(s.now()) == 0 {
		return nil
	}
	s.changed(KindStats)
	return s.SaveStats(ctx)
}

// StartStudyTimer flushes study time every interval until ctx is done,
// StopStudyTimer is called or the session closes. Starting a running timer
// is a no-op.
func (s *Store) StartStudyTimer(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	s.mu.Lock()
	if s.timer != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	t := &studyTimer{cancel: cancel, done: make(chan struct{})}
	s.timer = t
	s.mu.Unlock()

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Flush(ctx); err != nil {
					s.log.Warn("study time not saved", zap.Error(err))
				}
			}
		}
	}()
}

// StopStudyTimer stops the timer goroutine and waits for it to exit.
func (s *Store) StopStudyTimer() {
	s.mu.Lock()
	t := s.timer
	s.timer = nil
	s.mu.Unlock()
	if t == nil {
		return
	}
	t.cancel()
	<-t.done
}
