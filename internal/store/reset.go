package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// KindStatsRecreate is the step that inserts the fresh zeroed stats row.
const KindStatsRecreate Kind = "user_stats_recreate"

// ResetReport records how a full reset went.
type ResetReport struct {
	Transactional bool
	Completed     []Kind
	Failed        map[Kind]error
	order         []Kind
}

// StepFailure is one reset step that did not complete.
type StepFailure struct {
	Kind Kind
	Err  error
}

// Failures lists the failed steps in the order they ran.
func (r ResetReport) Failures() []StepFailure {
	var out []StepFailure
	for _, k := range r.order {
		if err, ok := r.Failed[k]; ok {
			out = append(out, StepFailure{Kind: k, Err: err})
		}
	}
	return out
}

// Err joins the failures in the order the steps ran.
func (r ResetReport) Err() error {
	var errs []error
	for _, f := range r.Failures() {
		errs = append(errs, fmt.Errorf("%s: %w", f.Kind, f.Err))
	}
	return errors.Join(errs...)
}

func (r *ResetReport) record(kind Kind, err error) {
	r.order = append(r.order, kind)
	if err != nil {
		r.Failed[kind] = err
		return
	}
	r.Completed = append(r.Completed, kind)
}

// Reset deletes every record of the signed-in user and starts over with
// zeroed stats.
//
// A data service implementing Resetter does it in one transaction; on
// failure nothing changes, locally or remotely. Otherwise each kind is
// deleted in turn, failures are recorded and the remaining kinds still run,
// and the cache is cleared regardless.
func (s *Store) Reset(ctx context.Context) (ResetReport, error) {
	report := ResetReport{Failed: map[Kind]error{}}
	id, err := s.session()
	if err != nil {
		return report, err
	}

	if r, ok := s.data.(Resetter); ok {
		report.Transactional = true
		err := r.ResetUser(ctx, id.ID)
		for _, k := range []Kind{KindChat, KindFlashcardSets, KindNotes, KindDocuments, KindStats} {
			report.record(k, err)
		}
		if err != nil {
			s.log.Error("reset failed", zap.String("user_id", id.ID), zap.Error(err))
			return report, fmt.Errorf("reset: %w", err)
		}
		if _, err := s.commit(id, s.clearDataLocked); err != nil {
			return report, err
		}
		s.log.Info("account data reset", zap.String("user_id", id.ID))
		s.changed(KindDocuments, KindChat, KindFlashcardSets, KindNotes, KindStats)
		return report, nil
	}

	steps := []struct {
		kind Kind
		del  func(context.Context, string) error
	}{
		{KindChat, s.data.DeleteAllChat},
		{KindFlashcardSets, s.data.DeleteAllFlashcardSets},
		{KindNotes, s.data.DeleteAllNotes},
		{KindDocuments, s.data.DeleteAllDocuments},
		{KindStats, s.data.DeleteStats},
	}
	for _, step := range steps {
		err := step.del(ctx, id.ID)
		if err != nil {
			s.log.Error("reset step failed", zap.String("kind", string(step.kind)), zap.Error(err))
		}
		report.record(step.kind, err)
	}

	if _, err := s.commit(id, s.clearDataLocked); err != nil {
		return report, err
	}
	err = s.data.InsertStats(ctx, id.ID)
	if err != nil {
		s.log.Error("reset step failed", zap.String("kind", string(KindStatsRecreate)), zap.Error(err))
	}
	report.record(KindStatsRecreate, err)
	s.changed(KindDocuments, KindChat, KindFlashcardSets, KindNotes, KindStats)

	if err := report.Err(); err != nil {
		return report, fmt.Errorf("reset incomplete: %w", err)
	}
	s.log.Info("account data reset", zap.String("user_id", id.ID))
	return report, nil
}

// clearDataLocked empties the collections and zeroes stats but keeps the
// session open.
func (s *Store) clearDataLocked() {
	s.documents = map[string]Document{}
	s.chat = map[string][]ChatTurn{}
	s.sets = map[string]FlashcardSet{}
	s.notes = map[string]StudyNote{}
	s.stats = Stats{}
}
