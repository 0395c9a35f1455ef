package automation

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/zhou-shi/pentama-app/internal/config"
	"github.com/zhou-shi/pentama-app/internal/core"
	"github.com/zhou-shi/pentama-app/internal/thesis"
)

var (
	ErrNotActive     = core.NewConflictError("automation is not active")
	ErrRunInProgress = core.NewConflictError("an automation run is already in progress")
)

// Store is the document access a run needs. thesis.MongoRepository satisfies it.
type Store interface {
	FindByStages(ctx context.Context, kind thesis.Kind, stages ...thesis.Stage) ([]*thesis.Document, error)
	FindByID(ctx context.Context, kind thesis.Kind, id primitive.ObjectID) (*thesis.Document, error)
	ApplyBatch(ctx context.Context, updates []thesis.Update) error
}

// Authorizer decides whether a run may proceed.
type Authorizer func(ctx context.Context) error

// Report summarises one run.
type Report struct {
	RanAt   time.Time `json:"ranAt"`
	Updates int       `json:"updates"`
	Entries []Entry   `json:"entries"`
}

type Service struct {
	store    Store
	notifier thesis.Notifier
	policy   Policy
	logger   *zap.Logger
	now      func() time.Time

	// running admits one run at a time across cron ticks and manual runs.
	running sync.Mutex
}

func NewService(store Store, notifier thesis.Notifier, cfg *config.AppConfig, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		policy:   Policy{PenaltyScore: cfg.Automation.PenaltyScore, Grace: cfg.Automation.Grace},
		logger:   logger.Named("automation"),
		now:      time.Now,
	}
}

// Run loads the active documents, plans the three passes and commits the
// result as one batch. Nothing is written unless authorize succeeds, and a
// call made while another run is in flight fails with ErrRunInProgress.
func (s *Service) Run(ctx context.Context, authorize Authorizer) (Report, error) {
	if authorize != nil {
		if err := authorize(ctx); err != nil {
			return Report{}, err
		}
	}
	if !s.running.TryLock() {
		return Report{}, ErrRunInProgress
	}
	defer s.running.Unlock()

	now := s.now()
	snap, err := s.snapshot(ctx)
	if err != nil {
		return Report{}, err
	}

	plan := Build(now, snap, s.policy)
	report := Report{RanAt: now.UTC(), Updates: len(plan.Updates), Entries: plan.Entries}
	for _, e := range plan.Entries {
		s.logger.Info(e.Message, zap.String("kind", string(e.Kind)), zap.String("id", e.ID), zap.String("action", e.Action))
	}
	for _, id := range plan.Degraded {
		s.logger.Warn("defense completed without results average, keeping defense-only grade", zap.String("id", id.Hex()))
	}
	if len(plan.Updates) == 0 {
		return report, nil
	}

	if err := s.store.ApplyBatch(ctx, plan.Updates); err != nil {
		s.logger.Error("automation batch failed", zap.Int("updates", len(plan.Updates)), zap.Error(err))
		return Report{}, err
	}
	s.logger.Info("automation batch committed", zap.Int("updates", len(plan.Updates)))

	s.notify(ctx, plan.Updates)
	return report, nil
}

func (s *Service) snapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{
		Documents:       map[thesis.Kind][]*thesis.Document{},
		ResultsAverages: map[primitive.ObjectID]float64{},
	}
	for _, kind := range thesis.Kinds {
		docs, err := s.store.FindByStages(ctx, kind, activeStages...)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Documents[kind] = docs
	}
	for _, doc := range snap.Documents[thesis.KindSidang] {
		if doc.ResultsID == nil || doc.Aggregated || !doc.Scores.Complete() {
			continue
		}
		results, err := s.store.FindByID(ctx, thesis.KindHasil, *doc.ResultsID)
		if err != nil {
			if core.IsNotFound(err) {
				continue
			}
			return Snapshot{}, err
		}
		if results.AverageScore != nil {
			snap.ResultsAverages[results.ID] = *results.AverageScore
		}
	}
	return snap, nil
}

func (s *Service) notify(ctx context.Context, updates []thesis.Update) {
	if s.notifier == nil {
		return
	}
	for _, u := range updates {
		to := u.Stage
		if u.Outcome != nil {
			to = u.Outcome.Stage
		}
		if to == "" || to == u.ExpectStage {
			continue
		}
		doc, err := s.store.FindByID(ctx, u.Kind, u.ID)
		if err != nil {
			s.logger.Warn("reload for notification failed", zap.String("id", u.ID.Hex()), zap.Error(err))
			continue
		}
		s.notifier.StageChanged(ctx, doc, to)
	}
}

// HeldBy authorizes runs only while owner holds the lock.
func HeldBy(lock Lock, owner primitive.ObjectID) Authorizer {
	return func(ctx context.Context) error {
		state, err := lock.CurrentOwner(ctx)
		if err != nil {
			return err
		}
		if state == nil || state.Owner == nil || *state.Owner != owner {
			return ErrLockNotHeld
		}
		return nil
	}
}

// Active authorizes runs while any admin holds the lock.
func Active(lock Lock) Authorizer {
	return func(ctx context.Context) error {
		state, err := lock.CurrentOwner(ctx)
		if err != nil {
			return err
		}
		if state == nil || state.Owner == nil {
			return ErrNotActive
		}
		return nil
	}
}
