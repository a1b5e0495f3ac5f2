package service

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reshetovitsme/tg-forwarder/internal/modules/rule/domain"
	ruleRepo "github.com/reshetovitsme/tg-forwarder/internal/modules/rule/repository"
	"github.com/reshetovitsme/tg-forwarder/internal/shared/errors"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

// Snapshot is an immutable view of the usable rules. It is replaced as a whole on reload.
type Snapshot struct {
	Rules    []domain.ForwardingRule `json:"rules"`
	Skipped  []SkippedRule           `json:"skipped,omitempty"`
	LoadedAt time.Time               `json:"loaded_at"`

	bySource map[int64][]domain.ForwardingRule
}

// SkippedRule records why a stored rule is not part of the snapshot
type SkippedRule struct {
	RuleName string `json:"rule_name"`
	Reason   string `json:"reason"`
}

var emptySnapshot = &Snapshot{bySource: map[int64][]domain.ForwardingRule{}}

// Service owns the rule snapshot and keeps it in sync with the repository
type Service struct {
	repo     ruleRepo.Repository
	interval time.Duration
	logger   *slog.Logger

	current atomic.Pointer[Snapshot]
	writeMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a rule service. A non-positive interval disables periodic reloads.
func New(repo ruleRepo.Repository, interval time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		repo:     repo,
		interval: interval,
		logger:   logger.With("component", "rule-store"),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.current.Store(emptySnapshot)
	return s
}

// Start loads the first snapshot and begins the reload loop
func (s *Service) Start(ctx context.Context) error {
	if _, err := s.Reload(); err != nil {
		return err
	}

	if s.interval > 0 {
		s.wg.Add(1)
		go s.reloadLoop(ctx)
	}
	return nil
}

// Stop ends the reload loop
func (s *Service) Stop() {
	s.cancel()
	s.wg.Wait()
}

// GetEnabledRulesBySourceChannel returns the enabled, valid rules for a source channel in name order.
func (s *Service) GetEnabledRulesBySourceChannel(channelID int64) []domain.ForwardingRule {
	return slices.Clone(s.current.Load().bySource[channelID])
}

// Snapshot returns the rule set currently in effect
func (s *Service) Snapshot() *Snapshot {
	return s.current.Load()
}

// Reload rebuilds the snapshot from the repository. On error the previous snapshot stays.
func (s *Service) Reload() (*Snapshot, error) {
	rules, err := s.repo.GetAllRules()
	if err != nil {
		return nil, oops.With("context", "failed to load rules").Wrap(err)
	}

	snap := buildSnapshot(rules)
	for _, skipped := range snap.Skipped {
		s.logger.Warn("rule skipped", "rule_name", skipped.RuleName, "reason", skipped.Reason)
	}

	s.current.Store(snap)
	s.logger.Debug("rules reloaded", "active", len(snap.Rules), "skipped", len(snap.Skipped))
	return snap, nil
}

// Rules returns every stored rule including disabled ones
func (s *Service) Rules() ([]domain.ForwardingRule, error) {
	return s.repo.GetAllRules()
}

// SaveRule validates and stores a rule, then reloads the snapshot
func (s *Service) SaveRule(rule domain.ForwardingRule) error {
	normalized, err := rule.Normalize()
	if err != nil {
		return err
	}
	if err := normalized.Validate(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.repo.SaveRule(normalized); err != nil {
		return err
	}
	_, err = s.Reload()
	return err
}

// SetEnabled toggles a stored rule and reloads the snapshot
func (s *Service) SetEnabled(name string, enabled bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	rule, err := s.repo.GetRule(name)
	if err != nil {
		return err
	}
	rule.IsEnabled = enabled
	if enabled {
		if err := rule.Validate(); err != nil {
			return err
		}
	}

	if err := s.repo.SaveRule(rule); err != nil {
		return err
	}
	_, err = s.Reload()
	return err
}

// DeleteRule removes a stored rule and reloads the snapshot
func (s *Service) DeleteRule(name string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.repo.DeleteRule(name); err != nil {
		return err
	}
	_, err := s.Reload()
	return err
}

// Seed stores configured rules that the repository does not know yet.
// Existing rules are left alone so runtime changes survive restarts.
func (s *Service) Seed(rules []domain.ForwardingRule) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for _, rule := range rules {
		_, err := s.repo.GetRule(rule.RuleName)
		if err == nil {
			continue
		}
		if !errors.Is(err, errors.ErrRuleNotFound) {
			return err
		}

		normalized, err := rule.Normalize()
		if err != nil {
			s.logger.Warn("seed rule rejected", "rule_name", rule.RuleName, "error", err)
			continue
		}
		if err := s.repo.SaveRule(normalized); err != nil {
			return oops.With("rule_name", rule.RuleName, "context", "failed to seed rule").Wrap(err)
		}
		s.logger.Info("rule seeded from config", "rule_name", rule.RuleName)
	}
	return nil
}

func (s *Service) reloadLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Reload(); err != nil {
				s.logger.Error("Failed to reload rules", "error", err)
			}
		}
	}
}

// buildSnapshot normalizes and validates rules, drops disabled, invalid and duplicate ones
// and buckets the rest by source channel. Input order (by name) is kept inside each bucket.
func buildSnapshot(rules []domain.ForwardingRule) *Snapshot {
	snap := &Snapshot{
		bySource: make(map[int64][]domain.ForwardingRule),
		LoadedAt: time.Now(),
	}
	seen := make(map[string]struct{}, len(rules))

	for _, rule := range rules {
		normalized, err := rule.Normalize()
		if err == nil {
			err = normalized.Validate()
		}
		if err != nil {
			snap.Skipped = append(snap.Skipped, SkippedRule{RuleName: rule.RuleName, Reason: err.Error()})
			continue
		}

		if _, dup := seen[normalized.RuleName]; dup {
			snap.Skipped = append(snap.Skipped, SkippedRule{RuleName: normalized.RuleName, Reason: "duplicate rule name"})
			continue
		}
		seen[normalized.RuleName] = struct{}{}

		if !normalized.IsEnabled {
			continue
		}

		snap.Rules = append(snap.Rules, normalized)
		snap.bySource[normalized.SourceChannelID] = append(snap.bySource[normalized.SourceChannelID], normalized)
	}

	return snap
}

// SourceChannels lists the channels that have at least one active rule
func (s *Snapshot) SourceChannels() []int64 {
	channels := lo.Keys(s.bySource)
	slices.Sort(channels)
	return channels
}
