package repository

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/reshetovitsme/tg-forwarder/internal/modules/rule/domain"
	"github.com/reshetovitsme/tg-forwarder/internal/shared/errors"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

// FileStorage implements Repository with one JSON document per rule
type FileStorage struct {
	basePath string
	mu       sync.RWMutex
}

// NewFileStorage creates a new file-based rule repository
func NewFileStorage(basePath string) (*FileStorage, error) {
	rulePath := filepath.Join(basePath, "rules")
	if err := os.MkdirAll(rulePath, 0755); err != nil {
		return nil, oops.With("base_path", basePath, "context", "failed to create rules directory").Wrap(err)
	}

	return &FileStorage{basePath: rulePath}, nil
}

func (s *FileStorage) SaveRule(rule domain.ForwardingRule) error {
	if rule.RuleName == "" {
		return oops.Wrapf(errors.ErrInvalidRule, "rule name is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(rule, "", "  ")
	if err != nil {
		return oops.With("rule_name", rule.RuleName, "context", "failed to marshal rule").Wrap(err)
	}

	if err := os.WriteFile(s.path(rule.RuleName), data, 0644); err != nil {
		return oops.With("rule_name", rule.RuleName, "context", "failed to write rule").Wrap(err)
	}
	return nil
}

func (s *FileStorage) GetRule(name string) (domain.ForwardingRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ForwardingRule{}, oops.With("rule_name", name).Wrap(errors.ErrRuleNotFound)
		}
		return domain.ForwardingRule{}, oops.With("rule_name", name, "context", "failed to read rule").Wrap(err)
	}

	var rule domain.ForwardingRule
	if err := json.Unmarshal(data, &rule); err != nil {
		return domain.ForwardingRule{}, oops.With("rule_name", name, "context", "failed to unmarshal rule").Wrap(err)
	}

	return rule, nil
}

// GetAllRules skips unreadable documents; the rest are returned ordered by name.
func (s *FileStorage) GetAllRules() ([]domain.ForwardingRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, oops.With("directory", s.basePath, "context", "failed to read rules directory").Wrap(err)
	}

	rules := lo.FilterMap(entries, func(entry os.DirEntry, _ int) (domain.ForwardingRule, bool) {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			return domain.ForwardingRule{}, false
		}

		data, err := os.ReadFile(filepath.Join(s.basePath, entry.Name()))
		if err != nil {
			return domain.ForwardingRule{}, false
		}

		var rule domain.ForwardingRule
		if err := json.Unmarshal(data, &rule); err != nil {
			return domain.ForwardingRule{}, false
		}

		return rule, true
	})

	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].RuleName < rules[j].RuleName
	})

	return rules, nil
}

func (s *FileStorage) DeleteRule(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(name)); err != nil {
		if os.IsNotExist(err) {
			return oops.With("rule_name", name).Wrap(errors.ErrRuleNotFound)
		}
		return oops.With("rule_name", name, "context", "failed to delete rule").Wrap(err)
	}
	return nil
}

// path escapes the rule name so that any name maps to a single file inside basePath.
func (s *FileStorage) path(name string) string {
	return filepath.Join(s.basePath, url.PathEscape(name)+".json")
}
