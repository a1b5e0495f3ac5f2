package repository

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/reshetovitsme/tg-forwarder/internal/modules/message/domain"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

// FileStorage implements Repository with one JSON file per record, grouped by target channel.
// File names start with a zero-padded timestamp so directory order is chronological.
type FileStorage struct {
	basePath string
	mu       sync.RWMutex
}

// NewFileStorage creates a new file-based journal
func NewFileStorage(basePath string) (*FileStorage, error) {
	journalPath := filepath.Join(basePath, "journal")
	if err := os.MkdirAll(journalPath, 0755); err != nil {
		return nil, oops.With("base_path", basePath, "context", "failed to create journal directory").Wrap(err)
	}

	return &FileStorage{basePath: journalPath}, nil
}

func (s *FileStorage) SaveRecord(record domain.ForwardRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	dir := s.targetDir(record.TargetChannelID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return oops.With("journal_dir", dir, "context", "failed to create journal directory").Wrap(err)
	}

	name := fmt.Sprintf("%020d-%d-%s.json", record.CreatedAt.UnixNano(), record.SourceMessageID, url.PathEscape(record.RuleName))
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return oops.With("rule_name", record.RuleName, "target_channel_id", record.TargetChannelID, "context", "failed to marshal record").Wrap(err)
	}

	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		return oops.With("rule_name", record.RuleName, "target_channel_id", record.TargetChannelID, "context", "failed to write record").Wrap(err)
	}
	return nil
}

func (s *FileStorage) GetRecords(targetChannelID int64, limit int) ([]domain.ForwardRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := s.readEntries(targetChannelID)
	if err != nil {
		return nil, err
	}

	var records []domain.ForwardRecord
	for i := len(entries) - 1; i >= 0 && len(records) < limit; i-- {
		if record, ok := s.readRecord(targetChannelID, entries[i]); ok {
			records = append(records, record)
		}
	}

	return records, nil
}

func (s *FileStorage) GetRecentRecords(targetChannelID int64, since time.Time) ([]domain.ForwardRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := s.readEntries(targetChannelID)
	if err != nil {
		return nil, err
	}

	var records []domain.ForwardRecord
	for i := len(entries) - 1; i >= 0; i-- {
		record, ok := s.readRecord(targetChannelID, entries[i])
		if !ok {
			continue
		}
		if !record.CreatedAt.After(since) {
			break
		}
		records = append(records, record)
	}

	return records, nil
}

// GetTargets lists the target channels that have journal entries
func (s *FileStorage) GetTargets() ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, oops.With("directory", s.basePath, "context", "failed to read journal directory").Wrap(err)
	}

	targets := lo.FilterMap(entries, func(entry os.DirEntry, _ int) (int64, bool) {
		if !entry.IsDir() {
			return 0, false
		}
		id, err := strconv.ParseInt(entry.Name(), 10, 64)
		return id, err == nil
	})
	slices.Sort(targets)

	return targets, nil
}

func (s *FileStorage) targetDir(targetChannelID int64) string {
	return filepath.Join(s.basePath, strconv.FormatInt(targetChannelID, 10))
}

func (s *FileStorage) readEntries(targetChannelID int64) ([]os.DirEntry, error) {
	dir := s.targetDir(targetChannelID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, oops.With("target_channel_id", targetChannelID, "journal_dir", dir, "context", "failed to read journal directory").Wrap(err)
	}

	return lo.Filter(entries, func(entry os.DirEntry, _ int) bool {
		return !entry.IsDir() && filepath.Ext(entry.Name()) == ".json"
	}), nil
}

func (s *FileStorage) readRecord(targetChannelID int64, entry os.DirEntry) (domain.ForwardRecord, bool) {
	data, err := os.ReadFile(filepath.Join(s.targetDir(targetChannelID), entry.Name()))
	if err != nil {
		return domain.ForwardRecord{}, false
	}

	var record domain.ForwardRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return domain.ForwardRecord{}, false
	}
	return record, true
}
