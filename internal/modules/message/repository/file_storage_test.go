package repository

import (
	"testing"
	"time"

	"github.com/reshetovitsme/tg-forwarder/internal/modules/message/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStorage(t *testing.T) *FileStorage {
	t.Helper()
	s, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)
	return s
}

func record(target int64, msgID int, at time.Time) domain.ForwardRecord {
	return domain.ForwardRecord{
		RuleName:        "relay/main",
		SourceChatID:    100,
		SourceMessageID: msgID,
		TargetChannelID: target,
		Status:          domain.RecordStatusSuccess,
		Preview:         "hello",
		CreatedAt:       at,
	}
}

func TestFileStorage_GetRecordsNewestFirst(t *testing.T) {
	s := newStorage(t)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i := 1; i <= 5; i++ {
		require.NoError(t, s.SaveRecord(record(-1001, i, base.Add(time.Duration(i)*time.Minute))))
	}

	records, err := s.GetRecords(-1001, 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 5, records[0].SourceMessageID)
	assert.Equal(t, 4, records[1].SourceMessageID)
	assert.Equal(t, 3, records[2].SourceMessageID)
	assert.Equal(t, "relay/main", records[0].RuleName)
}

func TestFileStorage_GetRecordsUnknownTarget(t *testing.T) {
	s := newStorage(t)
	records, err := s.GetRecords(42, 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFileStorage_GetRecentRecords(t *testing.T) {
	s := newStorage(t)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i := 1; i <= 4; i++ {
		require.NoError(t, s.SaveRecord(record(7, i, base.Add(time.Duration(i)*time.Hour))))
	}

	records, err := s.GetRecentRecords(7, base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 4, records[0].SourceMessageID)
	assert.Equal(t, 3, records[1].SourceMessageID)
}

func TestFileStorage_GetTargets(t *testing.T) {
	s := newStorage(t)
	now := time.Now()
	require.NoError(t, s.SaveRecord(record(300, 1, now)))
	require.NoError(t, s.SaveRecord(record(-1001, 1, now)))
	require.NoError(t, s.SaveRecord(record(300, 2, now)))

	targets, err := s.GetTargets()
	require.NoError(t, err)
	assert.Equal(t, []int64{-1001, 300}, targets)
}

func TestFileStorage_SaveRecordDefaultsTimestamp(t *testing.T) {
	s := newStorage(t)
	rec := record(5, 1, time.Time{})
	require.NoError(t, s.SaveRecord(rec))

	records, err := s.GetRecords(5, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].CreatedAt.IsZero())
}
