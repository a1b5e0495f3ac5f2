package repository

import (
	"time"

	"github.com/reshetovitsme/tg-forwarder/internal/modules/message/domain"
)

// Repository defines the interface for the forward journal.
// Reads return records newest first.
type Repository interface {
	SaveRecord(record domain.ForwardRecord) error
	GetRecords(targetChannelID int64, limit int) ([]domain.ForwardRecord, error)
	GetRecentRecords(targetChannelID int64, since time.Time) ([]domain.ForwardRecord, error)
	GetTargets() ([]int64, error)
}
