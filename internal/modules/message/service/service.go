package service

import (
	"time"

	"github.com/reshetovitsme/tg-forwarder/internal/modules/message/domain"
	"github.com/reshetovitsme/tg-forwarder/internal/modules/message/repository"
	"github.com/reshetovitsme/tg-forwarder/internal/shared/htmltext"
)

const previewLength = 200

// Service handles the forward journal
type Service struct {
	repo repository.Repository
	now  func() time.Time
}

// New creates a new journal service
func New(repo repository.Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

// RecordDelivery journals the outcome of one dispatch request. sendErr nil means success.
func (s *Service) RecordDelivery(req domain.DispatchRequest, forwardedMessageID int, sendErr error) error {
	record := domain.ForwardRecord{
		RuleName:           req.Message.RuleName,
		SourceChatID:       req.Message.SourceChatID,
		SourceMessageID:    req.Message.SourceMessageID,
		TargetChannelID:    req.TargetChannelID,
		ForwardedMessageID: forwardedMessageID,
		Status:             domain.RecordStatusSuccess,
		Truncated:          req.Message.Truncated,
		Preview:            Preview(req.Message.Text),
		CreatedAt:          s.now(),
	}
	if sendErr != nil {
		record.Status = domain.RecordStatusFailed
		record.Error = sendErr.Error()
	}
	return s.repo.SaveRecord(record)
}

// GetRecords retrieves the latest records for a target channel
func (s *Service) GetRecords(targetChannelID int64, limit int) ([]domain.ForwardRecord, error) {
	return s.repo.GetRecords(targetChannelID, limit)
}

// GetRecentRecords retrieves records newer than since
func (s *Service) GetRecentRecords(targetChannelID int64, since time.Time) ([]domain.ForwardRecord, error) {
	return s.repo.GetRecentRecords(targetChannelID, since)
}

// GetTargets lists target channels present in the journal
func (s *Service) GetTargets() ([]int64, error) {
	return s.repo.GetTargets()
}

// Preview is the plain text of an HTML message, cut to a short length
func Preview(html string) string {
	runes := []rune(htmltext.Plain(html))
	if len(runes) <= previewLength {
		return string(runes)
	}
	return string(runes[:previewLength-1]) + htmltext.Ellipsis
}
