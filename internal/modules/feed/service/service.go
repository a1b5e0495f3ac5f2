package service

import (
	"fmt"

	"github.com/gorilla/feeds"
	feedDomain "github.com/reshetovitsme/tg-forwarder/internal/modules/feed/domain"
	messageDomain "github.com/reshetovitsme/tg-forwarder/internal/modules/message/domain"
	"github.com/reshetovitsme/tg-forwarder/internal/shared/htmltext"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

const (
	feedLimit        = 50
	titleLength      = 100
	noContentMessage = "No text content"
)

// Journal is the read side of the forward journal
type Journal interface {
	GetRecords(targetChannelID int64, limit int) ([]messageDomain.ForwardRecord, error)
}

// Service renders the forward journal of a target channel as an RSS feed
type Service struct {
	journal Journal
}

// New creates a new feed service
func New(journal Journal) *Service {
	return &Service{
		journal: journal,
	}
}

// GenerateFeed generates a feed of the messages delivered to a target channel
func (s *Service) GenerateFeed(targetChannelID int64, baseURL string) (*feeds.Feed, error) {
	records, err := s.journal.GetRecords(targetChannelID, feedLimit)
	if err != nil {
		return nil, oops.With("target_channel_id", targetChannelID, "context", "failed to get journal records").Wrap(err)
	}

	delivered := lo.Filter(records, func(r messageDomain.ForwardRecord, _ int) bool {
		return r.Status == messageDomain.RecordStatusSuccess
	})

	cfg := feedDomain.FeedConfig{
		TargetChannelID: targetChannelID,
		Title:           fmt.Sprintf("Forwarded to %d", targetChannelID),
		Link:            fmt.Sprintf("%s/feed/%d", baseURL, targetChannelID),
	}
	if len(delivered) > 0 {
		cfg.Updated = delivered[0].CreatedAt
	}

	feed := &feeds.Feed{
		Title:       cfg.Title,
		Link:        &feeds.Link{Href: cfg.Link},
		Description: fmt.Sprintf("Messages relayed to Telegram channel %d", targetChannelID),
		Updated:     cfg.Updated,
		Created:     cfg.Updated,
	}

	feed.Items = lo.Map(delivered, func(r messageDomain.ForwardRecord, _ int) *feeds.Item {
		return recordToFeedItem(r, cfg.Link)
	})

	return feed, nil
}

// recordToFeedItem links to the delivered message when possible, otherwise to the feed itself.
func recordToFeedItem(r messageDomain.ForwardRecord, feedLink string) *feeds.Item {
	description := r.Preview
	if description == "" {
		description = noContentMessage
	}

	title := []rune(description)
	if len(title) > titleLength {
		title = append(title[:titleLength-1], []rune(htmltext.Ellipsis)...)
	}

	item := &feeds.Item{
		Title:       string(title),
		Description: description,
		Content:     "<p>" + htmltext.Escape(description) + "</p>",
		Author:      &feeds.Author{Name: r.RuleName},
		Created:     r.CreatedAt,
		Link:        &feeds.Link{Href: feedLink},
		Id:          fmt.Sprintf("%d-%d-%s", r.SourceChatID, r.SourceMessageID, r.RuleName),
	}
	if link := feedDomain.MessageLink(r.TargetChannelID, r.ForwardedMessageID); link != "" {
		item.Link.Href = link
	}

	return item
}
