package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	messageDomain "github.com/reshetovitsme/tg-forwarder/internal/modules/message/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJournal struct {
	records []messageDomain.ForwardRecord
	err     error
}

func (s stubJournal) GetRecords(int64, int) ([]messageDomain.ForwardRecord, error) {
	return s.records, s.err
}

func TestGenerateFeed(t *testing.T) {
	newest := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	journal := stubJournal{records: []messageDomain.ForwardRecord{
		{
			RuleName:           "R1",
			SourceChatID:       100,
			SourceMessageID:    2,
			TargetChannelID:    -1001234567890,
			ForwardedMessageID: 77,
			Status:             messageDomain.RecordStatusSuccess,
			Preview:            "NEW: Hello <world>",
			CreatedAt:          newest,
		},
		{
			RuleName:        "R1",
			SourceChatID:    100,
			SourceMessageID: 1,
			TargetChannelID: -1001234567890,
			Status:          messageDomain.RecordStatusFailed,
			Preview:         "lost",
			CreatedAt:       newest.Add(-time.Hour),
		},
	}}

	feed, err := New(journal).GenerateFeed(-1001234567890, "http://localhost:8080")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/feed/-1001234567890", feed.Link.Href)
	assert.Equal(t, newest, feed.Updated)
	require.Len(t, feed.Items, 1)

	item := feed.Items[0]
	assert.Equal(t, "NEW: Hello <world>", item.Title)
	assert.Equal(t, "<p>NEW: Hello &lt;world&gt;</p>", item.Content)
	assert.Equal(t, "https://t.me/c/1234567890/77", item.Link.Href)
	assert.Equal(t, "R1", item.Author.Name)
	assert.Equal(t, "100-2-R1", item.Id)

	rss, err := feed.ToRss()
	require.NoError(t, err)
	assert.Contains(t, rss, "<rss")
}

func TestGenerateFeed_LongPreviewTitle(t *testing.T) {
	journal := stubJournal{records: []messageDomain.ForwardRecord{{
		TargetChannelID: 5,
		Status:          messageDomain.RecordStatusSuccess,
		Preview:         strings.Repeat("y", 300),
	}}}

	feed, err := New(journal).GenerateFeed(5, "")
	require.NoError(t, err)
	require.Len(t, feed.Items, 1)
	assert.Equal(t, 100, len([]rune(feed.Items[0].Title)))
	assert.Equal(t, "/feed/5", feed.Items[0].Link.Href)
}

func TestGenerateFeed_JournalError(t *testing.T) {
	_, err := New(stubJournal{err: errors.New("disk gone")}).GenerateFeed(5, "")
	assert.Error(t, err)
}

func TestMessageLinkOnlyForPrefixedChannels(t *testing.T) {
	item := recordToFeedItem(messageDomain.ForwardRecord{TargetChannelID: 12345, ForwardedMessageID: 3}, "fallback")
	assert.Equal(t, "fallback", item.Link.Href)
}
