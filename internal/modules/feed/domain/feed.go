package domain

import (
	"strconv"
	"strings"
	"time"
)

// FeedConfig describes the RSS feed of one target channel
type FeedConfig struct {
	TargetChannelID int64     `json:"target_channel_id"`
	Title           string    `json:"title"`
	Link            string    `json:"link"`
	Updated         time.Time `json:"updated"`
}

// MessageLink builds a t.me link to a message of a private channel or supergroup.
// Chats whose id does not carry the -100 prefix have no public link.
func MessageLink(chatID int64, messageID int) string {
	id := strconv.FormatInt(chatID, 10)
	internal, ok := strings.CutPrefix(id, "-100")
	if !ok || messageID == 0 {
		return ""
	}
	return "https://t.me/c/" + internal + "/" + strconv.Itoa(messageID)
}
