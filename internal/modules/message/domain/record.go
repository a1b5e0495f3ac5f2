package domain

import "time"

// ForwardRecord is a journal entry for one delivery attempt to one target channel
type ForwardRecord struct {
	RuleName           string       `json:"rule_name"`
	SourceChatID       int64        `json:"source_chat_id"`
	SourceMessageID    int          `json:"source_message_id"`
	TargetChannelID    int64        `json:"target_channel_id"`
	ForwardedMessageID int          `json:"forwarded_message_id,omitempty"`
	Status             RecordStatus `json:"status"`
	Error              string       `json:"error,omitempty"`
	Truncated          bool         `json:"truncated"`
	Preview            string       `json:"preview"`
	CreatedAt          time.Time    `json:"created_at"`
}
