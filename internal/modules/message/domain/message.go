package domain

import (
	"time"

	"github.com/reshetovitsme/tg-forwarder/internal/shared/htmltext"
)

// InboundMessage is a channel post as seen by the forwarding engine
type InboundMessage struct {
	ChatID    int64       `json:"chat_id"`
	MessageID int         `json:"message_id"`
	Type      MessageType `json:"type"`
	MimeType  string      `json:"mime_type,omitempty"`
	// Text is the plain message text, or the caption for media messages.
	Text string `json:"text"`
	// HTML is Text with its formatting entities rendered as Telegram HTML.
	HTML            string         `json:"html,omitempty"`
	SenderID        int64          `json:"sender_id,omitempty"`
	IsEdited        bool           `json:"is_edited"`
	IsService       bool           `json:"is_service"`
	Length          int            `json:"length"`
	Media           *Media         `json:"media,omitempty"`
	AuthorSignature string         `json:"author_signature,omitempty"`
	ForwardOrigin   *ForwardOrigin `json:"forward_origin,omitempty"`
	Date            time.Time      `json:"date"`
}

// Media represents the attachment of a message
type Media struct {
	Type   MessageType `json:"type"`
	FileID string      `json:"file_id"`
}

// ForwardOrigin describes where a forwarded post originally came from
type ForwardOrigin struct {
	Type   string    `json:"type"`
	Name   string    `json:"name"`
	ChatID int64     `json:"chat_id,omitempty"`
	Date   time.Time `json:"date"`
}

// HasMedia reports whether the message carries an attachment.
func (m InboundMessage) HasMedia() bool {
	return m.Media != nil
}

// FormattedText returns the HTML rendering, or the escaped plain text if none was provided.
func (m InboundMessage) FormattedText() string {
	if m.HTML != "" {
		return m.HTML
	}
	return htmltext.Escape(m.Text)
}

// OutboundMessage is the transformed content produced for one rule
type OutboundMessage struct {
	RuleName        string      `json:"rule_name"`
	SourceChatID    int64       `json:"source_chat_id"`
	SourceMessageID int         `json:"source_message_id"`
	Type            MessageType `json:"type"`
	// Text is Telegram HTML; for media messages it is the caption.
	Text               string         `json:"text"`
	Media              *Media         `json:"media,omitempty"`
	AuthorSignature    string         `json:"author_signature,omitempty"`
	ForwardOrigin      *ForwardOrigin `json:"forward_origin,omitempty"`
	ProtectContent     bool           `json:"protect_content"`
	DisableLinkPreview bool           `json:"disable_link_preview"`
	Truncated          bool           `json:"truncated"`
}

// DispatchRequest asks the delivery side to send one message to one target channel
type DispatchRequest struct {
	TargetChannelID int64           `json:"target_channel_id"`
	Message         OutboundMessage `json:"message"`
	ProtectContent  bool            `json:"protect_content"`
}
