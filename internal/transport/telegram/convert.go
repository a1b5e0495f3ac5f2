package telegram

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/go-telegram/bot/models"
	messageDomain "github.com/reshetovitsme/tg-forwarder/internal/modules/message/domain"
	"github.com/reshetovitsme/tg-forwarder/internal/shared/htmltext"
	"golang.org/x/net/html"
)

// Convert maps a Telegram message onto the engine's inbound model
func Convert(msg *models.Message, edited bool) messageDomain.InboundMessage {
	text, entities := msg.Text, msg.Entities
	if text == "" {
		text, entities = msg.Caption, msg.CaptionEntities
	}

	in := messageDomain.InboundMessage{
		ChatID:          msg.Chat.ID,
		MessageID:       msg.ID,
		Text:            text,
		HTML:            EntitiesToHTML(text, entities),
		SenderID:        senderID(msg),
		IsEdited:        edited,
		IsService:       isService(msg),
		Length:          utf8.RuneCountInString(text),
		AuthorSignature: msg.AuthorSignature,
		ForwardOrigin:   forwardOrigin(msg.ForwardOrigin),
		Date:            time.Unix(int64(msg.Date), 0).UTC(),
	}
	in.Type, in.MimeType, in.Media = detectType(msg)
	return in
}

func senderID(msg *models.Message) int64 {
	if msg.From != nil {
		return msg.From.ID
	}
	if msg.SenderChat != nil {
		return msg.SenderChat.ID
	}
	return 0
}

func isService(msg *models.Message) bool {
	return len(msg.NewChatMembers) > 0 ||
		msg.LeftChatMember != nil ||
		msg.NewChatTitle != "" ||
		len(msg.NewChatPhoto) > 0 ||
		msg.DeleteChatPhoto ||
		msg.GroupChatCreated ||
		msg.SupergroupChatCreated ||
		msg.ChannelChatCreated ||
		msg.MigrateToChatID != 0 ||
		msg.MigrateFromChatID != 0 ||
		msg.PinnedMessage != nil
}

// detectType checks animation before document since Telegram fills both for GIFs.
func detectType(msg *models.Message) (messageDomain.MessageType, string, *messageDomain.Media) {
	media := func(t messageDomain.MessageType, fileID string) *messageDomain.Media {
		return &messageDomain.Media{Type: t, FileID: fileID}
	}

	switch {
	case len(msg.Photo) > 0:
		largest := msg.Photo[len(msg.Photo)-1]
		return messageDomain.MessageTypePhoto, "image/jpeg", media(messageDomain.MessageTypePhoto, largest.FileID)
	case msg.Animation != nil:
		return messageDomain.MessageTypeAnimation, msg.Animation.MimeType, media(messageDomain.MessageTypeAnimation, msg.Animation.FileID)
	case msg.Video != nil:
		return messageDomain.MessageTypeVideo, msg.Video.MimeType, media(messageDomain.MessageTypeVideo, msg.Video.FileID)
	case msg.Document != nil:
		return messageDomain.MessageTypeDocument, msg.Document.MimeType, media(messageDomain.MessageTypeDocument, msg.Document.FileID)
	case msg.Audio != nil:
		return messageDomain.MessageTypeAudio, msg.Audio.MimeType, media(messageDomain.MessageTypeAudio, msg.Audio.FileID)
	case msg.Voice != nil:
		return messageDomain.MessageTypeVoice, msg.Voice.MimeType, media(messageDomain.MessageTypeVoice, msg.Voice.FileID)
	case msg.Sticker != nil:
		return messageDomain.MessageTypeSticker, "", media(messageDomain.MessageTypeSticker, msg.Sticker.FileID)
	case msg.VideoNote != nil:
		return messageDomain.MessageTypeVideoNote, "video/mp4", media(messageDomain.MessageTypeVideoNote, msg.VideoNote.FileID)
	case msg.Poll != nil:
		return messageDomain.MessageTypePoll, "", nil
	case msg.Location != nil || msg.Venue != nil:
		return messageDomain.MessageTypeLocation, "", nil
	case msg.Contact != nil:
		return messageDomain.MessageTypeContact, "", nil
	case msg.Text != "":
		return messageDomain.MessageTypeText, "", nil
	default:
		return messageDomain.MessageTypeOther, "", nil
	}
}

func forwardOrigin(origin *models.MessageOrigin) *messageDomain.ForwardOrigin {
	if origin == nil {
		return nil
	}

	switch {
	case origin.MessageOriginUser != nil:
		u := origin.MessageOriginUser
		return &messageDomain.ForwardOrigin{
			Type:   "user",
			Name:   strings.TrimSpace(u.SenderUser.FirstName + " " + u.SenderUser.LastName),
			ChatID: u.SenderUser.ID,
			Date:   time.Unix(int64(u.Date), 0).UTC(),
		}
	case origin.MessageOriginHiddenUser != nil:
		u := origin.MessageOriginHiddenUser
		return &messageDomain.ForwardOrigin{
			Type: "hidden_user",
			Name: u.SenderUserName,
			Date: time.Unix(int64(u.Date), 0).UTC(),
		}
	case origin.MessageOriginChat != nil:
		c := origin.MessageOriginChat
		return &messageDomain.ForwardOrigin{
			Type:   "chat",
			Name:   c.SenderChat.Title,
			ChatID: c.SenderChat.ID,
			Date:   time.Unix(int64(c.Date), 0).UTC(),
		}
	case origin.MessageOriginChannel != nil:
		c := origin.MessageOriginChannel
		return &messageDomain.ForwardOrigin{
			Type:   "channel",
			Name:   c.Chat.Title,
			ChatID: c.Chat.ID,
			Date:   time.Unix(int64(c.Date), 0).UTC(),
		}
	default:
		return nil
	}
}

// EntitiesToHTML renders text with its formatting entities as Telegram HTML.
// Entity offsets and lengths count UTF-16 code units. Returns "" for empty text.
func EntitiesToHTML(text string, entities []models.MessageEntity) string {
	if text == "" {
		return ""
	}
	if len(entities) == 0 {
		return htmltext.Escape(text)
	}

	units := utf16.Encode([]rune(text))

	tagged := make([]models.MessageEntity, 0, len(entities))
	for _, e := range entities {
		if _, ok := openTag(e); !ok || e.Length <= 0 || e.Offset < 0 || e.Offset >= len(units) {
			continue
		}
		if e.Offset+e.Length > len(units) {
			e.Length = len(units) - e.Offset
		}
		tagged = append(tagged, e)
	}
	// outer entities first so they open before the ones nested in them
	sort.SliceStable(tagged, func(i, j int) bool {
		if tagged[i].Offset != tagged[j].Offset {
			return tagged[i].Offset < tagged[j].Offset
		}
		return tagged[i].Length > tagged[j].Length
	})

	var b strings.Builder
	var open []models.MessageEntity
	next, pos := 0, 0

	for pos <= len(units) {
		// close entities ending here, reopening any that were opened after them
		for i := len(open) - 1; i >= 0; i-- {
			if open[i].Offset+open[i].Length != pos {
				continue
			}
			reopen := open[i+1:]
			for j := len(open) - 1; j >= i; j-- {
				b.WriteString(closeTag(open[j]))
			}
			open = append(open[:i], reopen...)
			for _, e := range reopen {
				tag, _ := openTag(e)
				b.WriteString(tag)
			}
		}

		for next < len(tagged) && tagged[next].Offset == pos {
			tag, _ := openTag(tagged[next])
			b.WriteString(tag)
			open = append(open, tagged[next])
			next++
		}

		if pos == len(units) {
			break
		}

		end := len(units)
		if next < len(tagged) && tagged[next].Offset < end {
			end = tagged[next].Offset
		}
		for _, e := range open {
			if stop := e.Offset + e.Length; stop < end {
				end = stop
			}
		}
		b.WriteString(htmltext.Escape(string(utf16.Decode(units[pos:end]))))
		pos = end
	}

	return b.String()
}

func openTag(e models.MessageEntity) (string, bool) {
	switch e.Type {
	case "bold":
		return "<b>", true
	case "italic":
		return "<i>", true
	case "underline":
		return "<u>", true
	case "strikethrough":
		return "<s>", true
	case "spoiler":
		return "<tg-spoiler>", true
	case "code":
		return "<code>", true
	case "pre":
		if e.Language != "" {
			return fmt.Sprintf(`<pre><code class="language-%s">`, html.EscapeString(e.Language)), true
		}
		return "<pre>", true
	case "text_link":
		return fmt.Sprintf(`<a href="%s">`, html.EscapeString(e.URL)), true
	case "text_mention":
		if e.User == nil {
			return "", false
		}
		return fmt.Sprintf(`<a href="tg://user?id=%d">`, e.User.ID), true
	case "custom_emoji":
		return fmt.Sprintf(`<tg-emoji emoji-id="%s">`, html.EscapeString(e.CustomEmojiID)), true
	case "blockquote":
		return "<blockquote>", true
	case "expandable_blockquote":
		return "<blockquote expandable>", true
	default:
		return "", false
	}
}

func closeTag(e models.MessageEntity) string {
	switch e.Type {
	case "bold":
		return "</b>"
	case "italic":
		return "</i>"
	case "underline":
		return "</u>"
	case "strikethrough":
		return "</s>"
	case "spoiler":
		return "</tg-spoiler>"
	case "code":
		return "</code>"
	case "pre":
		if e.Language != "" {
			return "</code></pre>"
		}
		return "</pre>"
	case "text_link", "text_mention":
		return "</a>"
	case "custom_emoji":
		return "</tg-emoji>"
	case "blockquote", "expandable_blockquote":
		return "</blockquote>"
	default:
		return ""
	}
}
