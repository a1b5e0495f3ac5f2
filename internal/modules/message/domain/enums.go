//go:generate go run github.com/abice/go-enum --file=$GOFILE --names --nocase

package domain

// MessageType is the content kind of a Telegram message
// ENUM(text,photo,video,document,audio,voice,animation,sticker,video_note,poll,location,contact,other)
type MessageType string

// RecordStatus is the delivery outcome stored in the forward journal
// ENUM(success,failed)
type RecordStatus string
