// Package message defines the inbound chat messages the relay consumes and
// the copies it produces.
package message

import "time"

// Attachment is a file carried by a message. Relayed copies reference it by URL.
type Attachment struct {
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// Message is an inbound chat message observed in a bound channel.
type Message struct {
	ID          string       `json:"id"`
	ChannelID   string       `json:"channel_id"`
	AuthorID    int64        `json:"author_id"`
	AuthorName  string       `json:"author_name"`
	GuildName   string       `json:"guild_name"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Bot         bool         `json:"bot,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// HasAttachments reports whether the message carries any files.
func (m *Message) HasAttachments() bool { return len(m.Attachments) > 0 }

// Copy identifies one relayed copy of a source message.
type Copy struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}
