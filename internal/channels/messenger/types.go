package messenger

import (
	"fmt"
	"time"
)

// WebhookEvent is the top-level structure received from Meta's webhook.
type WebhookEvent struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry represents a single entry in the webhook payload.
type Entry struct {
	ID        string      `json:"id"`
	Time      int64       `json:"time"`
	Messaging []Messaging `json:"messaging"`
}

// Messaging represents a single messaging event.
type Messaging struct {
	Sender    Participant `json:"sender"`
	Recipient Participant `json:"recipient"`
	Timestamp int64       `json:"timestamp"`
	Message   *Message    `json:"message,omitempty"`
	Postback  *Postback   `json:"postback,omitempty"`
}

// Participant is a page-scoped id.
type Participant struct {
	ID string `json:"id"`
}

// Message contains the message content.
type Message struct {
	MID        string          `json:"mid"`
	Text       string          `json:"text"`
	IsEcho     bool            `json:"is_echo,omitempty"`
	QuickReply *QuickReplyPick `json:"quick_reply,omitempty"`
}

// QuickReplyPick is attached when the customer tapped a quick reply.
type QuickReplyPick struct {
	Payload string `json:"payload"`
}

// Postback represents a postback event (button tap).
type Postback struct {
	MID     string `json:"mid,omitempty"`
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

// SendRequest is the payload sent to the Graph API to send a message.
type SendRequest struct {
	Recipient     Participant `json:"recipient"`
	MessagingType string      `json:"messaging_type"`
	Message       SendMessage `json:"message"`
}

// SendMessage is the message content for outbound messages.
type SendMessage struct {
	Text         string       `json:"text"`
	QuickReplies []QuickReply `json:"quick_replies,omitempty"`
}

// QuickReply is one button offered under an outbound message.
type QuickReply struct {
	ContentType string `json:"content_type"`
	Title       string `json:"title"`
	Payload     string `json:"payload"`
}

// SendResponse is the response from the Graph API after sending a message.
type SendResponse struct {
	RecipientID string      `json:"recipient_id"`
	MessageID   string      `json:"message_id"`
	Error       *GraphError `json:"error,omitempty"`
}

// GraphError represents an error returned by the Graph API.
type GraphError struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	FBTraceID string `json:"fbtrace_id"`
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("messenger: graph API error %d: %s", e.Code, e.Message)
}

// Profile is the public name of a Messenger user.
type Profile struct {
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Error     *GraphError `json:"error,omitempty"`
}

// FullName joins the non-empty name parts.
func (p Profile) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}

// ParsedInboundMessage is the normalized result of parsing a webhook event.
type ParsedInboundMessage struct {
	SenderID    string
	RecipientID string
	MessageID   string
	Text        string
	Timestamp   time.Time
	IsPostback  bool
	Payload     string
}

// EventType labels the message for metrics.
func (m ParsedInboundMessage) EventType() string {
	switch {
	case m.IsPostback:
		return "postback"
	case m.Payload != "":
		return "quick_reply"
	default:
		return "message"
	}
}
