// Package messenger is the chat-platform boundary: webhook payload types,
// signature verification and the outbound Send API client. Everything the
// core needs from the transport reduces to {partyId, text} in and
// {targetPartyId, text} out.
package messenger

// WebhookEvent is the envelope POSTed to the webhook endpoint.
type WebhookEvent struct {
	Object string  `json:"object" validate:"required"`
	Entry  []Entry `json:"entry" validate:"dive"`
}

type Entry struct {
	ID        string      `json:"id"`
	Time      int64       `json:"time"`
	Messaging []Messaging `json:"messaging"`
}

type Messaging struct {
	Sender    Participant `json:"sender" validate:"required"`
	Recipient Participant `json:"recipient"`
	Timestamp int64       `json:"timestamp"`
	Message   *Message    `json:"message,omitempty"`
}

type Participant struct {
	ID string `json:"id"`
}

type Message struct {
	MID         string       `json:"mid"`
	Text        string       `json:"text"`
	IsEcho      bool         `json:"is_echo"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type Attachment struct {
	Type    string `json:"type"`
	Payload struct {
		URL string `json:"url"`
	} `json:"payload"`
}

// Notification is an out-of-band message for a party other than the one
// whose command is being processed (pending-entry alerts, confirmation
// results, link-established notices).
type Notification struct {
	TargetPartyID string
	Text          string
}
