// Package message defines the neutral message shapes exchanged between
// channel plugins and the gateway: the snapshot of one external HTTP call,
// and the parsed result a channel derives from it.
package message

// InboundMessage is a single user-originated text event after
// platform-specific normalization. One platform update may yield zero, one,
// or more inbound messages.
type InboundMessage struct {
	// MessageID is the platform message identifier, when the platform
	// provides one.
	MessageID string `json:"messageId,omitempty"`

	// ConversationID identifies the conversation the message belongs to.
	// Always set; channels invent one when the platform payload omits it.
	ConversationID string `json:"conversationId"`

	// SenderID identifies the author, when known.
	SenderID string `json:"senderId,omitempty"`

	// Text is the normalized message text. Never empty.
	Text string `json:"text"`

	// Metadata carries platform-specific extras (update ids, chat types).
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ImmediateReply is a reply delivered without a runtime round-trip:
// command responses, help text, validation notices.
type ImmediateReply struct {
	ConversationID string         `json:"conversationId"`
	Text           string         `json:"text"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// ParsedInbound is the outcome of parsing one InboundRequest.
//
// Accepted=false means the request is rejected at the HTTP layer (401).
// Accepted=true with no messages means the request is acknowledged and
// silently ignored, for example when the chat id is not allow-listed or
// the payload carries no text.
type ParsedInbound struct {
	Accepted           bool             `json:"accepted"`
	Messages           []InboundMessage `json:"messages"`
	ImmediateResponses []ImmediateReply `json:"immediateResponses,omitempty"`
}

// Empty reports whether the parse produced neither messages nor
// immediate responses.
func (p ParsedInbound) Empty() bool {
	return len(p.Messages) == 0 && len(p.ImmediateResponses) == 0
}
