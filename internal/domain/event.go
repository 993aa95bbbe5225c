package domain

import "context"

// EventKind classifies an inbound webhook payload.
type EventKind string

const (
	KindChallenge EventKind = "challenge"
	KindMessage   EventKind = "message"
	KindOther     EventKind = "other"
)

// InboundEvent is the parsed form of a Slack Events API payload.
// It is built once per request and never mutated afterwards.
type InboundEvent struct {
	Kind      EventKind
	Challenge string // handshake token, only for KindChallenge

	EventType string // raw inner event type, e.g. "message", "app_mention"
	SubType   string // message subtype, e.g. "message_changed"
	Text      string
	UserID    string
	ChannelID string
	ThreadID  string // thread root ts; the message's own ts when not threaded
	Threaded  bool   // true when the payload carried thread_ts
	FromBot   bool   // bot_id present, or author is the bot's own user
}

// Request is the raw input handed over by a transport.
// Body must be the exact bytes received; signatures are computed over it.
type Request struct {
	Body      []byte
	Signature string
	Timestamp string
}

// Response is the {statusCode, body} result handed back to a transport.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       []byte `json:"-"`
}

// RequestHandler processes one verified-or-not webhook request end to end.
// Transports adapt their native request shape to Request and write back
// the Response unchanged.
type RequestHandler interface {
	Handle(ctx context.Context, req Request) Response
}
