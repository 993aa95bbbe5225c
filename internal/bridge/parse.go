package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"slackbridge/internal/domain"

	"github.com/slack-go/slack/slackevents"
)

// ErrMalformedPayload marks a body that is not a recognizable Events API payload.
var ErrMalformedPayload = errors.New("malformed payload")

type envelope struct {
	Type      string        `json:"type"`
	Challenge *string       `json:"challenge"`
	Event     *messageEvent `json:"event"`
}

type messageEvent struct {
	Type     string `json:"type"`
	SubType  string `json:"subtype"`
	Channel  string `json:"channel"`
	User     string `json:"user"`
	Text     string `json:"text"`
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts"`
	BotID    string `json:"bot_id"`
}

// ParseEvent turns a verified request body into an InboundEvent.
// botUserID, when set, marks the bot's own messages as FromBot.
func ParseEvent(body []byte, botUserID string) (domain.InboundEvent, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return domain.InboundEvent{}, fmt.Errorf("%w: body is not a JSON object", ErrMalformedPayload)
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return domain.InboundEvent{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if env.Type == string(slackevents.URLVerification) || env.Challenge != nil {
		if env.Challenge == nil || *env.Challenge == "" {
			return domain.InboundEvent{}, fmt.Errorf("%w: empty challenge", ErrMalformedPayload)
		}
		return domain.InboundEvent{Kind: domain.KindChallenge, Challenge: *env.Challenge}, nil
	}

	ev := env.Event
	if ev == nil {
		return domain.InboundEvent{}, fmt.Errorf("%w: missing event", ErrMalformedPayload)
	}
	if ev.Type == "" {
		return domain.InboundEvent{}, fmt.Errorf("%w: missing event type", ErrMalformedPayload)
	}
	if ev.Type != string(slackevents.Message) {
		return domain.InboundEvent{Kind: domain.KindOther, EventType: ev.Type}, nil
	}

	out := domain.InboundEvent{
		Kind:      domain.KindMessage,
		EventType: ev.Type,
		SubType:   ev.SubType,
		Text:      ev.Text,
		UserID:    ev.User,
		ChannelID: ev.Channel,
		ThreadID:  ev.ThreadTS,
		Threaded:  ev.ThreadTS != "",
		FromBot:   ev.BotID != "" || (botUserID != "" && ev.User == botUserID),
	}
	if !out.Threaded {
		out.ThreadID = ev.TS
	}
	// Edits, deletions and bot posts carry a different shape and are
	// discarded later; only plain messages must be complete.
	if out.SubType != "" || out.FromBot {
		return out, nil
	}

	var missing []string
	if ev.Channel == "" {
		missing = append(missing, "channel")
	}
	if ev.User == "" {
		missing = append(missing, "user")
	}
	if ev.TS == "" {
		missing = append(missing, "ts")
	}
	if len(missing) > 0 {
		return domain.InboundEvent{}, fmt.Errorf("%w: message event missing %v", ErrMalformedPayload, missing)
	}
	return out, nil
}
