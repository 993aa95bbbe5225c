// Package bridge runs one Slack Events API request through verification,
// classification, session resolution, agent invocation and reply.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"slackbridge/internal/domain"
	"slackbridge/internal/metrics"

	"github.com/google/uuid"
)

// Response bodies.
const (
	BodyProcessed     = "Message processed"
	BodyUnsupported   = "Event type not supported"
	BodyNotForBot     = "Not a message for this bot"
	BodyBadSignature  = "Invalid request signature"
	BodyInvalid       = "Invalid request"
	BodyInternalError = "Internal server error"
)

// Config wires the orchestrator's collaborators.
type Config struct {
	Secrets   domain.SecretSource
	Verifier  domain.Verifier
	Sessions  domain.SessionResolver
	Agent     domain.AgentClient
	Publisher domain.ReplyPublisher

	BotMention     string // addressing token, e.g. <@U12345678>
	BotUserID      string // marks the bot's own messages
	RequireMention bool

	Now    func() time.Time
	Logger *slog.Logger
}

// Orchestrator is safe for concurrent use; it holds no per-request state.
type Orchestrator struct {
	secrets   domain.SecretSource
	verifier  domain.Verifier
	sessions  domain.SessionResolver
	agent     domain.AgentClient
	publisher domain.ReplyPublisher
	mention   mentionFilter
	botUserID string
	now       func() time.Time
	logger    *slog.Logger
}

func New(cfg Config) (*Orchestrator, error) {
	switch {
	case cfg.Secrets == nil:
		return nil, errors.New("bridge: missing secret source")
	case cfg.Verifier == nil:
		return nil, errors.New("bridge: missing verifier")
	case cfg.Sessions == nil:
		return nil, errors.New("bridge: missing session resolver")
	case cfg.Agent == nil:
		return nil, errors.New("bridge: missing agent client")
	case cfg.Publisher == nil:
		return nil, errors.New("bridge: missing reply publisher")
	case cfg.RequireMention && cfg.BotMention == "":
		return nil, errors.New("bridge: mention required but no bot mention configured")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		secrets:   cfg.Secrets,
		verifier:  cfg.Verifier,
		sessions:  cfg.Sessions,
		agent:     cfg.Agent,
		publisher: cfg.Publisher,
		mention:   newMentionFilter(cfg.BotMention, cfg.RequireMention),
		botUserID: cfg.BotUserID,
		now:       cfg.Now,
		logger:    cfg.Logger,
	}, nil
}

// Result is the full account of one request.
type Result struct {
	RequestID string
	Path      []State // every state entered, ending in DONE or ERROR
	Kind      ErrorKind
	Err       error
	Response  domain.Response
}

// Final returns the terminal state.
func (r Result) Final() State {
	if len(r.Path) == 0 {
		return StateReceived
	}
	return r.Path[len(r.Path)-1]
}

// Reached reports whether s was entered.
func (r Result) Reached(s State) bool {
	for _, p := range r.Path {
		if p == s {
			return true
		}
	}
	return false
}

// Handle implements domain.RequestHandler.
func (o *Orchestrator) Handle(ctx context.Context, req domain.Request) domain.Response {
	return o.Process(ctx, req).Response
}

// Process runs the request and reports the path it took.
func (o *Orchestrator) Process(ctx context.Context, req domain.Request) (res Result) {
	res.RequestID = uuid.NewString()
	log := o.logger.With("request_id", res.RequestID)
	start := time.Now()

	enter := func(s State) {
		res.Path = append(res.Path, s)
		log.Debug("state", "state", s.String())
	}
	fail := func(kind ErrorKind, err error, status int, body string) Result {
		enter(StateError)
		res.Kind, res.Err = kind, err
		res.Response = jsonResponse(status, body)
		return res
	}

	defer func() {
		if r := recover(); r != nil {
			res = fail(KindInternal, fmt.Errorf("panic: %v", r), http.StatusInternalServerError, BodyInternalError)
		}
		outcome := outcomeOf(res)
		metrics.Requests(outcome).Inc()
		attrs := []any{"outcome", outcome, "status", res.Response.StatusCode, "duration_ms", time.Since(start).Milliseconds()}
		switch res.Kind {
		case KindNone, KindNotApplicable:
			log.Info("request handled", attrs...)
		case KindAuthentication, KindMalformedPayload:
			log.Warn("request rejected", append(attrs, "err", res.Err)...)
		default:
			log.Error("request failed", append(attrs, "kind", res.Kind.String(), "err", res.Err)...)
		}
	}()

	enter(StateReceived)

	creds, err := o.secrets.Fetch(ctx)
	if err != nil {
		return fail(KindDependency, fmt.Errorf("fetch credentials: %w", err), http.StatusInternalServerError, BodyInternalError)
	}

	if !o.verifier.Verify(req.Body, req.Signature, req.Timestamp, creds.SigningSecret, o.now()) {
		return fail(KindAuthentication, errors.New("signature verification failed"), http.StatusForbidden, BodyBadSignature)
	}
	enter(StateVerified)

	ev, err := ParseEvent(req.Body, o.botUserID)
	if err != nil {
		return fail(KindMalformedPayload, err, http.StatusBadRequest, BodyInvalid)
	}

	if ev.Kind == domain.KindChallenge {
		enter(StateChallengeAck)
		enter(StateDone)
		res.Response = challengeResponse(ev.Challenge)
		return res
	}
	enter(StateClassified)

	if reason, body := o.classify(ev); reason != "" {
		enter(StateIgnored)
		enter(StateDone)
		res.Kind = KindNotApplicable
		res.Err = errors.New(reason)
		res.Response = jsonResponse(http.StatusOK, body)
		log.Debug("event ignored", "reason", reason, "event_type", ev.EventType, "subtype", ev.SubType)
		return res
	}

	text := o.mention.Clean(ev.Text)
	log = log.With("channel", ev.ChannelID, "thread", ev.ThreadID)

	sessionID := o.sessions.ResolveSession(ctx, ev.ThreadID, ev.ChannelID, ev.UserID)
	enter(StateSessionResolved)

	reply := o.agent.Invoke(ctx, domain.AgentExchange{Text: text, SessionID: sessionID, ThreadID: ev.ThreadID})
	enter(StateAgentInvoked)

	if err := o.publisher.Publish(ctx, creds.BotToken, ev.ChannelID, ev.ThreadID, reply); err != nil {
		return fail(KindDependency, fmt.Errorf("publish reply: %w", err), http.StatusInternalServerError, BodyInternalError)
	}
	enter(StateReplied)
	enter(StateDone)
	res.Response = jsonResponse(http.StatusOK, BodyProcessed)
	return res
}

// classify returns a non-empty reason when the event is out of scope.
func (o *Orchestrator) classify(ev domain.InboundEvent) (reason, body string) {
	switch {
	case ev.Kind != domain.KindMessage:
		return "unsupported event type", BodyUnsupported
	case ev.SubType != "":
		return "message subtype", BodyNotForBot
	case ev.FromBot:
		return "authored by a bot", BodyNotForBot
	case !o.mention.Addressed(ev.Text):
		return "bot not mentioned", BodyNotForBot
	}
	return "", ""
}

func outcomeOf(res Result) string {
	switch {
	case res.Reached(StateChallengeAck):
		return "challenge"
	case res.Kind == KindNotApplicable:
		return "ignored"
	case res.Kind == KindAuthentication:
		return "unauthorized"
	case res.Kind == KindMalformedPayload:
		return "malformed"
	case res.Kind == KindNone && res.Final() == StateDone:
		return "replied"
	}
	return "error"
}

func jsonResponse(status int, msg string) domain.Response {
	body, _ := json.Marshal(msg)
	return domain.Response{StatusCode: status, Body: body}
}

func challengeResponse(token string) domain.Response {
	body, _ := json.Marshal(map[string]string{"challenge": token})
	return domain.Response{StatusCode: http.StatusOK, Body: body}
}
