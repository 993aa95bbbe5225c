package channel

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/slack-go/slack"
)

// slackMaxMsgLen is the chat.postMessage text limit in characters.
const slackMaxMsgLen = 40000

const truncationMarker = "…"

// SlackPublisher posts agent replies into Slack threads via chat.postMessage.
// Each call issues exactly one request; long text is truncated, never split.
type SlackPublisher struct {
	apiURL     string
	httpClient *http.Client
	maxLen     int
	logger     *slog.Logger
}

type SlackPublisherConfig struct {
	APIURL     string       // default: slack.APIURL
	HTTPClient *http.Client // default: http.DefaultClient
	Logger     *slog.Logger
}

func NewSlackPublisher(cfg SlackPublisherConfig) *SlackPublisher {
	if cfg.APIURL != "" && !strings.HasSuffix(cfg.APIURL, "/") {
		cfg.APIURL += "/"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &SlackPublisher{
		apiURL:     cfg.APIURL,
		httpClient: cfg.HTTPClient,
		maxLen:     slackMaxMsgLen,
		logger:     cfg.Logger,
	}
}

// Publish posts text as a threaded reply. The token is per call because
// credentials are resolved per request.
func (p *SlackPublisher) Publish(ctx context.Context, token, channelID, threadID, text string) error {
	opts := []slack.Option{slack.OptionHTTPClient(p.httpClient)}
	if p.apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(p.apiURL))
	}
	api := slack.New(token, opts...)

	msg := truncateMessage(text, p.maxLen)
	if len(msg) != len(text) {
		p.logger.Warn("slack reply truncated", "channel", channelID, "thread", threadID, "original_len", len(text))
	}

	_, ts, err := api.PostMessageContext(ctx, channelID,
		slack.MsgOptionText(msg, false),
		slack.MsgOptionTS(threadID),
	)
	if err != nil {
		return fmt.Errorf("slack post message: %w", err)
	}
	p.logger.Debug("slack reply posted", "channel", channelID, "thread", threadID, "ts", ts, "content_len", len(msg))
	return nil
}

// truncateMessage limits msg to maxLen characters, marking the cut.
func truncateMessage(msg string, maxLen int) string {
	if utf8.RuneCountInString(msg) <= maxLen {
		return msg
	}
	runes := []rune(msg)
	cut := maxLen - utf8.RuneCountInString(truncationMarker)
	if idx := lastNewline(runes[:cut]); idx > cut/2 {
		cut = idx
	}
	return string(runes[:cut]) + truncationMarker
}

func lastNewline(rs []rune) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i] == '\n' {
			return i
		}
	}
	return -1
}
