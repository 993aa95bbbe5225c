package channel

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"slackbridge/internal/domain"

	"github.com/aws/aws-lambda-go/events"
)

// Lambda adapts API Gateway proxy events to the request handler.
type Lambda struct {
	handler domain.RequestHandler
	logger  *slog.Logger
}

func NewLambda(handler domain.RequestHandler, logger *slog.Logger) *Lambda {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lambda{handler: handler, logger: logger}
}

func (l *Lambda) Name() string { return "lambda" }

// Handle is the function registered with lambda.Start. It never returns an
// error: every outcome is expressed through the status code.
func (l *Lambda) Handle(ctx context.Context, ev events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	body := []byte(ev.Body)
	if ev.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(ev.Body)
		if err != nil {
			l.logger.Warn("lambda body is not valid base64", "err", err)
			return proxyResponse(domain.Response{
				StatusCode: http.StatusBadRequest,
				Body:       []byte(`"Invalid request"`),
			}), nil
		}
		body = decoded
	}

	resp := l.handler.Handle(ctx, domain.Request{
		Body:      body,
		Signature: headerValue(ev, HeaderSignature),
		Timestamp: headerValue(ev, HeaderTimestamp),
	})
	return proxyResponse(resp), nil
}

// headerValue looks a header up case-insensitively; API Gateway preserves
// the client's casing.
func headerValue(ev events.APIGatewayProxyRequest, name string) string {
	for k, v := range ev.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	for k, vs := range ev.MultiValueHeaders {
		if strings.EqualFold(k, name) && len(vs) > 0 {
			return vs[0]
		}
	}
	return ""
}

func proxyResponse(resp domain.Response) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: resp.StatusCode,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(resp.Body),
	}
}
