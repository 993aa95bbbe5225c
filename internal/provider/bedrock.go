package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"slackbridge/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
)

// DefaultAgentAliasID is Bedrock's built-in draft alias.
const DefaultAgentAliasID = "TSTALIASID"

// agentStream is the subset of *bedrockagentruntime.InvokeAgentEventStream we read.
type agentStream interface {
	Events() <-chan types.ResponseStream
	Close() error
	Err() error
}

type agentInvoker interface {
	InvokeAgent(ctx context.Context, in *bedrockagentruntime.InvokeAgentInput) (agentStream, error)
}

type sdkInvoker struct {
	client *bedrockagentruntime.Client
}

func (s sdkInvoker) InvokeAgent(ctx context.Context, in *bedrockagentruntime.InvokeAgentInput) (agentStream, error) {
	out, err := s.client.InvokeAgent(ctx, in)
	if err != nil {
		return nil, err
	}
	return out.GetStream(), nil
}

// Bedrock invokes an AWS Bedrock agent. The completion arrives as a stream
// of chunk events which are concatenated into the reply.
type Bedrock struct {
	invoker     agentInvoker
	agentID     string
	aliasID     string
	enableTrace bool
	logger      *slog.Logger
}

// BedrockConfig configures the Bedrock backend.
type BedrockConfig struct {
	Client      *bedrockagentruntime.Client
	AgentID     string
	AliasID     string
	EnableTrace bool
	Logger      *slog.Logger
}

func NewBedrock(cfg BedrockConfig) (*Bedrock, error) {
	return newBedrock(sdkInvoker{client: cfg.Client}, cfg)
}

func newBedrock(invoker agentInvoker, cfg BedrockConfig) (*Bedrock, error) {
	if cfg.AgentID == "" {
		return nil, fmt.Errorf("missing bedrock agent id")
	}
	if cfg.AliasID == "" {
		cfg.AliasID = DefaultAgentAliasID
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Bedrock{
		invoker:     invoker,
		agentID:     cfg.AgentID,
		aliasID:     cfg.AliasID,
		enableTrace: cfg.EnableTrace,
		logger:      cfg.Logger,
	}, nil
}

func (b *Bedrock) Name() string { return "bedrock" }

func (b *Bedrock) Invoke(ctx context.Context, ex domain.AgentExchange) (string, error) {
	stream, err := b.invoker.InvokeAgent(ctx, &bedrockagentruntime.InvokeAgentInput{
		AgentId:      aws.String(b.agentID),
		AgentAliasId: aws.String(b.aliasID),
		SessionId:    aws.String(ex.SessionID),
		InputText:    aws.String(ex.Text),
		EnableTrace:  aws.Bool(b.enableTrace),
	})
	if err != nil {
		return "", fmt.Errorf("bedrock invoke agent: %w", err)
	}
	defer stream.Close()

	var sb strings.Builder
	for event := range stream.Events() {
		switch v := event.(type) {
		case *types.ResponseStreamMemberChunk:
			sb.Write(v.Value.Bytes)
		case *types.ResponseStreamMemberTrace:
			b.logger.Debug("agent trace", "thread", ex.ThreadID, "session", ex.SessionID, "trace", v.Value)
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("bedrock completion stream: %w", err)
	}

	reply := strings.TrimSpace(sb.String())
	if reply == "" {
		return "", ErrEmptyCompletion
	}
	return reply, nil
}
