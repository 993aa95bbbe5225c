package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for slackbridge.
type Config struct {
	General GeneralConfig `yaml:"general"`
	Slack   SlackConfig   `yaml:"slack"`
	Agent   AgentConfig   `yaml:"agent"`
	Session SessionConfig `yaml:"session"`
	Server  ServerConfig  `yaml:"server"`
	AWS     AWSConfig     `yaml:"aws"`
}

type GeneralConfig struct {
	LogLevel string `yaml:"logLevel"` // debug | info | warn | error
}

type SlackConfig struct {
	SecretID            string `yaml:"secretId,omitempty"`      // Secrets Manager id holding slack_token + slack_signing_secret
	BotToken            string `yaml:"botToken,omitempty"`      // used when SecretID is empty
	SigningSecret       string `yaml:"signingSecret,omitempty"` // used when SecretID is empty
	BotMention          string `yaml:"botMention"`              // addressing token, e.g. <@U12345678>
	RequireMention      bool   `yaml:"requireMention"`
	ReplayWindowSeconds int    `yaml:"replayWindowSeconds"`
	APIURL              string `yaml:"apiUrl,omitempty"`   // override for tests and proxies
	SecretCacheSeconds  int    `yaml:"secretCacheSeconds"` // 0 fetches on every request
}

// AgentConfig selects the remote agent. By default a failed invocation is
// answered with the fallback message and never retried; a failover chain in
// Backend or a positive MaxRetries makes one invocation call the agent more
// than once.
type AgentConfig struct {
	Backend         string `yaml:"backend"` // bedrock | http, or a comma-separated failover chain
	BedrockAgentID  string `yaml:"bedrockAgentId,omitempty"`
	BedrockAliasID  string `yaml:"bedrockAliasId,omitempty"`
	EnableTrace     bool   `yaml:"enableTrace"`
	Endpoint        string `yaml:"endpoint,omitempty"`
	APIKey          string `yaml:"apiKey,omitempty"`
	TimeoutSeconds  int    `yaml:"timeoutSeconds"`
	MaxRetries      int    `yaml:"maxRetries"` // opt-in, http backend only
	FallbackMessage string `yaml:"fallbackMessage,omitempty"`
}

type SessionConfig struct {
	Backend    string `yaml:"backend"` // dynamodb | sqlite
	TableName  string `yaml:"tableName,omitempty"`
	DBPath     string `yaml:"dbPath,omitempty"`
	TTLSeconds int    `yaml:"ttlSeconds"`
}

type ServerConfig struct {
	ListenAddr  string `yaml:"listenAddr"`
	WebhookPath string `yaml:"webhookPath"`
	MetricsPath string `yaml:"metricsPath"`
}

type AWSConfig struct {
	Region string `yaml:"region,omitempty"`
}

// SessionTTL returns the session expiry as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLSeconds) * time.Second
}

// ReplayWindow returns the accepted request timestamp skew.
func (c *Config) ReplayWindow() time.Duration {
	return time.Duration(c.Slack.ReplayWindowSeconds) * time.Second
}

// SecretCacheTTL returns how long fetched credentials are reused.
func (c *Config) SecretCacheTTL() time.Duration {
	return time.Duration(c.Slack.SecretCacheSeconds) * time.Second
}

// AgentTimeout returns the outbound agent call timeout.
func (c *Config) AgentTimeout() time.Duration {
	return time.Duration(c.Agent.TimeoutSeconds) * time.Second
}

// AgentBackends splits agent.backend into its ordered failover chain.
func (c *Config) AgentBackends() []string {
	var out []string
	for _, b := range strings.Split(c.Agent.Backend, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// BotUserID extracts U12345678 from an addressing token like <@U12345678>.
func (c *Config) BotUserID() string {
	m := strings.TrimSpace(c.Slack.BotMention)
	if strings.HasPrefix(m, "<@") && strings.HasSuffix(m, ">") {
		m = m[2 : len(m)-1]
		if i := strings.IndexByte(m, '|'); i >= 0 {
			m = m[:i]
		}
		return m
	}
	return ""
}

// Load reads a YAML config file on top of Defaults. ${VAR} and
// ${VAR:-default} references are expanded before parsing.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}
	cfg.Session.DBPath = ExpandPath(cfg.Session.DBPath)
	return cfg, nil
}

// Resolve builds the effective config: the file at path (or Defaults when
// path is empty), then environment overrides, then validation.
func Resolve(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides cfg with the recognized environment variables.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	var errs []string

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: not an integer: %q", key, v))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: not a boolean: %q", key, v))
				return
			}
			*dst = b
		}
	}

	str("LOG_LEVEL", &cfg.General.LogLevel)

	str("SLACK_SECRET_ARN", &cfg.Slack.SecretID)
	str("SLACK_BOT_TOKEN", &cfg.Slack.BotToken)
	str("SLACK_SIGNING_SECRET", &cfg.Slack.SigningSecret)
	str("BOT_MENTION", &cfg.Slack.BotMention)
	flag("REQUIRE_MENTION", &cfg.Slack.RequireMention)
	num("REPLAY_WINDOW_SECONDS", &cfg.Slack.ReplayWindowSeconds)
	str("SLACK_API_URL", &cfg.Slack.APIURL)
	num("SECRET_CACHE_SECONDS", &cfg.Slack.SecretCacheSeconds)

	str("AGENT_BACKEND", &cfg.Agent.Backend)
	str("BEDROCK_AGENT_ID", &cfg.Agent.BedrockAgentID)
	str("BEDROCK_AGENT_ALIAS_ID", &cfg.Agent.BedrockAliasID)
	flag("BEDROCK_ENABLE_TRACE", &cfg.Agent.EnableTrace)
	str("AGENT_ENDPOINT", &cfg.Agent.Endpoint)
	str("AGENT_API_KEY", &cfg.Agent.APIKey)
	num("AGENT_TIMEOUT_SECONDS", &cfg.Agent.TimeoutSeconds)
	num("AGENT_MAX_RETRIES", &cfg.Agent.MaxRetries)
	str("AGENT_FALLBACK_MESSAGE", &cfg.Agent.FallbackMessage)

	str("SESSION_BACKEND", &cfg.Session.Backend)
	str("SESSION_TABLE_NAME", &cfg.Session.TableName)
	str("SESSION_DB_PATH", &cfg.Session.DBPath)
	num("SESSION_TTL_SECONDS", &cfg.Session.TTLSeconds)

	str("LISTEN_ADDR", &cfg.Server.ListenAddr)
	str("WEBHOOK_PATH", &cfg.Server.WebhookPath)

	str("AWS_REGION", &cfg.AWS.Region)

	cfg.Session.DBPath = ExpandPath(cfg.Session.DBPath)

	if len(errs) > 0 {
		return fmt.Errorf("environment errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty; an unset VAR
// without a default is left as-is.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		defaultVal, hasDefault := "", len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}
		val, exists := os.LookupEnv(groups[1])
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

// Validate checks that the config is complete and consistent.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.Slack.SecretID == "" && (cfg.Slack.BotToken == "" || cfg.Slack.SigningSecret == "") {
		errs = append(errs, "slack.secretId or both slack.botToken and slack.signingSecret are required")
	}
	if cfg.Slack.RequireMention && cfg.BotUserID() == "" {
		errs = append(errs, "slack.botMention must look like <@U12345678> when requireMention is set")
	}
	if cfg.Slack.SecretCacheSeconds < 0 {
		errs = append(errs, "slack.secretCacheSeconds must be >= 0")
	}
	if cfg.Slack.ReplayWindowSeconds < 1 {
		errs = append(errs, "slack.replayWindowSeconds must be >= 1")
	}

	backends := cfg.AgentBackends()
	if len(backends) == 0 {
		errs = append(errs, "agent.backend is required")
	}
	for _, b := range backends {
		switch b {
		case "bedrock":
			if cfg.Agent.BedrockAgentID == "" {
				errs = append(errs, "agent.bedrockAgentId is required for the bedrock backend")
			}
		case "http":
			if cfg.Agent.Endpoint == "" {
				errs = append(errs, "agent.endpoint is required for the http backend")
			}
		default:
			errs = append(errs, fmt.Sprintf("agent.backend %q must be one of: bedrock, http", b))
		}
	}
	if cfg.Agent.TimeoutSeconds < 1 {
		errs = append(errs, "agent.timeoutSeconds must be >= 1")
	}
	if cfg.Agent.MaxRetries < 0 {
		errs = append(errs, "agent.maxRetries must be >= 0")
	}

	switch cfg.Session.Backend {
	case "dynamodb":
		if cfg.Session.TableName == "" {
			errs = append(errs, "session.tableName is required for the dynamodb backend")
		}
	case "sqlite":
		if cfg.Session.DBPath == "" {
			errs = append(errs, "session.dbPath is required for the sqlite backend")
		}
	default:
		errs = append(errs, "session.backend must be one of: dynamodb, sqlite")
	}
	if cfg.Session.TTLSeconds < 1 {
		errs = append(errs, "session.ttlSeconds must be >= 1")
	}

	if !strings.HasPrefix(cfg.Server.WebhookPath, "/") {
		errs = append(errs, "server.webhookPath must start with /")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
