package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Slack: SlackConfig{
			RequireMention:      true,
			ReplayWindowSeconds: 300,
		},
		Agent: AgentConfig{
			Backend:        "bedrock",
			BedrockAliasID: "TSTALIASID",
			TimeoutSeconds: 60,
		},
		Session: SessionConfig{
			Backend:    "dynamodb",
			DBPath:     "~/.slackbridge/sessions.db",
			TTLSeconds: 86400,
		},
		Server: ServerConfig{
			ListenAddr:  ":8080",
			WebhookPath: "/slack/events",
			MetricsPath: "/metrics",
		},
	}
}
