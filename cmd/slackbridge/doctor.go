package main

import (
	"context"
	"fmt"
	"time"

	"slackbridge/internal/domain"

	"github.com/spf13/cobra"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks against the configured dependencies",
		Long: `Verifies that slackbridge's configuration is valid, that Slack credentials
can be fetched and that the session store answers. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("slackbridge doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed, failed := 0, 0

			cfg, err := loadConfig()
			if err != nil {
				printFail("Config", err.Error())
				fmt.Printf("\n%d passed, %d failed\n", passed, failed+1)
				return nil
			}
			printPass("Config", fmt.Sprintf("agent=%s sessions=%s", cfg.Agent.Backend, cfg.Session.Backend))
			passed++

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()

			app, err := buildApp(ctx, cfg, logger)
			if err != nil {
				printFail("Wiring", err.Error())
				fmt.Printf("\n%d passed, %d failed\n", passed, failed+1)
				return nil
			}
			defer app.Close()
			printPass("Wiring", "all collaborators constructed")
			passed++

			if creds, err := app.Secrets.Fetch(ctx); err != nil {
				printFail("Slack credentials", err.Error())
				failed++
			} else {
				printPass("Slack credentials", fmt.Sprintf("bot token %s", maskToken(creds.BotToken)))
				passed++
			}

			probe := domain.SessionKey{ThreadID: "doctor-probe", ChannelID: "doctor"}
			if _, err := app.Store.GetSession(ctx, probe); err != nil {
				printFail("Session store", err.Error())
				failed++
			} else {
				printPass("Session store", cfg.Session.Backend+" reachable")
				passed++
			}

			if cfg.Slack.RequireMention {
				printPass("Mention gating", "replies only when "+cfg.Slack.BotMention+" is mentioned")
			} else {
				printWarn("Mention gating", "disabled: every thread message will be answered")
			}
			passed++

			fmt.Printf("\n%d passed, %d failed\n", passed, failed)
			return nil
		},
	}
}

func maskToken(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

func printPass(check, detail string) {
	fmt.Printf("  ✓ %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  ✗ %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  ! %-20s %s\n", check, detail)
}
