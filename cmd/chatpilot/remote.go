package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"chatpilot/internal/adapter/server"
	"chatpilot/internal/domain"
	"chatpilot/internal/infra/config"
)

// remoteClient returns a control API client for the configured instance.
func remoteClient() (*server.Client, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return server.NewClient("http://" + cfg.Server.Addr), nil
}

func remoteContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

// parseSendArgs reads --new and --bot; the remaining words form the message.
func parseSendArgs(args []string) (domain.InjectionRequest, error) {
	var req domain.InjectionRequest
	var words []string
	for _, a := range args {
		switch a {
		case "--new":
			req.NewChat = true
		case "--bot":
			req.BotMode = true
		default:
			if strings.HasPrefix(a, "--") {
				return req, fmt.Errorf("unknown flag %s", a)
			}
			words = append(words, a)
		}
	}
	req.Message = strings.Join(words, " ")
	if err := req.Normalize().Validate(); err != nil {
		return req, err
	}
	return req, nil
}

func runSend(args []string) error {
	req, err := parseSendArgs(args)
	if err != nil {
		return err
	}
	client, err := remoteClient()
	if err != nil {
		return err
	}
	ctx, cancel := remoteContext()
	defer cancel()
	runID, err := client.Submit(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("sent (run %s)\n", runID)
	return nil
}

func runToggle() error {
	client, err := remoteClient()
	if err != nil {
		return err
	}
	ctx, cancel := remoteContext()
	defer cancel()
	return client.ToggleLauncher(ctx)
}

func runShow() error {
	client, err := remoteClient()
	if err != nil {
		return err
	}
	ctx, cancel := remoteContext()
	defer cancel()
	return client.ShowMain(ctx)
}

func runSettings(args []string) error {
	client, err := remoteClient()
	if err != nil {
		return err
	}
	ctx, cancel := remoteContext()
	defer cancel()

	current, err := client.Settings(ctx)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return printSettings(current)
	}
	if args[0] != "set" {
		return fmt.Errorf("unknown subcommand %q (expected: set)", args[0])
	}
	updated, err := applySettingArgs(current, args[1:])
	if err != nil {
		return err
	}
	if err := client.SaveSettings(ctx, updated); err != nil {
		return err
	}
	return printSettings(updated)
}

// applySettingArgs applies key=value pairs on top of s.
func applySettingArgs(s domain.AppSettings, pairs []string) (domain.AppSettings, error) {
	if len(pairs) == 0 {
		return s, fmt.Errorf("nothing to set (expected new-chat=BOOL or notifications=BOOL)")
	}
	for _, p := range pairs {
		key, raw, ok := strings.Cut(p, "=")
		if !ok {
			return s, fmt.Errorf("invalid setting %q (expected key=value)", p)
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return s, fmt.Errorf("invalid value for %s: %q", key, raw)
		}
		switch key {
		case "new-chat":
			s.NewChatDefault = v
		case "notifications":
			s.NotificationsEnabled = v
		default:
			return s, fmt.Errorf("unknown setting %q", key)
		}
	}
	return s, nil
}

func printSettings(s domain.AppSettings) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
