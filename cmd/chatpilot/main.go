package main

import (
	"fmt"
	"os"
	"strings"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	if len(os.Args) < 2 || strings.HasPrefix(os.Args[1], "-") || os.Args[1] == "run" {
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		return
	}

	var err error
	switch os.Args[1] {
	case "send":
		err = runSend(commandArgs())
	case "toggle":
		err = runToggle()
	case "show":
		err = runShow()
	case "settings":
		err = runSettings(commandArgs())
	case "doctor":
		err = runDoctor()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'chatpilot --help' for usage information.\n", os.Args[1])
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`chatpilot - Desktop launcher for the Kimi chat web app

USAGE:
    chatpilot [COMMAND] [FLAGS]

COMMANDS:
    run         Start Chrome, the local server and the launcher (default)
    send        Send a message through the running instance
                Flags: --new (start a new chat), --bot (bot mode)
    toggle      Toggle the launcher of the running instance
    show        Bring the chat window of the running instance forward
    settings    Print the stored settings
                Subcommand: set new-chat=BOOL notifications=BOOL
    doctor      Run health checks on your setup

FLAGS:
    -h, --help         Show this help message
    --config PATH      Specify config file path (default: ./config.yaml)

CONFIGURATION:
    Config file: ./config.yaml (optional, defaults apply when missing)
    Environment: CHATPILOT_* variables override config

EXAMPLES:
    chatpilot                                  # Start with defaults
    chatpilot --config ~/.chatpilot/config.yaml
    chatpilot send --new "summarize this page"
    chatpilot settings set notifications=false
    chatpilot doctor                           # Check system health`)
}

func configPath() string {
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	if p := os.Getenv("CHATPILOT_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

// commandArgs returns the arguments after the subcommand with the --config
// flag removed.
func commandArgs() []string {
	if len(os.Args) < 3 {
		return nil
	}
	return stripConfigFlag(os.Args[2:])
}

func stripConfigFlag(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--config":
			i++
		case strings.HasPrefix(args[i], "--config="):
		default:
			out = append(out, args[i])
		}
	}
	return out
}
