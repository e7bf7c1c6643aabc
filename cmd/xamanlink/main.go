package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "xamanlink",
		Usage: "Xaman wallet connection and signing CLI",
		Description: `A command-line tool for driving and debugging the xamanlink service.

Use this CLI to connect a Xaman wallet, sign transactions, inspect payload
state, and manage the local wallet session.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			// Wallet journey commands (HTTP API)
			walletCommands(),
			// Payload inspection commands
			payloadCommands(),
			// Server utility commands
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "xamanlink server URL",
				EnvVars: []string{"XAMANLINK_SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "session-file",
				Usage:   "Path to the durable wallet-session file",
				EnvVars: []string{"XAMANLINK_SESSION_FILE"},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// sessionPath resolves the session-file flag, defaulting under the user
// config directory.
func sessionPath(c *cli.Context) (string, error) {
	if p := c.String("session-file"); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return dir + "/xamanlink/session.json", nil
}
