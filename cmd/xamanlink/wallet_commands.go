package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mdp/qrterminal/v3"
	"github.com/urfave/cli/v2"

	"github.com/abroadly/xamanlink/client"
	"github.com/abroadly/xamanlink/service/xumm"
)

func walletCommands() *cli.Command {
	return &cli.Command{
		Name:  "wallet",
		Usage: "Wallet connection and signing commands",
		Subcommands: []*cli.Command{
			connectCommand(),
			signCommand(),
			resumeCommand(),
			whoamiCommand(),
			disconnectCommand(),
		},
	}
}

func connectCommand() *cli.Command {
	return &cli.Command{
		Name:  "connect",
		Usage: "Connect a Xaman wallet by approving a sign-in request",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "mobile",
				Usage: "Run the mobile flow: print the deep link and exit; complete later with 'wallet resume'",
			},
			&cli.StringFlag{
				Name:  "return-url",
				Usage: "Base URL the wallet app redirects back to (mobile flow)",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Value:   5 * time.Minute,
				Usage:   "How long to wait for approval",
			},
		},
		Action: func(c *cli.Context) error {
			orch, sessions, err := buildOrchestrator(c)
			if err != nil {
				return err
			}

			device := client.DeviceDesktop
			if c.Bool("mobile") {
				device = client.DeviceMobile
			}

			result, err := orch.Connect(c.Context, device)
			if err != nil {
				return err
			}

			if result.PendingReturn {
				fmt.Println("Open this link on your phone to approve the sign-in:")
				fmt.Println(result.DeepLink)
				fmt.Printf("\nThen complete the connection with:\n  xamanlink wallet resume '<return url>'\n")
				return nil
			}

			fmt.Printf("✓ Wallet connected: %s\n", result.Account)
			current := sessions.Current()
			if current != nil {
				fmt.Printf("  session stored (%s)\n", current.WalletKind)
			}
			return nil
		},
	}
}

func signCommand() *cli.Command {
	return &cli.Command{
		Name:      "sign",
		Usage:     "Submit a transaction template for signing in the wallet app",
		ArgsUsage: "TX_JSON_FILE ('-' for stdin)",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "mobile",
				Usage: "Use the mobile transaction flow (deep link plus poll loop)",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Value:   5 * time.Minute,
				Usage:   "How long to wait for the signature",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output the signed payload record as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("transaction file is required")
			}

			var data []byte
			var err error
			if c.Args().Get(0) == "-" {
				data, err = io.ReadAll(os.Stdin)
			} else {
				data, err = os.ReadFile(c.Args().Get(0))
			}
			if err != nil {
				return fmt.Errorf("failed to read transaction: %w", err)
			}

			var tx map[string]any
			if err := json.Unmarshal(data, &tx); err != nil {
				return fmt.Errorf("transaction must be a JSON object: %w", err)
			}

			orch, _, err := buildOrchestrator(c)
			if err != nil {
				return err
			}

			device := client.DeviceDesktop
			if c.Bool("mobile") {
				device = client.DeviceMobile
			}

			result, err := orch.SignTransaction(c.Context, device, tx)
			if err != nil {
				return err
			}

			if c.Bool("json") {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(result.Payload)
			}

			fmt.Printf("✓ Transaction signed by %s\n", result.Account)
			if result.TxID != "" {
				fmt.Printf("  txid: %s\n", result.TxID)
			}
			return nil
		},
	}
}

func resumeCommand() *cli.Command {
	return &cli.Command{
		Name:      "resume",
		Usage:     "Reconcile a wallet-app return URL from a mobile journey",
		ArgsUsage: "RETURN_URL",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("return URL is required")
			}

			gateway, sessions, logger, err := buildClient(c)
			if err != nil {
				return err
			}

			reconciler := client.NewReconciler(gateway, sessions, logger)
			result, err := reconciler.Reconcile(c.Context, c.Args().Get(0))
			if err != nil {
				return err
			}

			if !result.Handled {
				fmt.Println("URL carries no journey parameters; nothing to do")
				return nil
			}
			if !result.Signed {
				fmt.Println("Journey did not complete with a signature")
				return nil
			}

			fmt.Printf("✓ Journey %s completed: %s\n", result.Journey, result.Account)
			if result.TxID != "" {
				fmt.Printf("  txid: %s\n", result.TxID)
			}
			return nil
		},
	}
}

func whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the currently connected wallet, if any",
		Action: func(c *cli.Context) error {
			_, sessions, _, err := buildClient(c)
			if err != nil {
				return err
			}

			current := sessions.Current()
			if current == nil {
				fmt.Println("No wallet connected")
				return nil
			}
			fmt.Printf("%s (%s)\n", current.Address, current.WalletKind)
			return nil
		},
	}
}

func disconnectCommand() *cli.Command {
	return &cli.Command{
		Name:  "disconnect",
		Usage: "Clear the stored wallet session",
		Action: func(c *cli.Context) error {
			_, sessions, _, err := buildClient(c)
			if err != nil {
				return err
			}
			sessions.Disconnect()
			fmt.Println("✓ Wallet disconnected")
			return nil
		},
	}
}

// buildClient assembles the gateway, session store and logger shared by all
// wallet commands.
func buildClient(c *cli.Context) (*client.Gateway, *client.SessionStore, *slog.Logger, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only errors to stderr
	}))

	gateway := client.NewGateway(c.String("server-url"), nil, logger)

	path, err := sessionPath(c)
	if err != nil {
		return nil, nil, nil, err
	}
	sessions, err := client.NewSessionStore(path, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	return gateway, sessions, logger, nil
}

// buildOrchestrator assembles an orchestrator that renders the signing QR in
// the terminal when the journey reaches the awaiting-user state.
func buildOrchestrator(c *cli.Context) (*client.Orchestrator, *client.SessionStore, error) {
	gateway, sessions, logger, err := buildClient(c)
	if err != nil {
		return nil, nil, err
	}

	orch := client.NewOrchestrator(gateway, sessions, client.OrchestratorOptions{
		Timeout:   c.Duration("timeout"),
		ReturnURL: c.String("return-url"),
		OnAwaitingUser: func(created *xumm.CreatedPayload) {
			fmt.Println("Scan this QR code in the Xaman app:")
			qrterminal.GenerateHalfBlock(created.Next.Always, qrterminal.L, os.Stdout)
			fmt.Printf("\nOr open: %s\n\n", created.Next.Always)
		},
	}, logger)

	return orch, sessions, nil
}
