package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

func payloadCommands() *cli.Command {
	return &cli.Command{
		Name:  "payload",
		Usage: "Payload inspection commands",
		Subcommands: []*cli.Command{
			statusCommand(),
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Fetch the current state of a signing payload",
		ArgsUsage: "PAYLOAD_ID",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "filter",
				Aliases: []string{"f"},
				Usage:   "jq expression applied to the payload JSON (e.g. '.meta.signed')",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("payload id is required")
			}

			gateway, _, _, err := buildClient(c)
			if err != nil {
				return err
			}

			payload, err := gateway.GetPayload(c.Context, c.Args().Get(0))
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")

			filter := c.String("filter")
			if filter == "" {
				return enc.Encode(payload)
			}

			// Round-trip through generic JSON so gojq can walk it.
			raw, err := json.Marshal(payload)
			if err != nil {
				return fmt.Errorf("failed to marshal payload: %w", err)
			}
			var doc any
			if err := json.Unmarshal(raw, &doc); err != nil {
				return fmt.Errorf("failed to unmarshal payload: %w", err)
			}

			query, err := gojq.Parse(filter)
			if err != nil {
				return fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
			}
			code, err := gojq.Compile(query)
			if err != nil {
				return fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
			}

			iter := code.Run(doc)
			for {
				v, ok := iter.Next()
				if !ok {
					break
				}
				if err, isErr := v.(error); isErr {
					return fmt.Errorf("jq filter error: %w", err)
				}
				if err := enc.Encode(v); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
