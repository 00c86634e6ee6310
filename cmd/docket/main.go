// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/docket"
	"github.com/poiesic/docket/config"
	"github.com/poiesic/docket/core"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "docket",
		Usage: "Document persistence for player balances",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML settings (defaults to flat files under ./storage)",
				EnvVars: []string{"DOCKET_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.IntFlag{
				Name:  "max-retries",
				Usage: "Maximum attempts for transient storage failures",
				Value: 1,
			},
			&cli.DurationFlag{
				Name:  "retry-delay",
				Usage: "Base delay for exponential backoff",
				Value: 200 * time.Millisecond,
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "get-balance",
				Usage:     "Print a player's balance, creating the player if needed",
				ArgsUsage: "<uuid>",
				Action:    getBalanceCommand,
			},
			{
				Name:      "set-balance",
				Usage:     "Replace a player's balance",
				ArgsUsage: "<uuid> <amount>",
				Action:    setBalanceCommand,
			},
			{
				Name:      "deposit",
				Usage:     "Add to a player's balance; negative amounts withdraw",
				ArgsUsage: "<uuid> <amount>",
				Action:    depositCommand,
			},
			{
				Name:      "delete",
				Usage:     "Delete a player's document",
				ArgsUsage: "<uuid>",
				Action:    deleteCommand,
			},
			{
				Name:      "list",
				Usage:     "List stored players whose id starts with prefix",
				ArgsUsage: "[prefix]",
				Action:    listCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "balances",
						Aliases: []string{"b"},
						Usage:   "Also load and print every balance",
					},
				},
			},
			{
				Name:   "showcase",
				Usage:  "Store the polymorphic sample and print what reads back",
				Action: showcaseCommand,
			},
		},
	}
}

func openDatabase(c *cli.Context) (*docket.Database, error) {
	cfg := config.DefaultStorage()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	attempts := c.Int("max-retries")
	if attempts <= 0 {
		return nil, fmt.Errorf("max-retries must be greater than 0")
	}

	db, err := docket.Open(cfg, docket.WithRetry(attempts, c.Duration("retry-delay")))
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return db, nil
}

func playerArg(c *cli.Context, i int) (uuid.UUID, error) {
	raw := c.Args().Get(i)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("player uuid is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid player uuid %q: %w", raw, err)
	}
	return id, nil
}

func amountArg(c *cli.Context, i int) (decimal.Decimal, error) {
	raw := c.Args().Get(i)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("amount is required")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return amount, nil
}

func getBalanceCommand(c *cli.Context) error {
	id, err := playerArg(c, 0)
	if err != nil {
		return err
	}
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	balance, err := db.Balances().Balance(c.Context, id)
	if err != nil {
		return fmt.Errorf("failed to read balance: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "%s %s\n", id, balance)
	return nil
}

func setBalanceCommand(c *cli.Context) error {
	return updateBalance(c, "set", func(ctx context.Context, db *docket.Database, id uuid.UUID, amount decimal.Decimal) (*core.User, error) {
		return db.Balances().SetBalance(ctx, id, amount)
	})
}

func depositCommand(c *cli.Context) error {
	return updateBalance(c, "deposit", func(ctx context.Context, db *docket.Database, id uuid.UUID, amount decimal.Decimal) (*core.User, error) {
		return db.Balances().Deposit(ctx, id, amount)
	})
}

type balanceUpdate func(ctx context.Context, db *docket.Database, id uuid.UUID, amount decimal.Decimal) (*core.User, error)

func updateBalance(c *cli.Context, verb string, update balanceUpdate) error {
	id, err := playerArg(c, 0)
	if err != nil {
		return err
	}
	amount, err := amountArg(c, 1)
	if err != nil {
		return err
	}
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := update(c.Context, db, id, amount)
	if err != nil {
		return fmt.Errorf("%s failed: %w", verb, err)
	}
	fmt.Fprintf(c.App.Writer, "%s %s\n", id, user.Balance)
	return nil
}

func deleteCommand(c *cli.Context) error {
	id, err := playerArg(c, 0)
	if err != nil {
		return err
	}
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Balances().Delete(c.Context, id); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	slog.Info("player deleted", "player", id)
	return nil
}

func listCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	var ids []uuid.UUID
	for id, err := range db.Balances().List(c.Context, c.Args().First()) {
		if err != nil {
			return fmt.Errorf("list failed: %w", err)
		}
		ids = append(ids, id)
	}

	if !c.Bool("balances") {
		for _, id := range ids {
			fmt.Fprintln(c.App.Writer, id)
		}
		return nil
	}

	balances, err := db.Balances().Balances(c.Context, ids)
	for _, id := range ids {
		if balance, ok := balances[id]; ok {
			fmt.Fprintf(c.App.Writer, "%s %s\n", id, balance)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to load balances: %w", err)
	}
	return nil
}

func showcaseCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	path := core.MustOf("sample")
	if err := db.Store().Put(c.Context, core.Showcases, path, core.SampleShowcase()); err != nil {
		return fmt.Errorf("failed to store sample: %w", err)
	}

	var showcase core.Showcase
	if err := db.Store().MustLoad(c.Context, core.Showcases, path, &showcase); err != nil {
		return fmt.Errorf("failed to load sample: %w", err)
	}

	registry := db.Store().Serializer().Registry()
	for _, computer := range showcase.Computers {
		tag, err := registry.TagFor(computer)
		if err != nil {
			return err
		}
		specs := computer.Hardware()
		fmt.Fprintf(c.App.Writer, "%s: %s %s (%s)\n", tag, specs.Brand, specs.Model, computer.Kind())
	}
	for _, animal := range showcase.Animals {
		tag, err := registry.TagFor(animal)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%s: %s says %s\n", tag, animal.Name(), animal.Speak())
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
