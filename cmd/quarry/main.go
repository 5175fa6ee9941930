// Copyright 2025 Quarry Labs
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
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/quarrylabs/quarry"
	"github.com/quarrylabs/quarry/config"
	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/reembed"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "quarry",
		Usage: "Knowledge-base ingestion and query engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Also write JSON logs to this file",
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				Usage:   "Path to the storage directory",
			},
			&cli.StringFlag{
				Name:  "org",
				Usage: "Organization ID",
				Value: "default",
			},
			&cli.StringFlag{
				Name:    "kb",
				Aliases: []string{"k"},
				Usage:   "Knowledge base ID",
				Value:   "default",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "add-url",
				Usage:     "Ingest a URL into the knowledge base",
				ArgsUsage: "<url>",
				Action:    addURLCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "schedule",
						Usage: "Hand the source to the scheduler instead of processing inline",
					},
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Chunk size override for this source (0 uses the configured default)",
					},
				},
			},
			{
				Name:      "query",
				Usage:     "Answer a query from the knowledge base",
				ArgsUsage: "<query>",
				Action:    queryCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "flow",
						Aliases: []string{"f"},
						Usage:   "Flow type to run",
						Value:   "answer",
					},
					&cli.StringSliceFlag{
						Name:    "option",
						Aliases: []string{"o"},
						Usage:   "Flow option override as name=value (repeatable)",
					},
				},
			},
			{
				Name:   "flows",
				Usage:  "List available flows and their options",
				Action: flowsCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Show non-explicit options too",
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Regenerate the embedding vectors of every document in the knowledge base",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "embedding-model",
						Usage: "Embedding model to reembed with (defaults to the configured model)",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of documents to embed per API call",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N documents",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed embedding calls",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
			{
				Name:   "scheduler",
				Usage:  "Run the ingestion scheduler until interrupted",
				Action: schedulerCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "workers",
						Aliases: []string{"w"},
						Usage:   "Worker pool size (0 uses the configured default)",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// buildSystem loads the settings, applies CLI overrides, and wires the
// engine. The returned cleanup closes the system and the log file.
func buildSystem(c *cli.Context) (*quarry.System, func(), error) {
	settings, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if dir := c.String("data-dir"); dir != "" {
		settings.DataDir = dir
	}
	if file := c.String("log-file"); file != "" {
		settings.LogFile = file
	}

	level, err := parseLevel(c.String("log-level"))
	if err != nil {
		return nil, nil, err
	}
	settings.LogLevel = level

	logger, closeLog := config.SetupLogger(settings.LogFile, settings.LogLevel)
	slog.SetDefault(logger)

	system, err := quarry.NewSystem(settings, quarry.WithSystemLogger(logger))
	if err != nil {
		closeLog()
		return nil, nil, fmt.Errorf("failed to open system: %w", err)
	}

	cleanup := func() {
		if err := system.Close(); err != nil {
			logger.Error("error closing system", "err", err)
		}
		closeLog()
	}
	return system, cleanup, nil
}

func addURLCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one URL argument")
	}
	url := c.Args().First()

	chunkSize := c.Int("chunk-size")
	if chunkSize < 0 {
		return fmt.Errorf("chunk-size must not be negative")
	}

	system, cleanup, err := buildSystem(c)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	kb := &core.KnowledgeBase{
		ID:           c.String("kb"),
		OrgID:        c.String("org"),
		AutoSchedule: c.Bool("schedule"),
	}

	source, err := system.SubmitSource(ctx, kb, urlSourceCreate(url, chunkSize))
	if err != nil {
		return fmt.Errorf("failed to ingest %s: %w", url, err)
	}

	if kb.AutoSchedule && !source.Status.Terminal() {
		done, werr := system.WaitForSource(ctx, source.UUID)
		if werr != nil {
			return werr
		}
		if !done {
			fmt.Fprintf(os.Stderr, "Source %s is still processing\n", source.UUID)
			return nil
		}
		source, err = system.DocSourceStore().GetDocSource(ctx, source.UUID)
		if err != nil {
			return err
		}
	}

	fmt.Printf("Source %s: %s\n", source.UUID, source.Status)
	return nil
}

func queryCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one query argument")
	}
	queryText := c.Args().First()

	overrides, err := parseOptionOverrides(c.StringSlice("option"))
	if err != nil {
		return err
	}

	system, cleanup, err := buildSystem(c)
	if err != nil {
		return err
	}
	defer cleanup()

	org := &core.Org{ID: c.String("org")}
	kb := &core.KnowledgeBase{ID: c.String("kb"), OrgID: org.ID, AutoSchedule: false}
	user := &core.User{ID: "cli"}
	query := &core.ChatQueryItem{
		ChatID:       core.NewUUID(),
		QueryID:      core.NewUUID(),
		QueryContent: queryText,
		FlowOptions:  overrides,
	}

	result, err := system.RunFlow(context.Background(), c.String("flow"), org, kb, user, query)
	if err != nil {
		return err
	}

	if len(result.Sections) == 0 {
		fmt.Println(result.Content)
		return nil
	}
	for i, section := range result.Sections {
		if i > 0 {
			fmt.Println()
		}
		fmt.Printf("## %s\n\n%s\n", section.Title, section.Content)
	}
	return nil
}

func flowsCommand(c *cli.Context) error {
	system, cleanup, err := buildSystem(c)
	if err != nil {
		return err
	}
	defer cleanup()

	showAll := c.Bool("all")
	for _, f := range system.Registry().Flows() {
		fmt.Printf("%s (%s)\n    %s\n", f.Name(), f.ArticleType(), f.Description())

		items, err := system.Registry().OptionsFor(f.Name())
		if err != nil {
			return err
		}
		for _, item := range items {
			if !item.Explicit && !showAll {
				continue
			}
			defaultNote := ""
			if item.Default != "" {
				defaultNote = fmt.Sprintf(" (default %s)", item.Default)
			}
			fmt.Printf("    -o %s=<%s>%s  %s\n", item.Name, item.Type, defaultNote, item.Description)
		}
		fmt.Println()
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	batchSize := c.Int("batch-size")
	if batchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	reportInterval := c.Int("report-interval")
	if reportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	maxRetries := c.Int("max-retries")
	if maxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	settings, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if model := c.String("embedding-model"); model != "" {
		settings.EmbeddingModel = model
	}
	if dir := c.String("data-dir"); dir != "" {
		settings.DataDir = dir
	}

	system, err := quarry.NewSystem(settings)
	if err != nil {
		return fmt.Errorf("failed to open system: %w", err)
	}
	defer system.Close()

	kbID := c.String("kb")
	fmt.Fprintf(os.Stderr, "Knowledge base: %s\n", kbID)
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n\n", settings.EmbeddingModel)

	reembedder := reembed.NewReembedder(system.DocumentStore(), system.Embedder(), &reembed.Config{
		BatchSize:      batchSize,
		ReportInterval: reportInterval,
		MaxRetries:     maxRetries,
		RetryDelay:     c.Duration("retry-delay"),
	}, os.Stderr)

	if err := reembedder.Run(context.Background(), kbID); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func schedulerCommand(c *cli.Context) error {
	system, cleanup, err := buildSystem(c)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workers := c.Int("workers")
	if workers <= 0 {
		workers = system.Settings().SchedulerWorkers
	}
	started, err := system.Scheduler().Start(ctx, workers)
	if err != nil {
		return err
	}
	if !started {
		return fmt.Errorf("scheduler lease is held by another instance")
	}

	fmt.Fprintln(os.Stderr, "Scheduler running, press Ctrl-C to stop")
	<-ctx.Done()

	return system.Scheduler().Stop(context.Background())
}

// urlSourceCreate builds the intake payload for a URL ingestion, carrying
// the chunk-size override as an ingest parameter when set.
func urlSourceCreate(url string, chunkSize int) *core.DocSourceCreate {
	create := &core.DocSourceCreate{
		SourceType:  core.DocSourceURL,
		URI:         url,
		DisplayName: url,
	}
	if chunkSize > 0 {
		create.Ingest.ExtraParameters = map[string]string{
			"chunk_size": strconv.Itoa(chunkSize),
		}
	}
	return create
}

// parseOptionOverrides splits repeated name=value pairs into a map.
func parseOptionOverrides(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	overrides := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid option %q: expected name=value", pair)
		}
		overrides[name] = value
	}
	return overrides, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", s)
	}
}
