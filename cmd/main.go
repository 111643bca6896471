package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"schoolcal/internal/config"
	"schoolcal/internal/extractor"
	"schoolcal/internal/google"
	"schoolcal/internal/icloud"
	"schoolcal/internal/models"
	"schoolcal/internal/syncer"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "schoolcal",
		Usage: "Turn school notices into calendar events without creating duplicates.",
		Commands: []*cli.Command{
			authCommand(),
			calendarsCommand(),
			parseCommand(),
			checkCommand(),
			createCommand(),
			syncCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

var (
	calendarFlag = &cli.StringFlag{Name: "calendar", Usage: "Target calendar (Google calendar ID or CalDAV calendar name). Overrides CALENDAR_ID / CALDAV_CALENDAR."}
	childFlag    = &cli.StringFlag{Name: "child", Usage: "Child the notice is about; prefixed to event titles."}
	textFlag     = &cli.StringFlag{Name: "text", Aliases: []string{"f"}, Usage: "File with the notice text, or - for stdin."}
	rawFlag      = &cli.StringFlag{Name: "candidates", Usage: "Use raw candidates from this JSON file instead of calling the extractor."}
	inFlag       = &cli.StringFlag{Name: "in", Usage: "Normalized events JSON (as written by parse), or - for stdin.", Required: true}
	outFlag      = &cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Write JSON output to this file instead of stdout."}
	forceFlag    = &cli.BoolFlag{Name: "force", Usage: "Create every event even when it looks like a duplicate."}
)

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account to get an API token.",
		Action: func(c *cli.Context) error {
			logger := setupLogger("info")
			logger.Info("Starting Google authentication flow.")

			oauthConfig, err := google.GetOAuthConfigForAuthFlow(os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"))
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := google.TokenFromWeb(c.Context, oauthConfig, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			fmt.Print("Enter a name for this account (e.g., 'personal', 'family'): ")
			accountName, _ := reader.ReadString('\n')
			accountName = strings.TrimSpace(accountName)
			if accountName == "" {
				accountName = "default"
			}
			tokenFile := google.TokenFile(accountName)

			if err := google.SaveToken(tokenFile, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.", "file", tokenFile)
			return nil
		},
	}
}

func calendarsCommand() *cli.Command {
	return &cli.Command{
		Name:  "calendars",
		Usage: "List the calendars events can be written to.",
		Flags: []cli.Flag{outFlag},
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			backend, err := newBackend(c.Context, cfg, logger)
			if err != nil {
				return err
			}
			calendars, err := backend.ListCalendars(c.Context)
			if err != nil {
				return err
			}
			return writeJSON(c.String("out"), calendars)
		},
	}
}

func parseCommand() *cli.Command {
	return &cli.Command{
		Name:  "parse",
		Usage: "Extract and normalize events from a notice without touching any calendar.",
		Flags: []cli.Flag{textFlag, childFlag, rawFlag, outFlag},
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			text, ex, err := extractionInputs(c, cfg, logger)
			if err != nil {
				return err
			}
			s := syncer.NewSyncer(logger, nil, "", syncer.Options{Location: cfg.Location})
			candidates, rejected, err := s.Extract(c.Context, ex, text, c.String("child"))
			if err != nil {
				return err
			}
			for _, r := range rejected {
				logger.Warn("Candidate rejected", "title", r.Candidate.Title, "reason", r.Reason)
			}
			return writeJSON(c.String("out"), candidates)
		},
	}
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Flag which normalized events already exist on the calendar.",
		Flags: []cli.Flag{inFlag, calendarFlag, outFlag},
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			candidates, err := readEvents(c.String("in"))
			if err != nil {
				return err
			}
			s, err := newSyncer(c, cfg, logger, false)
			if err != nil {
				return err
			}
			classified, dups, err := s.CheckDuplicates(c.Context, candidates)
			if err != nil {
				return err
			}
			logger.Info("Duplicate check finished.", "events", len(classified), "duplicates", dups)
			return writeJSON(c.String("out"), struct {
				Events         []syncer.Classification `json:"events"`
				DuplicateCount int                     `json:"duplicateCount"`
			}{classified, dups})
		},
	}
}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create reviewed events, skipping duplicates unless forceCreate is set.",
		Flags: []cli.Flag{inFlag, calendarFlag, forceFlag, outFlag,
			&cli.BoolFlag{Name: "dry-run", Usage: "Log what would be created without making changes."},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			candidates, err := readEvents(c.String("in"))
			if err != nil {
				return err
			}
			if c.Bool("force") {
				for i := range candidates {
					candidates[i].ForceCreate = true
				}
			}
			s, err := newSyncer(c, cfg, logger, c.Bool("dry-run"))
			if err != nil {
				return err
			}
			report, err := s.Create(c.Context, candidates)
			if err != nil {
				return err
			}
			return writeJSON(c.String("out"), report)
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Extract events from a notice and add the new ones to the calendar.",
		Flags: []cli.Flag{textFlag, childFlag, rawFlag, calendarFlag, forceFlag, outFlag,
			&cli.BoolFlag{Name: "dry-run", Usage: "Log what would be synced without making changes."},
			&cli.IntFlag{Name: "watch", Value: 300, Usage: "Re-read the input and sync every N seconds."},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if c.Bool("dry-run") {
				logger.Info("Performing a dry run. No changes will be made.")
			}
			s, err := newSyncer(c, cfg, logger, c.Bool("dry-run"))
			if err != nil {
				return err
			}

			cycle := func() (syncer.Report, error) {
				text, ex, err := extractionInputs(c, cfg, logger)
				if err != nil {
					return syncer.Report{}, err
				}
				return runSync(c.Context, s, ex, text, c.String("child"), c.Bool("force"))
			}

			if c.IsSet("watch") {
				interval, err := watchInterval(c.Int("watch"))
				if err != nil {
					return err
				}
				logger.Info("Starting watcher.", "interval", interval)
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					if _, err := cycle(); err != nil {
						logger.Error("Sync cycle failed", "error", err)
					}
					select {
					case <-c.Context.Done():
						return c.Context.Err()
					case <-ticker.C:
					}
				}
			}

			report, err := cycle()
			if err != nil {
				return fmt.Errorf("single sync cycle failed: %w", err)
			}
			return writeJSON(c.String("out"), report)
		},
	}
}

func watchInterval(seconds int) (time.Duration, error) {
	if seconds <= 0 {
		return 0, fmt.Errorf("--watch must be a positive number of seconds, got %d", seconds)
	}
	return time.Duration(seconds) * time.Second, nil
}

// runSync is one extract-and-create cycle. With force every candidate is
// created, duplicates included.
func runSync(ctx context.Context, s *syncer.Syncer, ex syncer.Extractor, text, child string, force bool) (syncer.Report, error) {
	if !force {
		return s.Run(ctx, ex, text, child)
	}
	candidates, rejected, err := s.Extract(ctx, ex, text, child)
	if err != nil {
		return syncer.Report{}, fmt.Errorf("failed to extract events: %w", err)
	}
	for i := range candidates {
		candidates[i].ForceCreate = true
	}
	report, err := s.Create(ctx, candidates)
	if err != nil {
		return syncer.Report{}, err
	}
	report.Rejected = rejected
	return report, nil
}

func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, setupLogger(cfg.LogLevel), nil
}

// backend is what the commands need from a calendar provider.
type backend interface {
	syncer.Calendar
	ListCalendars(ctx context.Context) ([]models.Calendar, error)
}

func newBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (backend, error) {
	switch cfg.Provider {
	case config.ProviderCalDAV:
		client, err := icloud.NewClient(logger, cfg.CalDAVEndpoint, cfg.CalDAVUsername, cfg.CalDAVPassword, cfg.Location)
		if err != nil {
			return nil, fmt.Errorf("failed to create caldav client: %w", err)
		}
		return client, nil
	default:
		account, err := resolveAccount(cfg.GoogleAccount, ".")
		if err != nil {
			return nil, err
		}
		client, err := google.NewClient(ctx, logger, cfg.GoogleClientID, cfg.GoogleClientSecret, account, cfg.Location)
		if err != nil {
			return nil, fmt.Errorf("failed to create google client for account %s: %w", account, err)
		}
		logger.Info("Initialized Google client.", "account", account)
		return client, nil
	}
}

// resolveAccount picks the configured account, or the first one with a token file in dir.
func resolveAccount(configured, dir string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	accounts, err := google.GetTokenAccounts(dir)
	if err != nil || len(accounts) == 0 {
		return "", fmt.Errorf("no google accounts found. Run the 'auth' command first")
	}
	return accounts[0], nil
}

func newSyncer(c *cli.Context, cfg config.Config, logger *slog.Logger, dryRun bool) (*syncer.Syncer, error) {
	b, err := newBackend(c.Context, cfg, logger)
	if err != nil {
		return nil, err
	}

	calendarID := cfg.CalendarID
	if cfg.Provider == config.ProviderCalDAV {
		calendarID = cfg.CalDAVCalendar
	}
	if c.IsSet("calendar") {
		calendarID = c.String("calendar")
	}
	if dav, ok := b.(*icloud.CalDAVClient); ok {
		if calendarID == "" {
			return nil, fmt.Errorf("CALDAV_CALENDAR or --calendar is required for the caldav provider")
		}
		if calendarID, err = dav.FindCalendar(c.Context, calendarID); err != nil {
			return nil, fmt.Errorf("could not find calendar: %w", err)
		}
	}

	return syncer.NewSyncer(logger, b, calendarID, syncer.Options{
		Concurrency: cfg.Concurrency,
		DryRun:      dryRun,
		Location:    cfg.Location,
		Lookahead:   cfg.Lookahead(),
	}), nil
}

func extractionInputs(c *cli.Context, cfg config.Config, logger *slog.Logger) (string, syncer.Extractor, error) {
	if path := c.String("candidates"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return "", nil, fmt.Errorf("failed to open candidates: %w", err)
		}
		defer f.Close()
		ex, err := extractor.LoadStatic(f)
		if err != nil {
			return "", nil, fmt.Errorf("failed to load candidates: %w", err)
		}
		return "", ex, nil
	}

	if !c.IsSet("text") {
		return "", nil, fmt.Errorf("--text or --candidates is required")
	}
	text, err := readInput(c.String("text"))
	if err != nil {
		return "", nil, err
	}
	if cfg.OpenAIAPIKey == "" {
		return "", nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	return string(text), extractor.NewOpenAI(logger, cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.ExtractTimeout), nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return b, nil
}

func readEvents(path string) ([]models.EventRecord, error) {
	b, err := readInput(path)
	if err != nil {
		return nil, err
	}
	var events []models.EventRecord
	if err := json.Unmarshal(b, &events); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}
	for i, ev := range events {
		if err := ev.Validate(); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
	}
	return events, nil
}

func writeJSON(path string, v any) error {
	out := io.Writer(os.Stdout)
	if path != "" && path != "-" {
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to open output: %w", err)
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
