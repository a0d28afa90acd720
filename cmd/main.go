package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"caltab/internal/backend"
	caldavconn "caltab/internal/caldav"
	"caltab/internal/component"
	"caltab/internal/config"
	"caltab/internal/google"
	"caltab/internal/palette"
	"caltab/internal/table"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "caltab",
		Usage: "Aggregate calendar, task and memo sources into one table.",
		Commands: []*cli.Command{
			authCommand(),
			showCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account to get an API token.",
		Action: func(c *cli.Context) error {
			logger := setupLogger("info")
			logger.Info("Starting Google authentication flow.")

			config, err := google.GetOAuthConfigForAuthFlow(os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"))
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := google.TokenFromWeb(config, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			fmt.Print("Enter a name for this account (e.g., 'personal', 'work'): ")
			accountName, _ := reader.ReadString('\n')
			accountName = strings.TrimSpace(accountName)
			tokenFile := "token-" + accountName + ".json"

			if err := google.SaveToken(tokenFile, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.", "file", tokenFile)
			return nil
		},
	}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "Subscribe to the configured sources and print the table for a time window.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "caltab.yaml", Usage: "Path to the settings file."},
			&cli.IntFlag{Name: "days", Value: 7, Usage: "Window length in days, starting today."},
		},
		Action: func(c *cli.Context) error {
			logLevel := os.Getenv("LOG_LEVEL")
			if logLevel == "" {
				logLevel = "info"
			}
			logger := setupLogger(logLevel)

			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load settings: %w", err)
			}
			if len(cfg.Sources) == 0 {
				return fmt.Errorf("no sources configured in %s", c.String("config"))
			}

			conns, err := openConnections(c, logger, cfg)
			if err != nil {
				return err
			}

			broker := backend.NewBroker(logger, conns...)
			model := table.NewModel(logger, cfg, palette.NewRegistry(), broker)
			model.SetAlertFunc(func(source, msg string) {
				logger.Error("backend alert", "source", source, "message", msg)
			})

			start := time.Now().In(model.DisplayZone())
			end := start.AddDate(0, 0, c.Int("days"))
			if err := model.SetTimeRange(start, end); err != nil {
				// Partial subscription failures still leave the listed
				// sources usable.
				logger.Warn("some sources failed to subscribe", "error", err)
			}

			printTable(model)
			return nil
		},
	}
}

// openConnections dials every configured source. A source that fails to
// open aborts the command; showing a partial aggregate silently would be
// worse than failing loudly.
func openConnections(c *cli.Context, logger *slog.Logger, cfg *config.Config) ([]backend.Connection, error) {
	var conns []backend.Connection
	for _, src := range cfg.Sources {
		info := backend.SourceInfo{ID: src.ID, Name: src.Name, Color: src.Color}
		switch src.Kind {
		case "caldav":
			conn, err := caldavconn.New(logger, info,
				src.URL,
				os.Getenv("CALDAV_USERNAME"),
				os.Getenv("CALDAV_PASSWORD"),
				src.Calendar)
			if err != nil {
				return nil, fmt.Errorf("failed to open caldav source %s: %w", src.ID, err)
			}
			conns = append(conns, conn)
		case "google":
			conn, err := google.New(c.Context, logger, info,
				os.Getenv("GOOGLE_CLIENT_ID"),
				os.Getenv("GOOGLE_CLIENT_SECRET"),
				src.Account,
				src.Calendar)
			if err != nil {
				return nil, fmt.Errorf("failed to open google source %s: %w", src.ID, err)
			}
			conns = append(conns, conn)
		default:
			return nil, fmt.Errorf("unknown source kind %q for source %s", src.Kind, src.ID)
		}
	}
	return conns, nil
}

func printTable(model *table.Model) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tSUMMARY\tWHEN\tSTATUS\tSOURCE")
	for i := 0; i < model.Len(); i++ {
		rec := model.Record(i)

		when := table.ColStart
		status := ""
		switch rec.Kind() {
		case component.KindTask:
			when = table.ColDue
			status = model.DisplayString(table.ColStatus, model.ValueAt(i, table.ColStatus))
		case component.KindMemo:
			status = model.DisplayString(table.ColStatus, model.ValueAt(i, table.ColStatus))
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			rec.Kind().String(),
			model.DisplayString(table.ColSummary, model.ValueAt(i, table.ColSummary)),
			model.DisplayString(when, model.ValueAt(i, when)),
			status,
			model.ValueAt(i, table.ColSourceName))
	}
	w.Flush()
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
