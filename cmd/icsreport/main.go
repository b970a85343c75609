package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"

	"icsreport/internal/config"
	"icsreport/internal/export"
	"icsreport/internal/ics"
	appLog "icsreport/internal/log"
	"icsreport/internal/model"
	"icsreport/internal/report"
	"icsreport/internal/web"
)

const defaultConfigPath = "/etc/icsreport/config.yaml"

func main() {
	// Load .env first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	if lvl := os.Getenv("ICSREPORT_LOG_LEVEL"); lvl != "" {
		appLog.SetLevel(appLog.ParseLevel(lvl))
	}

	app := &cli.App{
		Name:  "icsreport",
		Usage: "Extract the timed events a person accepted from a calendar export.",
		Commands: []*cli.Command{
			extractCommand(),
			serveCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		appLog.Error("icsreport failed", err)
		os.Exit(1)
	}
}

func extractCommand() *cli.Command {
	return &cli.Command{
		Name:  "extract",
		Usage: "Run one extraction over a .ics file or URL and print or save the report.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Required: true, Usage: "Path or http(s) URL of the .ics document."},
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Target email; guessed from the input filename if omitted.", EnvVars: []string{"ICSREPORT_EMAIL"}},
			&cli.StringFlag{Name: "start", Usage: "Window start date (YYYY-MM-DD). Defaults to the current week."},
			&cli.StringFlag{Name: "end", Usage: "Window end date (YYYY-MM-DD). Defaults to the current week."},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "table", Usage: "Output format: table, csv or xlsx."},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file. Defaults to stdout; required for xlsx."},
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Optional config file supplying defaults (email, week start, timezone)."},
		},
		Action: runExtract,
	}
}

func runExtract(c *cli.Context) error {
	cfg := config.DefaultConfig()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	}

	input := c.String("input")
	body, err := readDocument(c.Context, cfg, input)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", input, err)
	}

	email := strings.TrimSpace(c.String("email"))
	if email == "" {
		email = cfg.Email
	}
	if email == "" {
		email = report.GuessEmailFromFilename(filepath.Base(input))
	}
	if email == "" {
		return errors.New("no email given and none found in the input filename (use --email)")
	}

	window, err := resolveWindow(cfg, c.String("start"), c.String("end"))
	if err != nil {
		return err
	}

	rows, err := report.Extract(body, email, window)
	if err != nil {
		return err
	}

	return writeOutput(c.String("format"), c.String("output"), rows)
}

// readDocument loads the input from disk, or over HTTP (with the cache the
// serve mode uses) when it looks like a URL.
func readDocument(ctx context.Context, cfg *config.Config, input string) ([]byte, error) {
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		fetcher := ics.NewFetcher(cfg.CacheDir)
		res, err := fetcher.Fetch(ctx, ics.Source{ID: input, URL: input})
		if err != nil {
			return nil, err
		}
		return res.Body, nil
	}
	return os.ReadFile(input)
}

func resolveWindow(cfg *config.Config, startStr, endStr string) (report.Window, error) {
	if startStr == "" && endStr == "" {
		loc := time.Local
		if cfg.Timezone != "" {
			if l, err := time.LoadLocation(cfg.Timezone); err == nil {
				loc = l
			}
		}
		return report.WeekContaining(time.Now().In(loc), cfg.WeekStart), nil
	}
	if startStr == "" {
		startStr = endStr
	}
	if endStr == "" {
		endStr = startStr
	}

	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return report.Window{}, fmt.Errorf("invalid --start %q, want YYYY-MM-DD", startStr)
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		return report.Window{}, fmt.Errorf("invalid --end %q, want YYYY-MM-DD", endStr)
	}
	return report.Window{Start: start, End: end}, nil
}

func writeOutput(format, output string, rows []model.ReportRow) error {
	var out *os.File
	if output == "" || output == "-" {
		if format == "xlsx" {
			return errors.New("xlsx output is binary; give a file with --output")
		}
		out = os.Stdout
	} else {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	switch format {
	case "table":
		return writeTable(out, rows)
	case "csv":
		return export.WriteCSV(out, rows)
	case "xlsx":
		return export.WriteXLSX(out, rows)
	default:
		return fmt.Errorf("unknown format %q, want table, csv or xlsx", format)
	}
}

func writeTable(out *os.File, rows []model.ReportRow) error {
	if len(rows) == 0 {
		fmt.Fprintln(out, "No accepted events found in the selected range.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EVENT\tDATE\tTIME\tHOURS\tACCEPTED ATTENDEES")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\n", r.Event, r.Date, r.Time, r.DurationHours, r.AcceptedAttendees)
	}
	return tw.Flush()
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the upload UI and report API, refreshing the configured source on a schedule.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: defaultConfigPath, Usage: "Path to config file.", EnvVars: []string{"ICSREPORT_CONFIG"}},
			&cli.StringFlag{Name: "listen", Usage: "HTTP listen address (overrides config)."},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if listen := c.String("listen"); listen != "" {
		cfg.Listen = listen
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))

	appLog.Info("effective config",
		"listen", cfg.Listen,
		"week_start", cfg.WeekStart,
		"refresh", cfg.RefreshCron,
		"source_id", cfg.Source.ID,
		"email_set", cfg.Email != "",
	)

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	srv := web.NewServer(cfg)

	// Periodic refresh of the configured source keeps GET /api/report warm.
	if cfg.Source.URL != "" && cfg.Email != "" {
		if err := srv.Refresh(ctx); err != nil {
			appLog.Warn("initial source refresh failed", "err", err)
		}
		cr := cron.New()
		if _, err := cr.AddFunc(cfg.RefreshCron, func() {
			if err := srv.Refresh(ctx); err != nil {
				appLog.Error("scheduled source refresh failed", err, "id", cfg.Source.ID)
			}
		}); err != nil {
			return fmt.Errorf("invalid refresh schedule %q: %w", cfg.RefreshCron, err)
		}
		cr.Start()
		defer cr.Stop()
	}

	httpSrv := &http.Server{
		Addr:    cfg.Listen,
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return httpSrv.Shutdown(shutdownCtx)
}
