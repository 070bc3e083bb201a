// main.go - Admin control tool for trafficlens
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trafficlens/internal"
	"trafficlens/internal/analytics"
	"trafficlens/internal/config"
	"trafficlens/internal/events"
	"trafficlens/internal/export"
	"trafficlens/internal/seeder"
	"trafficlens/internal/timeframe"
)

const (
	defaultShutdownTimeout = 30 * time.Second
)

// Command defines the interface for all command implementations
type Command interface {
	// Name returns the command name
	Name() string
	// Description returns the command description
	Description() string
	// Execute runs the command with the given app and args
	Execute(ctx context.Context, app *internal.Application, args []string) error
}

// The set of available commands
var commands = []Command{
	&MigrateCommand{},
	&SeedCommand{},
	&ReportCommand{},
	&ExportCommand{},
	&StatusCommand{},
	&HelpCommand{},
}

func main() {
	flag.Parse()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, initiating cleanup...", sig)
		cancel()
	}()

	cmdName, args := parseArgs()

	cmd := findCommand(cmdName)
	if cmd == nil {
		showUsageAndExit()
	}

	if _, ok := cmd.(*HelpCommand); ok {
		_ = cmd.Execute(ctx, nil, args)
		return
	}

	app, err := internal.NewApp()
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}

	err = cmd.Execute(ctx, app, args)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer shutdownCancel()
	if cerr := app.Shutdown(shutdownCtx); cerr != nil {
		log.Printf("Warning: Cleanup error: %v", cerr)
	}

	if err != nil {
		log.Fatalf("Command failed: %v", err)
	}
	log.Printf("Command %s completed successfully", cmd.Name())
}

// MigrateCommand applies the schema of the configured store.
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Applies the event store schema" }

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	switch store := app.Store.(type) {
	case *events.PostgresStore:
		log.Println("Applying postgres schema...")
		return store.EnsureSchema(ctx)
	case *events.GormStore:
		log.Println("Running database migrations...")
		if err := app.DBManager.MigrateDatabase(); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		return nil
	default:
		log.Println("In-memory store has no schema, nothing to migrate")
		return nil
	}
}

// SeedCommand populates the store with demo traffic.
type SeedCommand struct{}

func (c *SeedCommand) Name() string        { return "seed" }
func (c *SeedCommand) Description() string { return "Seeds the store with demo page views" }

func (c *SeedCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	visitors := fs.Int("visitors", 100, "number of visitors to generate")
	days := fs.Int("days", 7, "spread the views over this many days before now")
	seed := fs.Uint64("seed", 0, "random seed (0 picks one)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var opts []seeder.Option
	if *seed != 0 {
		opts = append(opts, seeder.WithSeed(*seed))
	}
	se := seeder.NewSeeder(app.Store, app.Logger, opts...)
	se.VisitorCount = *visitors
	se.Days = *days

	summary, err := se.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Seeded %d visitors and %d page views between %s and %s\n",
		summary.Visitors, summary.PageViews,
		summary.Start.Format(time.RFC3339), summary.End.Format(time.RFC3339))
	return nil
}

// rangeFlags registers the shared -start, -end and -interval flags.
func rangeFlags(fs *flag.FlagSet) (start, end, interval *string) {
	start = fs.String("start", "", "range start (YYYY-MM-DD or RFC3339)")
	end = fs.String("end", "", "range end (YYYY-MM-DD or RFC3339)")
	interval = fs.String("interval", "day", "series interval: day, week or month")
	return start, end, interval
}

func parseRange(app *internal.Application, start, end string) (timeframe.Range, error) {
	parser := timeframe.NewRangeParser(app.Config.DefaultRangeDays)
	return parser.Parse(timeframe.RangeParserParams{StartDate: start, EndDate: end})
}

// ReportCommand prints the full analytics report as JSON.
type ReportCommand struct{}

func (c *ReportCommand) Name() string        { return "report" }
func (c *ReportCommand) Description() string { return "Prints every metric for a date range as JSON" }

func (c *ReportCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	start, end, interval := rangeFlags(fs)
	limit := fs.Int("limit", app.Config.GetPopularPagesLimit(), "number of popular pages")
	if err := fs.Parse(args); err != nil {
		return err
	}

	r, err := parseRange(app, *start, *end)
	if err != nil {
		return err
	}

	seriesInterval := timeframe.ParseInterval(*interval)
	if err := analytics.CheckSeriesSize(r, seriesInterval); err != nil {
		return err
	}

	report, err := app.Engine.Report(ctx, r, seriesInterval, *limit)
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// ExportCommand writes one export report to a file or stdout.
type ExportCommand struct{}

func (c *ExportCommand) Name() string        { return "export" }
func (c *ExportCommand) Description() string { return "Exports a report as CSV (or full-report as zip)" }

func (c *ExportCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	start, end, interval := rangeFlags(fs)
	out := fs.String("out", "", "output file, defaults to the report filename; - for stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: %s [flags] <report>", c.Name())
	}

	report, err := export.ParseReport(fs.Arg(0))
	if err != nil {
		return err
	}

	r, err := parseRange(app, *start, *end)
	if err != nil {
		return err
	}

	seriesInterval := timeframe.ParseInterval(*interval)
	if err := analytics.CheckSeriesSize(r, seriesInterval); err != nil {
		return err
	}

	full, cmp, err := app.Engine.ReportWithComparison(ctx, r, seriesInterval, app.Config.GetPopularPagesLimit())
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}
	ds := export.Dataset{
		Overview:       cmp.Metrics,
		Series:         full.Series,
		Geography:      full.Geography,
		TrafficSources: full.TrafficSources,
		Pages:          full.PopularPages,
		Devices:        full.Devices,
	}

	write := func(w io.Writer) error { return export.Write(w, report, r, ds) }
	if *out == "-" {
		return write(os.Stdout)
	}

	path := *out
	if path == "" {
		path = export.Filename(report, r)
	}
	log.Printf("Writing %s", path)
	return writeFile(path, write)
}

// writeFile creates path and fills it with write. The file is removed again when write
// or the final close fails, so a failed export leaves nothing behind.
func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	return write(f)
}

// StatusCommand implements a command to check the system status
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Description() string { return "Shows the current system status" }

func (c *StatusCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	log.Println("System Status:")
	log.Printf("- Environment: %s", app.Config.Environment)
	log.Printf("- Store: %s", app.Config.StoreBackend)
	log.Printf("- GeoIP: %v", app.Geo.Enabled())

	if pinger, ok := app.Store.(interface{ Ping(context.Context) error }); ok {
		if err := pinger.Ping(ctx); err != nil {
			return fmt.Errorf("store unreachable: %w", err)
		}
		log.Println("- Store connection: OK")
	}

	if app.Config.StoreBackend == config.SQLiteStore {
		sqlDB, err := app.DBManager.GetConnection().DB()
		if err != nil {
			return fmt.Errorf("failed to get SQL DB: %w", err)
		}
		stats := sqlDB.Stats()
		log.Printf("- Max Open Connections: %d", stats.MaxOpenConnections)
		log.Printf("- Open Connections: %d", stats.OpenConnections)
		log.Printf("- In Use: %d", stats.InUse)
		log.Printf("- Idle: %d", stats.Idle)
	}

	return nil
}

// HelpCommand implements a command to show usage information
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Shows usage information" }

func (c *HelpCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	printUsage()
	return nil
}

func parseArgs() (string, []string) {
	args := flag.Args()
	if len(args) == 0 {
		return "help", []string{}
	}
	return args[0], args[1:]
}

func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func printUsage() {
	fmt.Println("Usage: tlctl [command] [args...]")
	fmt.Println("Available commands:")

	for _, cmd := range commands {
		fmt.Printf("  %s: %s\n", cmd.Name(), cmd.Description())
	}
}

func showUsageAndExit() {
	printUsage()
	os.Exit(1)
}
