// Command-line entry point for the load parser.
//
// Subcommands:
//
//	parse   - parse load text from a file or stdin and print JSON
//	serve   - run the REST API server
//	ingest  - consume raw load texts from NATS
//	initdb  - create the PostgreSQL and ClickHouse schemas
//
// Database flags fall back to POSTGRES_* / CLICKHOUSE_* environment
// variables when unset.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"load_parser/internal/api"
	"load_parser/internal/extractor"
	"load_parser/internal/ingest"
	"load_parser/internal/storage"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "load_parser - commands:")
	fmt.Fprintln(w, "  parse    - parse load text and output JSON")
	fmt.Fprintln(w, "  serve    - run the REST API server")
	fmt.Fprintln(w, "  ingest   - consume raw load texts from NATS")
	fmt.Fprintln(w, "  initdb   - create database schemas")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  load_parser parse [-input load.txt] [-output out.json] [-pretty] [-dispatcher N] [-history parses.db] [-stats]")
	fmt.Fprintln(w, "  load_parser serve [-port 8080] [-no-db] [-no-clickhouse] [pg/ch flags]")
	fmt.Fprintln(w, "  load_parser ingest [-nats-url URL] [-subject loads.raw] [-queue load-parser] [-no-db] [-no-clickhouse] [pg/ch flags]")
	fmt.Fprintln(w, "  load_parser initdb [pg/ch flags]")
	fmt.Fprintln(w, "")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	cmd := strings.ToLower(os.Args[1])
	switch cmd {
	case "parse":
		runParse(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	case "ingest":
		runIngest(os.Args[2:])
	case "initdb":
		runInitDB(os.Args[2:])
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
}

func runParse(args []string) {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	inPath := fs.String("input", "", "Input text file (default: stdin)")
	outPath := fs.String("output", "", "Output JSON file (default: stdout)")
	pretty := fs.Bool("pretty", false, "Pretty-print JSON output")
	dispatcher := fs.Int64("dispatcher", 0, "Dispatcher id to attach to the parsed load")
	history := fs.String("history", "", "SQLite history database to record the parse in")
	showStats := fs.Bool("stats", false, "Print history statistics instead of parsing (requires -history)")
	_ = fs.Parse(args)

	if *showStats {
		if *history == "" {
			fmt.Fprintln(os.Stderr, "-stats requires -history")
			os.Exit(2)
		}
		printHistoryStats(*history)
		return
	}

	var r io.Reader = os.Stdin
	if *inPath != "" {
		f, err := os.Open(*inPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open input: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		r = f
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Input read error: %v\n", err)
		os.Exit(1)
	}

	var opts []extractor.Option
	if *dispatcher != 0 {
		opts = append(opts, extractor.WithDispatcher(*dispatcher))
	}

	parsed, err := extractor.Parse(string(raw), opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Parse error: %v\n", err)
		os.Exit(1)
	}

	if *history != "" {
		db, err := storage.OpenHistory(*history)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open history: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()
		_, err = db.Insert(parsed.Trip.TripID, len(parsed.Legs), parsed.MissingFields(), string(raw), parsed)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to record history: %v\n", err)
			os.Exit(1)
		}
	}

	var enc []byte
	if *pretty {
		enc, err = json.MarshalIndent(parsed, "", "  ")
	} else {
		enc, err = json.Marshal(parsed)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "JSON encode error: %v\n", err)
		os.Exit(1)
	}

	var wout io.Writer = os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create output: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		wout = f
	}
	_, _ = wout.Write(enc)
	if wout == os.Stdout {
		_, _ = wout.Write([]byte("\n"))
	}
}

func printHistoryStats(path string) {
	db, err := storage.OpenHistory(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open history: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	stats, err := db.GetStats()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read stats: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Total parses:   %d\n", stats.TotalParses)
	fmt.Printf("With missing:   %d\n", stats.WithMissing)
	if len(stats.TopMissingFields) > 0 {
		fmt.Println("Missing fields:")
		for field, count := range stats.TopMissingFields {
			fmt.Printf("  %-24s %d\n", field, count)
		}
	}
}

// dbFlags registers the shared database flags on a flag set.
type dbFlags struct {
	noDB         *bool
	noClickHouse *bool

	pgHost     *string
	pgPort     *int
	pgDB       *string
	pgUser     *string
	pgPassword *string

	chHost     *string
	chPort     *int
	chDB       *string
	chUser     *string
	chPassword *string
}

func registerDBFlags(fs *flag.FlagSet) *dbFlags {
	d := storage.DefaultConfig()
	return &dbFlags{
		noDB:         fs.Bool("no-db", false, "Disable PostgreSQL (parse-only mode)"),
		noClickHouse: fs.Bool("no-clickhouse", false, "Disable ClickHouse parse auditing"),

		pgHost:     fs.String("pg-host", envOrDefault("POSTGRES_HOST", d.Postgres.Host), "PostgreSQL host"),
		pgPort:     fs.Int("pg-port", envOrDefaultInt("POSTGRES_PORT", d.Postgres.Port), "PostgreSQL port"),
		pgDB:       fs.String("pg-database", envOrDefault("POSTGRES_DATABASE", d.Postgres.Database), "PostgreSQL database"),
		pgUser:     fs.String("pg-user", envOrDefault("POSTGRES_USER", d.Postgres.User), "PostgreSQL user"),
		pgPassword: fs.String("pg-password", envOrDefault("POSTGRES_PASSWORD", d.Postgres.Password), "PostgreSQL password"),

		chHost:     fs.String("ch-host", envOrDefault("CLICKHOUSE_HOST", d.ClickHouse.Host), "ClickHouse host"),
		chPort:     fs.Int("ch-port", envOrDefaultInt("CLICKHOUSE_PORT", d.ClickHouse.Port), "ClickHouse port"),
		chDB:       fs.String("ch-database", envOrDefault("CLICKHOUSE_DATABASE", d.ClickHouse.Database), "ClickHouse database"),
		chUser:     fs.String("ch-user", envOrDefault("CLICKHOUSE_USER", d.ClickHouse.User), "ClickHouse user"),
		chPassword: fs.String("ch-password", envOrDefault("CLICKHOUSE_PASSWORD", d.ClickHouse.Password), "ClickHouse password"),
	}
}

func (d *dbFlags) postgresConfig() storage.PostgresConfig {
	return storage.PostgresConfig{
		Host:     *d.pgHost,
		Port:     *d.pgPort,
		Database: *d.pgDB,
		User:     *d.pgUser,
		Password: *d.pgPassword,
	}
}

func (d *dbFlags) clickhouseConfig() storage.ClickHouseConfig {
	return storage.ClickHouseConfig{
		Host:     *d.chHost,
		Port:     *d.chPort,
		Database: *d.chDB,
		User:     *d.chUser,
		Password: *d.chPassword,
	}
}

// openStores opens PostgreSQL and ClickHouse per the flags, exiting on
// connection errors. Either may come back nil when disabled.
func openStores(ctx context.Context, d *dbFlags) (*storage.PostgresDB, *storage.ClickHouseDB) {
	var pg *storage.PostgresDB
	var ch *storage.ClickHouseDB
	var err error

	if !*d.noDB {
		pg, err = storage.OpenPostgres(ctx, d.postgresConfig())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening PostgreSQL: %v\n", err)
			os.Exit(1)
		}
	}
	if !*d.noClickHouse {
		ch, err = storage.OpenClickHouse(ctx, d.clickhouseConfig())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening ClickHouse: %v\n", err)
			os.Exit(1)
		}
	}
	return pg, ch
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.Int("port", 8080, "HTTP port for API server")
	db := registerDBFlags(fs)
	_ = fs.Parse(args)

	ctx := context.Background()
	pg, ch := openStores(ctx, db)
	if pg != nil {
		defer pg.Close()
	}
	if ch != nil {
		defer func() { _ = ch.Close() }()
	}

	server := api.NewServer(pg, ch, api.Config{Port: *port})
	if err := server.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func runIngest(args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	d := ingest.DefaultConfig()
	natsURL := fs.String("nats-url", envOrDefault("NATS_URL", d.URL), "NATS server URL")
	subject := fs.String("subject", d.Subject, "NATS subject to subscribe to")
	queue := fs.String("queue", d.Queue, "NATS queue group")
	db := registerDBFlags(fs)
	_ = fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, ch := openStores(ctx, db)
	if pg != nil {
		defer pg.Close()
	}
	if ch != nil {
		defer func() { _ = ch.Close() }()
	}

	consumer := ingest.NewConsumer(ingest.Config{
		URL:     *natsURL,
		Subject: *subject,
		Queue:   *queue,
	}, pg, ch)

	if err := consumer.Run(ctx); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "Ingest error: %v\n", err)
		os.Exit(1)
	}
}

func runInitDB(args []string) {
	fs := flag.NewFlagSet("initdb", flag.ExitOnError)
	db := registerDBFlags(fs)
	_ = fs.Parse(args)

	ctx := context.Background()
	pg, ch := openStores(ctx, db)
	if pg != nil {
		defer pg.Close()
		if err := pg.CreateSchema(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "PostgreSQL schema error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("PostgreSQL schema created")
	}
	if ch != nil {
		defer func() { _ = ch.Close() }()
		if err := ch.CreateSchema(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "ClickHouse schema error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("ClickHouse schema created")
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
