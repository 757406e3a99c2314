package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quietloop/dbdump/internal/config"
	"github.com/quietloop/dbdump/internal/dump"
	"github.com/quietloop/dbdump/internal/dumplog"
	"github.com/quietloop/dbdump/internal/inspector"
	"github.com/quietloop/dbdump/internal/mysqlconn"
	"github.com/quietloop/dbdump/internal/ui"
)

var (
	// Connection flags
	host     string
	port     int
	user     string
	password string
	dbName   string

	// Dump flags
	threads        int
	outputDir      string
	statementSize  int64
	rowsPerChunk   int64
	compress       bool
	useAnyIndex    bool
	configFile     string
	excludeTables  []string
	excludePattern []string
	noProgress     bool
	dryRun         bool
	verbose        bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dbdump",
	Short: "Parallel, consistent MySQL logical backup tool",
	Long: `dbdump produces a consistent, parallel logical backup of a MySQL-compatible
database, emitting per-table SQL files of INSERT statements suitable for
replay into an empty server.`,
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump a database to per-table SQL files",
	Long: `Dump establishes a point-in-time consistent snapshot across a pool of
worker connections, partitions large tables into row-range chunks, and
streams each chunk to its own SQL file.`,
	RunE: runDump,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tables in the database with size and row counts",
	RunE:  runList,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration and connection profiles",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved connection profiles",
	RunE:  runConfigList,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&host, "host", "h", "127.0.0.1", "Server host")
	rootCmd.PersistentFlags().IntVarP(&port, "port", "P", 3306, "TCP port")
	rootCmd.PersistentFlags().StringVarP(&user, "user", "u", "", "Username")
	rootCmd.PersistentFlags().StringVarP(&password, "password", "p", "", "Password (or MYSQL_PWD env, or interactive prompt)")
	rootCmd.PersistentFlags().StringVarP(&dbName, "database", "B", "", "Single database to dump; if absent, all databases except information_schema")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	dumpCmd.Flags().IntVarP(&threads, "threads", "t", 4, "Worker count")
	dumpCmd.Flags().StringVarP(&outputDir, "outputdir", "o", "", "Output directory (default export-YYYYMMDD-HHMMSS)")
	dumpCmd.Flags().Int64VarP(&statementSize, "statement-size", "s", 1_000_000, "Target INSERT size in bytes")
	dumpCmd.Flags().Int64VarP(&rowsPerChunk, "rows", "r", 0, "Target rows per chunk; 0 disables chunking")
	dumpCmd.Flags().BoolVarP(&compress, "compress", "c", false, "Gzip output files")
	dumpCmd.Flags().BoolVar(&useAnyIndex, "use-any-index", false, "Permit a non-unique index as a chunking key")
	dumpCmd.Flags().StringVar(&configFile, "config", "", "Project YAML file of default excludes")
	dumpCmd.Flags().StringArrayVar(&excludeTables, "exclude", []string{}, "Skip this table's data entirely (repeatable)")
	dumpCmd.Flags().StringArrayVar(&excludePattern, "exclude-pattern", []string{}, "Skip tables matching pattern (repeatable)")
	dumpCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the live status view")
	dumpCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Enumerate databases/tables/planned chunks without dumping")

	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configListCmd)
}

func resolvePassword() error {
	if password != "" {
		return nil
	}
	if env := os.Getenv("MYSQL_PWD"); env != "" {
		password = env
		return nil
	}
	pw, err := mysqlconn.PromptPassword()
	if err != nil {
		return err
	}
	password = pw
	return nil
}

func runDump(cmd *cobra.Command, args []string) error {
	if user == "" {
		return fmt.Errorf("database user is required (use -u or --user)")
	}
	if err := resolvePassword(); err != nil {
		return fmt.Errorf("failed to resolve password: %w", err)
	}

	if outputDir == "" {
		outputDir = fmt.Sprintf("export-%s", time.Now().Format("20060102-150405"))
	}

	excludeConfig, err := buildExcludeConfig()
	if err != nil {
		return err
	}

	cfg := &config.Config{
		Host:            host,
		Port:            port,
		User:            user,
		Password:        password,
		Database:        dbName,
		Threads:         threads,
		OutputDir:       outputDir,
		StatementSize:   statementSize,
		RowsPerChunk:    rowsPerChunk,
		Compress:        compress,
		UseAnyIndex:     useAnyIndex,
		ExcludeTables:   append(append([]string{}, excludeConfig.Exact...), excludeTables...),
		ExcludePatterns: append(append([]string{}, excludeConfig.Patterns...), excludePattern...),
	}

	logger := dumplog.New(verbose)
	defer logger.Sync()

	if dryRun {
		ui.PrintInfo(fmt.Sprintf("dry run: no data will be written to %s", outputDir))
		return runDryRun(cfg)
	}

	events := ui.NewChanSink(64)
	coordinator := dump.New(cfg, logger, events)

	ctx := context.Background()
	done := make(chan error, 1)
	go func() {
		done <- coordinator.Run(ctx)
		events.Close()
	}()

	started := time.Now()

	if !noProgress {
		if err := ui.RunStatus(events.Events(), 0); err != nil {
			logger.Warn("status display exited with error", zap.Error(err))
		}
	} else {
		runSimpleProgress(events.Events())
	}

	if err := <-done; err != nil {
		ui.PrintError(err)
		return fmt.Errorf("dump failed: %w", err)
	}

	ui.PrintSummary(outputDir, len(cfg.ExcludeTables), time.Since(started), inspector.FormatBytes(dirSize(outputDir)))
	return nil
}

// dirSize sums the size of every regular file directly under dir (the
// output directory contains only the dump's own .sql/.sql.gz/.metadata
// files, never subdirectories).
func dirSize(dir string) int64 {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	var total int64
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || info.IsDir() {
			continue
		}
		total += info.Size()
	}
	return total
}

// runSimpleProgress drains events through a spinner-style ProgressTracker
// for --no-progress runs: the total job count isn't known ahead of time
// (chunk counts are computed per table as the dump proceeds), so the bar
// runs in schollz/progressbar's indeterminate mode (max <= 0) and simply
// counts completed/failed jobs as they are reported.
func runSimpleProgress(events <-chan ui.Event) {
	tracker := ui.NewSimpleProgress("dumping", -1)
	for ev := range events {
		switch ev.Kind {
		case ui.EventJobFinished, ui.EventJobFailed:
			tracker.Add(1)
		}
	}
	tracker.Finish()
	tracker.Clear()
}

// runDryRun enumerates every database/table the dump would cover and, for
// each table, reports the planned chunk count without opening any worker
// sessions or writing any output.
func runDryRun(cfg *config.Config) error {
	ctx := context.Background()
	conn := &mysqlconn.Connection{Host: cfg.Host, Port: cfg.Port, User: cfg.User, Password: cfg.Password, Database: cfg.Database}
	db, err := mysqlconn.Open(ctx, conn)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer db.Close()

	insp := inspector.New(db)

	databases := []string{cfg.Database}
	if cfg.Database == "" {
		rows, err := db.QueryContext(ctx, "SHOW DATABASES")
		if err != nil {
			return err
		}
		databases = nil
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				rows.Close()
				return err
			}
			if name != "information_schema" {
				databases = append(databases, name)
			}
		}
		rows.Close()
	}

	// PlanTable takes fully-qualified `database`.`table` identifiers, so a
	// single connection (with no database selected) can plan across every
	// database in the loop below.
	planConn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open planning connection: %w", err)
	}
	defer planConn.Close()
	planner := dump.NewPlanner(planConn, cfg.RowsPerChunk, cfg.UseAnyIndex)

	var totalChunks int
	for _, database := range databases {
		// information_schema is queried directly by name, so no database
		// needs to be selected on the connection for this to work against
		// every database in turn.
		tables, err := insp.AllTablesInfo(ctx, database)
		if err != nil {
			return fmt.Errorf("list tables in %s: %w", database, err)
		}
		fmt.Printf("\n%s: %d tables\n", database, len(tables))

		var dbBytes int64
		for _, t := range tables {
			dbBytes += t.TotalSize
		}
		var tracker *ui.ProgressTracker
		if dbBytes > 0 {
			tracker = ui.NewProgressTracker("scanning "+database, dbBytes)
		}

		for _, t := range tables {
			predicates, err := planner.PlanTable(ctx, database, t.Name)
			if err != nil {
				logPlanWarning(database, t.Name, err)
			}
			chunks := len(predicates)
			if chunks == 0 {
				chunks = 1
			}
			totalChunks += chunks
			if tracker != nil {
				tracker.Add64(t.TotalSize)
			}
			fmt.Printf("  - %s (%d rows, %s, %d chunk(s))\n", t.Name, t.RowCount, t.SizeDisplay, chunks)
		}
		if tracker != nil {
			tracker.Finish()
			tracker.Clear()
		}
	}
	fmt.Printf("\n%d job(s) planned. Would write output to: %s\n", totalChunks, cfg.OutputDir)
	return nil
}

func logPlanWarning(database, table string, err error) {
	fmt.Fprintf(os.Stderr, "warning: chunk planning failed for %s.%s, would fall back to a single job: %v\n", database, table, err)
}

func runList(cmd *cobra.Command, args []string) error {
	if user == "" {
		return fmt.Errorf("database user is required (use -u or --user)")
	}
	if err := resolvePassword(); err != nil {
		return fmt.Errorf("failed to resolve password: %w", err)
	}
	if dbName == "" {
		return fmt.Errorf("database name is required (use -B or --database)")
	}

	ctx := context.Background()
	conn := &mysqlconn.Connection{Host: host, Port: port, User: user, Password: password, Database: dbName}
	db, err := mysqlconn.Open(ctx, conn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	insp := inspector.New(db)
	tablesInfo, err := insp.AllTablesInfo(ctx, dbName)
	if err != nil {
		return fmt.Errorf("failed to get table information: %w", err)
	}

	fmt.Printf("\nTables in database '%s':\n\n", dbName)

	if len(tablesInfo) > 0 {
		tracker := ui.NewSimpleProgress("scanning tables", len(tablesInfo))
		for range tablesInfo {
			tracker.Add(1)
		}
		tracker.Finish()
		tracker.Clear()
	}

	fmt.Printf("%-40s %12s %15s\n", "Table Name", "Size", "Rows")
	fmt.Println(string(make([]byte, 70)))

	for _, info := range tablesInfo {
		fmt.Printf("%-40s %12s %15d\n", info.Name, info.SizeDisplay, info.RowCount)
	}

	fmt.Printf("\nTotal: %d tables\n\n", len(tablesInfo))

	return nil
}

func runConfigList(cmd *cobra.Command, args []string) error {
	profiles, err := config.LoadProfiles()
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	if len(profiles.Profiles) == 0 {
		fmt.Println("No saved profiles found")
		return nil
	}

	fmt.Println("\nSaved connection profiles:")
	for _, profile := range profiles.Profiles {
		fmt.Printf("  %s\n", profile.Name)
		fmt.Printf("    Host: %s:%d\n", profile.Host, profile.Port)
		fmt.Printf("    User: %s\n", profile.User)
		if profile.Database != "" {
			fmt.Printf("    Database: %s\n", profile.Database)
		}
		fmt.Println()
	}

	return nil
}

func buildExcludeConfig() (config.ExcludeConfig, error) {
	var excludeConfig config.ExcludeConfig

	defaults, err := config.LoadDefaults()
	if err != nil {
		return excludeConfig, fmt.Errorf("failed to load defaults: %w", err)
	}
	excludeConfig = defaults.DefaultExcludes

	globalConfig, err := config.LoadGlobalConfig()
	if err != nil {
		return excludeConfig, fmt.Errorf("failed to load global config: %w", err)
	}
	if globalConfig != nil {
		excludeConfig = config.MergeExcludes(defaults, globalConfig)
	}

	if configFile != "" {
		projectConfig, err := config.LoadProjectConfig(configFile)
		if err != nil {
			return excludeConfig, fmt.Errorf("failed to load config file: %w", err)
		}
		tempDefaults := &config.DefaultConfig{DefaultExcludes: excludeConfig}
		excludeConfig = config.MergeExcludes(tempDefaults, projectConfig)
	}

	return excludeConfig, nil
}
