// Package dump implements the dump coordinator: the consistency protocol
// that establishes a shared snapshot across many worker sessions, the
// chunk planner, the job queue and worker pool, and the row-streaming
// encoder that turns result sets into INSERT statements.
package dump

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quietloop/dbdump/internal/config"
	"github.com/quietloop/dbdump/internal/dumplog"
	"github.com/quietloop/dbdump/internal/mysqlconn"
	"github.com/quietloop/dbdump/internal/patterns"
	"github.com/quietloop/dbdump/internal/ui"
)

// dummyTable is the throwaway table created (and immediately read from)
// as a workaround for servers that do not honour WITH CONSISTENT
// SNAPSHOT until a statement actually touches a table.
const dummyTable = "mysql.mydumperdummy"

// Coordinator runs the controller side of the dump protocol: it acquires
// the global read lock, opens its own snapshot, starts workers, releases
// the lock, enumerates databases/tables, plans chunks, enqueues jobs,
// joins workers and writes metadata.
type Coordinator struct {
	Config *config.Config
	Logger *zap.Logger
	Events ui.EventSink

	db *sql.DB
}

// New builds a Coordinator. events may be nil, in which case a no-op sink
// is used.
func New(cfg *config.Config, logger *zap.Logger, events ui.EventSink) *Coordinator {
	if events == nil {
		events = noopSink{}
	}
	return &Coordinator{Config: cfg, Logger: logger, Events: events}
}

type noopSink struct{}

func (noopSink) Report(ui.Event) {}

// Run executes the full coordinator protocol described in the component
// design: steps are numbered in comments to match that description.
func (c *Coordinator) Run(ctx context.Context) error {
	conn := &mysqlconn.Connection{
		Host:     c.Config.Host,
		Port:     c.Config.Port,
		User:     c.Config.User,
		Password: c.Config.Password,
		Database: c.Config.Database,
	}

	// 1. Open controller connection; set its session character set to binary.
	db, err := mysqlconn.Open(ctx, conn)
	if err != nil {
		return fmt.Errorf("controller connect: %w", err)
	}
	c.db = db
	defer db.Close()

	ctrl, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("controller session: %w", err)
	}
	defer ctrl.Close()

	if _, err := ctrl.ExecContext(ctx, "SET NAMES binary"); err != nil {
		return fmt.Errorf("controller set names: %w", err)
	}

	if err := os.MkdirAll(c.Config.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	meta, err := NewMetadataWriter(c.Config.OutputDir)
	if err != nil {
		return fmt.Errorf("open metadata file: %w", err)
	}
	if err := meta.WriteStart(time.Now()); err != nil {
		return fmt.Errorf("write metadata start: %w", err)
	}

	// 2. FLUSH TABLES WITH READ LOCK. Non-fatal: consistency becomes advisory.
	locked := true
	if _, err := ctrl.ExecContext(ctx, "FLUSH TABLES WITH READ LOCK"); err != nil {
		locked = false
		c.Logger.Warn("flush tables with read lock failed, dump will not be guaranteed consistent", zap.Error(err))
	}
	if locked {
		c.Events.Report(ui.Event{Kind: ui.EventLockAcquired})
	}

	// 3. Dummy-read compatibility check.
	needsDummyRead := c.setUpDummyRead(ctx, ctrl)

	// 4. START TRANSACTION WITH CONSISTENT SNAPSHOT on the controller.
	if _, err := ctrl.ExecContext(ctx, "START TRANSACTION WITH CONSISTENT SNAPSHOT"); err != nil {
		return fmt.Errorf("controller start snapshot: %w", err)
	}
	if needsDummyRead {
		if err := dummyRead(ctx, ctrl); err != nil {
			c.Logger.Warn("controller dummy read failed", zap.Error(err))
		}
	}

	// 5. Capture replication coordinates.
	if err := meta.WriteSnapshotInfo(ctx, ctrl); err != nil {
		c.Logger.Warn("failed to capture snapshot metadata", zap.Error(err))
	}

	// 6. Spawn N workers and wait for every one to signal readiness.
	n := c.Config.Threads
	if n < 1 {
		n = 1
	}
	jobs := make(chan Job)
	ready := make(chan readySignal, n)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			wconn, err := c.startWorkerSession(ctx, needsDummyRead, id)
			if err != nil {
				ready <- readySignal{id: id, err: err}
				wg.Done()
				return
			}
			ready <- readySignal{id: id}

			w := &worker{
				id:   id,
				conn: wconn,
				cfg: &coordinatorConfig{
					OutputDir: c.Config.OutputDir,
					Compress:  c.Config.Compress,
				},
				jobs:    jobs,
				logger:  dumplog.Worker(c.Logger, id),
				events:  c.Events,
				encoder: NewEncoder(c.Config.StatementSize),
			}
			w.run(ctx, &wg)
		}(i)
	}

	// Snapshot barrier: block until every worker has reported readiness
	// before the lock is released.
	for i := 0; i < n; i++ {
		sig := <-ready
		if sig.err != nil {
			return fmt.Errorf("worker %d session: %w", sig.id, sig.err)
		}
	}

	// 7. Every worker is snapshot-ready; release the global lock.
	if locked {
		if _, err := ctrl.ExecContext(ctx, "UNLOCK TABLES"); err != nil {
			c.Logger.Warn("unlock tables failed", zap.Error(err))
		}
	}
	c.Events.Report(ui.Event{Kind: ui.EventUnlocked})

	// 8-10. Enumerate databases/tables, plan chunks, enqueue jobs.
	matcher := patterns.NewMatcher(config.ExcludeConfig{
		Exact:    c.Config.ExcludeTables,
		Patterns: c.Config.ExcludePatterns,
	})
	planner := NewPlanner(ctrl, c.Config.RowsPerChunk, c.Config.UseAnyIndex)

	databases, err := c.enumerateDatabases(ctx, ctrl)
	if err != nil {
		c.Logger.Warn("enumerate databases failed", zap.Error(err))
	}
	for _, database := range databases {
		tables, err := c.enumerateTables(ctx, ctrl, database)
		if err != nil {
			c.Logger.Warn("enumerate tables failed", zap.String("database", database), zap.Error(err))
			continue
		}
		for _, table := range matcher.FilterIncluded(tables) {
			c.enqueueTable(ctx, jobs, planner, database, table)
		}
	}

	// 11. Push exactly N shutdown jobs and join workers.
	for i := 0; i < n; i++ {
		jobs <- Job{Kind: JobShutdown}
	}
	close(jobs)
	wg.Wait()

	// 12. Write the finish timestamp and close the metadata file.
	c.Events.Report(ui.Event{Kind: ui.EventDone})
	return meta.WriteFinish(time.Now())
}

type readySignal struct {
	id  int
	err error
}

// startWorkerSession opens a dedicated connection, sets its session
// character set to binary and begins its consistent snapshot. This is the
// per-worker portion of the snapshot barrier: the caller must not
// UNLOCK TABLES until every worker has completed this successfully.
func (c *Coordinator) startWorkerSession(ctx context.Context, needsDummyRead bool, id int) (*sql.Conn, error) {
	wconn, err := c.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := wconn.ExecContext(ctx, "SET NAMES binary"); err != nil {
		return nil, err
	}
	if _, err := wconn.ExecContext(ctx, "START TRANSACTION WITH CONSISTENT SNAPSHOT"); err != nil {
		return nil, err
	}
	if needsDummyRead {
		if err := dummyRead(ctx, wconn); err != nil {
			c.Logger.Warn("worker dummy read failed", zap.Int("worker", id), zap.Error(err))
		}
	}
	return wconn, nil
}

func (c *Coordinator) enqueueTable(ctx context.Context, jobs chan<- Job, planner *Planner, database, table string) {
	predicates, err := planner.PlanTable(ctx, database, table)
	if err != nil {
		c.Logger.Warn("chunk planning failed, falling back to single job",
			zap.String("database", database), zap.String("table", table), zap.Error(err))
	}
	if len(predicates) == 0 {
		jobs <- Job{Kind: JobDump, Database: database, Table: table}
		return
	}
	for i, pred := range predicates {
		jobs <- Job{Kind: JobDump, Database: database, Table: table, Chunked: true, ChunkIdx: i, Predicate: pred}
	}
}

// setUpDummyRead creates the throwaway table used by the dummy-read
// workaround, returning whether it succeeded (and is therefore needed by
// every worker too).
func (c *Coordinator) setUpDummyRead(ctx context.Context, ctrl *sql.Conn) bool {
	_, err := ctrl.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS "+dummyTable+" (a INT) ENGINE=MEMORY")
	if err != nil {
		c.Logger.Debug("dummy-read table unavailable, skipping compatibility workaround", zap.Error(err))
		return false
	}
	return true
}

func dummyRead(ctx context.Context, conn *sql.Conn) error {
	rows, err := conn.QueryContext(ctx, "SELECT * FROM "+dummyTable+" LIMIT 1")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
	}
	return rows.Err()
}

func (c *Coordinator) enumerateDatabases(ctx context.Context, ctrl *sql.Conn) ([]string, error) {
	if c.Config.Database != "" {
		return []string{c.Config.Database}, nil
	}
	rows, err := ctrl.QueryContext(ctx, "SHOW DATABASES")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var databases []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if name == "information_schema" {
			continue
		}
		databases = append(databases, name)
	}
	return databases, rows.Err()
}

func (c *Coordinator) enumerateTables(ctx context.Context, ctrl *sql.Conn, database string) ([]string, error) {
	rows, err := ctrl.QueryContext(ctx, fmt.Sprintf("SHOW FULL TABLES FROM `%s`", database))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name, kind string
		if err := rows.Scan(&name, &kind); err != nil {
			return nil, err
		}
		if kind == "BASE TABLE" {
			tables = append(tables, name)
		}
	}
	return tables, rows.Err()
}
