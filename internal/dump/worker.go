package dump

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/quietloop/dbdump/internal/ui"
)

// worker owns exactly one database connection and one consistent snapshot
// for its entire lifetime; it is never shared with another goroutine.
type worker struct {
	id      int
	conn    *sql.Conn
	cfg     *coordinatorConfig
	jobs    <-chan Job
	logger  *zap.Logger
	events  ui.EventSink
	encoder *Encoder
}

// coordinatorConfig is the subset of config.Config the worker needs; the
// coordinator constructs it from config.Config.
type coordinatorConfig struct {
	OutputDir string
	Compress  bool
}

// run pops jobs until it receives a Shutdown, then closes its connection
// and returns. Per-chunk failures are logged and do not stop the worker.
func (w *worker) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	defer w.conn.Close()

	for job := range w.jobs {
		if job.Kind == JobShutdown {
			return
		}
		chunk := job.ChunkIdx
		if !job.Chunked {
			chunk = -1
		}
		w.events.Report(ui.Event{Kind: ui.EventJobStarted, Worker: w.id, Table: job.Table, Chunk: chunk})
		if err := w.dump(ctx, job); err != nil {
			w.logger.Warn("chunk dump failed",
				zap.String("database", job.Database),
				zap.String("table", job.Table),
				zap.Int("chunk", job.ChunkIdx),
				zap.Error(err))
			w.events.Report(ui.Event{Kind: ui.EventJobFailed, Worker: w.id, Table: job.Table, Chunk: chunk, Err: err})
			continue
		}
		w.events.Report(ui.Event{Kind: ui.EventJobFinished, Worker: w.id, Table: job.Table, Chunk: chunk})
	}
}

func (w *worker) dump(ctx context.Context, job Job) error {
	path := outputPath(w.cfg.OutputDir, job.Database, job.Table, job.Chunked, job.ChunkIdx, w.cfg.Compress)
	sink, err := OpenSink(path, w.cfg.Compress)
	if err != nil {
		return fmt.Errorf("open sink %s: %w", path, err)
	}

	query := fmt.Sprintf("SELECT * FROM `%s`.`%s`", job.Database, job.Table)
	if job.Chunked {
		query += " WHERE " + job.Predicate.Clause
	}

	streamErr := w.encoder.Stream(ctx, w.conn, job.Table, query, sink)
	closeErr := sink.Close()
	if streamErr != nil {
		return streamErr
	}
	return closeErr
}

// outputPath builds the per-table or per-chunk output file path, per the
// naming scheme <db>.<table>.sql[.gz] / <db>.<table>.<NNNNN>.sql[.gz].
func outputPath(dir, database, table string, chunked bool, chunkIdx int, compress bool) string {
	name := fmt.Sprintf("%s.%s", database, table)
	if chunked {
		name = fmt.Sprintf("%s.%05d", name, chunkIdx)
	}
	name += ".sql"
	if compress {
		name += ".gz"
	}
	return filepath.Join(dir, name)
}
