package dump

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MetadataWriter captures replication coordinates and dump start/finish
// timestamps to the <outputdir>/.metadata sidecar. Its presence of a
// finish timestamp is the canonical signal that a dump ran to completion.
type MetadataWriter struct {
	file *os.File
}

// NewMetadataWriter creates (or truncates) the metadata file in dir.
func NewMetadataWriter(dir string) (*MetadataWriter, error) {
	f, err := os.Create(filepath.Join(dir, ".metadata"))
	if err != nil {
		return nil, fmt.Errorf("create metadata file: %w", err)
	}
	return &MetadataWriter{file: f}, nil
}

// WriteStart records the dump's start timestamp.
func (m *MetadataWriter) WriteStart(now time.Time) error {
	_, err := fmt.Fprintf(m.file, "Started dump at: %s\n", now.Format("2006-01-02 15:04:05"))
	return err
}

// WriteSnapshotInfo captures SHOW MASTER STATUS and SHOW SLAVE STATUS
// coordinates from conn, the controller's own consistent-snapshot
// connection.
func (m *MetadataWriter) WriteSnapshotInfo(ctx context.Context, conn *sql.Conn) error {
	if err := m.writeMasterStatus(ctx, conn); err != nil {
		return err
	}
	return m.writeSlaveStatus(ctx, conn)
}

func (m *MetadataWriter) writeMasterStatus(ctx context.Context, conn *sql.Conn) error {
	rows, err := conn.QueryContext(ctx, "SHOW MASTER STATUS")
	if err != nil {
		return nil // advisory: a server without binlogging simply has none
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil || len(cols) < 2 {
		return nil
	}
	if !rows.Next() {
		return rows.Err()
	}
	raw := make([]sql.RawBytes, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return err
	}
	_, err = fmt.Fprintf(m.file, "\n[master]\nLog: %s\nPos: %s\n", raw[0], raw[1])
	return err
}

func (m *MetadataWriter) writeSlaveStatus(ctx context.Context, conn *sql.Conn) error {
	rows, err := conn.QueryContext(ctx, "SHOW SLAVE STATUS")
	if err != nil {
		return nil
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil
	}
	if !rows.Next() {
		return rows.Err()
	}
	raw := make([]sql.RawBytes, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return err
	}

	var masterHost, relayMasterLogFile, execMasterLogPos string
	for i, c := range cols {
		switch {
		case strings.EqualFold(c, "master_host"):
			masterHost = string(raw[i])
		case strings.EqualFold(c, "relay_master_log_file"):
			relayMasterLogFile = string(raw[i])
		case strings.EqualFold(c, "exec_master_log_pos"):
			execMasterLogPos = string(raw[i])
		}
	}
	if masterHost == "" && relayMasterLogFile == "" && execMasterLogPos == "" {
		return nil
	}
	_, err = fmt.Fprintf(m.file, "\n[slave]\nMaster_Host: %s\nRelay_Master_Log_File: %s\nExec_Master_Log_Pos: %s\n",
		masterHost, relayMasterLogFile, execMasterLogPos)
	return err
}

// WriteFinish records the dump's finish timestamp and closes the file.
func (m *MetadataWriter) WriteFinish(now time.Time) error {
	if _, err := fmt.Fprintf(m.file, "\nFinished dump at: %s\n", now.Format("2006-01-02 15:04:05")); err != nil {
		_ = m.file.Close()
		return err
	}
	return m.file.Close()
}
