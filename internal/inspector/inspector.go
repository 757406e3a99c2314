// Package inspector provides read-only introspection of a database's
// tables, used by the "list" command and by --dry-run to describe a
// planned dump without connecting any workers.
package inspector

import (
	"context"
	"database/sql"
	"fmt"
)

// TableInfo summarizes one table's size and row count.
type TableInfo struct {
	Name        string
	RowCount    int64
	DataSize    int64
	IndexSize   int64
	TotalSize   int64
	SizeDisplay string
}

// Inspector queries information_schema for table metadata.
type Inspector struct {
	db *sql.DB
}

// New creates an Inspector bound to db.
func New(db *sql.DB) *Inspector {
	return &Inspector{db: db}
}

// ListTables returns table names in the connection's current database.
func (i *Inspector) ListTables(ctx context.Context) ([]string, error) {
	rows, err := i.db.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var table string
		if err := rows.Scan(&table); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, table)
	}
	return tables, rows.Err()
}

// AllTablesInfo retrieves size/row information for every table in database.
func (i *Inspector) AllTablesInfo(ctx context.Context, database string) ([]TableInfo, error) {
	rows, err := i.db.QueryContext(ctx, `
		SELECT
			table_name,
			IFNULL(table_rows, 0) AS row_count,
			IFNULL(data_length, 0) AS data_size,
			IFNULL(index_length, 0) AS index_size,
			IFNULL(data_length + index_length, 0) AS total_size
		FROM information_schema.tables
		WHERE table_schema = ?
		ORDER BY total_size DESC
	`, database)
	if err != nil {
		return nil, fmt.Errorf("failed to get tables info: %w", err)
	}
	defer rows.Close()

	var tables []TableInfo
	for rows.Next() {
		var info TableInfo
		if err := rows.Scan(&info.Name, &info.RowCount, &info.DataSize, &info.IndexSize, &info.TotalSize); err != nil {
			return nil, fmt.Errorf("failed to scan table info: %w", err)
		}
		info.SizeDisplay = FormatBytes(info.TotalSize)
		tables = append(tables, info)
	}
	return tables, rows.Err()
}

// FormatBytes renders a byte count as a human-readable size.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	sizes := []string{"KB", "MB", "GB", "TB"}
	if exp >= len(sizes) {
		exp = len(sizes) - 1
	}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), sizes[exp])
}
