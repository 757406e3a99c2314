// Package mysqlconn builds MySQL connections for the dump coordinator.
package mysqlconn

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/go-sql-driver/mysql"
	"golang.org/x/term"
)

// Connection describes how to reach a MySQL-compatible server.
type Connection struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// DSN returns the data source name for the connection, built through
// mysql.Config so escaping and timeouts are handled by the driver rather
// than by hand-assembled strings.
func (c *Connection) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	cfg.DBName = c.Database
	cfg.Params = map[string]string{
		"timeout":      "5s",
		"readTimeout":  "0",
		"writeTimeout": "0",
	}
	return cfg.FormatDSN()
}

// Open opens a *sql.DB against the connection and verifies it with a ping.
// The caller owns the returned DB.
func Open(ctx context.Context, c *Connection) (*sql.DB, error) {
	db, err := sql.Open("mysql", c.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// PromptPassword reads a password from the terminal without echoing it,
// for use when neither --password nor MYSQL_PWD was supplied.
func PromptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Enter password: ")
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}
