package dump

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/quietloop/dbdump/internal/config"
)

func TestCoordinator_EnumerateDatabases_SingleDatabaseConfigured(t *testing.T) {
	c := &Coordinator{Config: &config.Config{Database: "shop"}}

	// A single configured database short-circuits without ever querying
	// the connection, so a nil *sql.Conn is safe here.
	databases, err := c.enumerateDatabases(context.Background(), nil)
	if err != nil {
		t.Fatalf("enumerateDatabases: %v", err)
	}
	if len(databases) != 1 || databases[0] != "shop" {
		t.Errorf("enumerateDatabases = %v, want [shop]", databases)
	}
}

func TestCoordinator_EnumerateDatabases_AllDatabasesExcludesInformationSchema(t *testing.T) {
	conn, mock := newMockConn(t)
	c := &Coordinator{Config: &config.Config{}}

	rows := sqlmock.NewRows([]string{"Database"}).
		AddRow("information_schema").
		AddRow("shop").
		AddRow("analytics")
	mock.ExpectQuery(regexp.QuoteMeta("SHOW DATABASES")).WillReturnRows(rows)

	databases, err := c.enumerateDatabases(context.Background(), conn)
	if err != nil {
		t.Fatalf("enumerateDatabases: %v", err)
	}
	want := []string{"shop", "analytics"}
	if len(databases) != len(want) {
		t.Fatalf("enumerateDatabases = %v, want %v", databases, want)
	}
	for i, name := range want {
		if databases[i] != name {
			t.Errorf("databases[%d] = %q, want %q", i, databases[i], name)
		}
	}
}

func TestCoordinator_EnumerateTables_FiltersToBaseTablesOnly(t *testing.T) {
	conn, mock := newMockConn(t)
	c := &Coordinator{Config: &config.Config{}}

	rows := sqlmock.NewRows([]string{"Tables_in_shop", "Table_type"}).
		AddRow("orders", "BASE TABLE").
		AddRow("order_totals_view", "VIEW").
		AddRow("customers", "BASE TABLE")
	mock.ExpectQuery(regexp.QuoteMeta("SHOW FULL TABLES FROM `shop`")).WillReturnRows(rows)

	tables, err := c.enumerateTables(context.Background(), conn, "shop")
	if err != nil {
		t.Fatalf("enumerateTables: %v", err)
	}
	want := []string{"orders", "customers"}
	if len(tables) != len(want) {
		t.Fatalf("enumerateTables = %v, want %v", tables, want)
	}
	for i, name := range want {
		if tables[i] != name {
			t.Errorf("tables[%d] = %q, want %q", i, tables[i], name)
		}
	}
}
