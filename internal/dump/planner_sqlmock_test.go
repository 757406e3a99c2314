package dump

import (
	"context"
	"database/sql"
	"math/big"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

// newMockConn returns a *sql.Conn backed by a sqlmock driver, the way
// nethalo-dbsafe's mysql package tests *sql.DB-driven code.
func newMockConn(t *testing.T) (*sql.Conn, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	conn, err := db.Conn(context.Background())
	if err != nil {
		t.Fatalf("db.Conn: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
		db.Close()
	})
	return conn, mock
}

func TestPlanner_ChooseKey_PrefersPrimaryOverUnique(t *testing.T) {
	conn, mock := newMockConn(t)

	rows := sqlmock.NewRows([]string{"Table", "Non_unique", "Key_name", "Seq_in_index", "Column_name", "Collation", "Cardinality"}).
		AddRow("orders", "0", "uniq_code", "1", "code", "A", "900").
		AddRow("orders", "0", "PRIMARY", "1", "id", "A", "1000")

	mock.ExpectQuery(regexp.QuoteMeta("SHOW INDEX FROM `shop`.`orders`")).WillReturnRows(rows)

	p := NewPlanner(conn, 100, false)
	key, err := p.chooseKey(context.Background(), "shop", "orders")
	if err != nil {
		t.Fatalf("chooseKey: %v", err)
	}
	if key != "id" {
		t.Errorf("chooseKey = %q, want %q (PRIMARY must win over UNIQUE)", key, "id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPlanner_ChooseKey_FallsBackToFirstUnique(t *testing.T) {
	conn, mock := newMockConn(t)

	rows := sqlmock.NewRows([]string{"Table", "Non_unique", "Key_name", "Seq_in_index", "Column_name", "Collation", "Cardinality"}).
		AddRow("orders", "1", "idx_customer", "1", "customer_id", "A", "400").
		AddRow("orders", "0", "uniq_code", "1", "code", "A", "900")

	mock.ExpectQuery(regexp.QuoteMeta("SHOW INDEX FROM `shop`.`orders`")).WillReturnRows(rows)

	p := NewPlanner(conn, 100, false)
	key, err := p.chooseKey(context.Background(), "shop", "orders")
	if err != nil {
		t.Fatalf("chooseKey: %v", err)
	}
	if key != "code" {
		t.Errorf("chooseKey = %q, want %q (first UNIQUE, no PRIMARY present)", key, "code")
	}
}

func TestPlanner_ChooseKey_UsesHighestCardinalityWhenAnyIndexEnabled(t *testing.T) {
	conn, mock := newMockConn(t)

	rows := sqlmock.NewRows([]string{"Table", "Non_unique", "Key_name", "Seq_in_index", "Column_name", "Collation", "Cardinality"}).
		AddRow("orders", "1", "idx_customer", "1", "customer_id", "A", "400").
		AddRow("orders", "1", "idx_status", "1", "status", "A", "5")

	mock.ExpectQuery(regexp.QuoteMeta("SHOW INDEX FROM `shop`.`orders`")).WillReturnRows(rows)

	p := NewPlanner(conn, 100, true)
	key, err := p.chooseKey(context.Background(), "shop", "orders")
	if err != nil {
		t.Fatalf("chooseKey: %v", err)
	}
	if key != "customer_id" {
		t.Errorf("chooseKey = %q, want %q (highest cardinality non-unique index)", key, "customer_id")
	}
}

func TestPlanner_ChooseKey_NoCandidateWithoutAnyIndexEnabled(t *testing.T) {
	conn, mock := newMockConn(t)

	rows := sqlmock.NewRows([]string{"Table", "Non_unique", "Key_name", "Seq_in_index", "Column_name", "Collation", "Cardinality"}).
		AddRow("orders", "1", "idx_customer", "1", "customer_id", "A", "400")

	mock.ExpectQuery(regexp.QuoteMeta("SHOW INDEX FROM `shop`.`orders`")).WillReturnRows(rows)

	p := NewPlanner(conn, 100, false)
	key, err := p.chooseKey(context.Background(), "shop", "orders")
	if err != nil {
		t.Fatalf("chooseKey: %v", err)
	}
	if key != "" {
		t.Errorf("chooseKey = %q, want empty (only a non-unique index exists and useAnyIndex is off)", key)
	}
}

func TestPlanner_KeyColumnType(t *testing.T) {
	conn, mock := newMockConn(t)

	col := sqlmock.NewColumn("id").OfType("INT", int64(0))
	rows := sqlmock.NewRowsWithColumnDefinition(col)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT `id` FROM `shop`.`orders` LIMIT 0")).WillReturnRows(rows)

	p := NewPlanner(conn, 100, false)
	typeName, err := p.keyColumnType(context.Background(), "shop", "orders", "id")
	if err != nil {
		t.Fatalf("keyColumnType: %v", err)
	}
	if typeName != "INT" {
		t.Errorf("keyColumnType = %q, want %q", typeName, "INT")
	}
	if !isIntegerKeyType(typeName) {
		t.Errorf("isIntegerKeyType(%q) = false, want true", typeName)
	}
}

func TestPlanner_MinMax_ValidBounds(t *testing.T) {
	conn, mock := newMockConn(t)

	rows := sqlmock.NewRows([]string{"MIN(`id`)", "MAX(`id`)"}).AddRow("1", "1000")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT MIN(`id`), MAX(`id`) FROM `shop`.`orders`")).WillReturnRows(rows)

	p := NewPlanner(conn, 100, false)
	min, max, ok, err := p.minMax(context.Background(), "shop", "orders", "id")
	if err != nil {
		t.Fatalf("minMax: %v", err)
	}
	if !ok {
		t.Fatal("minMax ok = false, want true")
	}
	if min.Cmp(big.NewInt(1)) != 0 || max.Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("minMax = [%s, %s], want [1, 1000]", min, max)
	}
}

func TestPlanner_MinMax_NullBoundsOnEmptyTable(t *testing.T) {
	conn, mock := newMockConn(t)

	rows := sqlmock.NewRows([]string{"MIN(`id`)", "MAX(`id`)"}).AddRow(nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT MIN(`id`), MAX(`id`) FROM `shop`.`orders`")).WillReturnRows(rows)

	p := NewPlanner(conn, 100, false)
	_, _, ok, err := p.minMax(context.Background(), "shop", "orders", "id")
	if err != nil {
		t.Fatalf("minMax: %v", err)
	}
	if ok {
		t.Error("minMax ok = true on an empty table, want false")
	}
}

func TestPlanner_EstimateCount_LocatesRowsColumnByName(t *testing.T) {
	conn, mock := newMockConn(t)

	// "rows" is not the first column, and its position is not guaranteed
	// across server versions; estimateCount must find it by name.
	rows := sqlmock.NewRows([]string{"id", "select_type", "table", "type", "possible_keys", "key", "key_len", "ref", "rows", "Extra"}).
		AddRow("1", "SIMPLE", "orders", "ALL", nil, nil, nil, nil, "5000", "")

	mock.ExpectQuery(regexp.QuoteMeta("EXPLAIN SELECT `id` FROM `shop`.`orders`")).WillReturnRows(rows)

	p := NewPlanner(conn, 100, false)
	estimate, err := p.estimateCount(context.Background(), "shop", "orders", "id", nil, nil)
	if err != nil {
		t.Fatalf("estimateCount: %v", err)
	}
	if estimate != 5000 {
		t.Errorf("estimateCount = %d, want 5000", estimate)
	}
}

func TestPlanner_EstimateCount_BoundedByFromAndTo(t *testing.T) {
	conn, mock := newMockConn(t)

	rows := sqlmock.NewRows([]string{"id", "rows"}).AddRow("1", "250")
	from := "1"
	to := "1000"
	query := "EXPLAIN SELECT `id` FROM `shop`.`orders` WHERE `id` >= \"1\" AND `id` <= \"1000\""
	mock.ExpectQuery(regexp.QuoteMeta(query)).WillReturnRows(rows)

	p := NewPlanner(conn, 100, false)
	estimate, err := p.estimateCount(context.Background(), "shop", "orders", "id", &from, &to)
	if err != nil {
		t.Fatalf("estimateCount: %v", err)
	}
	if estimate != 250 {
		t.Errorf("estimateCount = %d, want 250", estimate)
	}
}
