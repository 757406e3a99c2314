package dump

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"strings"
)

// indexCandidate is one leading index column read from SHOW INDEX.
type indexCandidate struct {
	name        string
	column      string
	nonUnique   bool
	cardinality int64
}

// Planner chooses a chunking key for a table and derives range predicates
// that partition it into roughly equal-cardinality pieces.
type Planner struct {
	conn         *sql.Conn
	rowsPerChunk int64
	useAnyIndex  bool
}

// NewPlanner builds a Planner bound to a single connection (the
// controller's own session during a dump). conn must not be shared with
// any other goroutine while in use.
func NewPlanner(conn *sql.Conn, rowsPerChunk int64, useAnyIndex bool) *Planner {
	return &Planner{conn: conn, rowsPerChunk: rowsPerChunk, useAnyIndex: useAnyIndex}
}

// PlanTable returns the ordered chunk predicates for database.table, or an
// empty slice if the table should be dumped as a single unchunked job.
// A planning error is never fatal: callers fall back to one job.
func (p *Planner) PlanTable(ctx context.Context, database, table string) ([]Predicate, error) {
	if p.rowsPerChunk <= 0 {
		return nil, nil
	}

	key, err := p.chooseKey(ctx, database, table)
	if err != nil || key == "" {
		return nil, err
	}

	keyType, err := p.keyColumnType(ctx, database, table, key)
	if err != nil {
		return nil, err
	}
	if !isIntegerKeyType(keyType) {
		// Only integer key types are supported for chunking; every other
		// type falls back to a single unchunked job. This is an explicit
		// rule, not a fallthrough accident.
		return nil, nil
	}

	min, max, ok, err := p.minMax(ctx, database, table, key)
	if err != nil || !ok {
		return nil, err
	}

	estimate, err := p.estimateCount(ctx, database, table, key, nil, nil)
	if err != nil {
		return nil, err
	}
	if estimate <= p.rowsPerChunk {
		return nil, nil
	}

	chunks := estimate / p.rowsPerChunk
	if chunks < 1 {
		chunks = 1
	}
	return buildPredicates(key, min, max, chunks), nil
}

// buildPredicates derives the ordered chunk predicates covering [min, max]
// in roughly chunks equal-width steps. It is a pure function of its
// arguments so the chunk-boundary and first-predicate-IS-NULL-OR logic can
// be unit tested without a database connection.
func buildPredicates(key string, min, max *big.Int, chunks int64) []Predicate {
	if chunks < 1 {
		chunks = 1
	}
	span := new(big.Int).Sub(max, min)
	step := new(big.Int).Div(span, big.NewInt(chunks))
	step.Add(step, big.NewInt(1))

	var predicates []Predicate
	cutoff := new(big.Int).Set(min)
	for cutoff.Cmp(max) <= 0 {
		upper := new(big.Int).Add(cutoff, step)
		var clause string
		if len(predicates) == 0 {
			clause = fmt.Sprintf("(`%s` IS NULL OR (`%s` >= %s AND `%s` < %s))", key, key, cutoff.String(), key, upper.String())
		} else {
			clause = fmt.Sprintf("(`%s` >= %s AND `%s` < %s)", key, cutoff.String(), key, upper.String())
		}
		predicates = append(predicates, Predicate{Clause: clause})
		cutoff = upper
	}
	return predicates
}

// chooseKey implements the chunking-key preference order: PRIMARY, then
// first UNIQUE, then (if enabled) the leading column of the
// highest-cardinality index.
func (p *Planner) chooseKey(ctx context.Context, database, table string) (string, error) {
	rows, err := p.conn.QueryContext(ctx, fmt.Sprintf("SHOW INDEX FROM `%s`.`%s`", database, table))
	if err != nil {
		return "", fmt.Errorf("show index %s.%s: %w", database, table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", err
	}

	var primary, firstUnique string
	var bestAny string
	var bestCardinality int64 = -1

	for rows.Next() {
		raw := make([]sql.RawBytes, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return "", err
		}
		// Fixed positions per spec.md §4.2: Non_unique=1, Key_name=2,
		// Seq_in_index=3, Column_name=4, Cardinality=6.
		if len(raw) < 7 {
			continue
		}
		if string(raw[3]) != "1" {
			continue // only leading columns of an index are candidates
		}
		keyName := string(raw[2])
		columnName := string(raw[4])
		nonUnique := string(raw[1]) != "0"
		var cardinality int64
		if raw[6] != nil {
			fmt.Sscanf(string(raw[6]), "%d", &cardinality)
		}

		if keyName == "PRIMARY" && primary == "" {
			primary = columnName
		}
		if !nonUnique && firstUnique == "" {
			firstUnique = columnName
		}
		if cardinality > bestCardinality {
			bestCardinality = cardinality
			bestAny = columnName
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	if primary != "" {
		return primary, nil
	}
	if firstUnique != "" {
		return firstUnique, nil
	}
	if p.useAnyIndex && bestAny != "" {
		return bestAny, nil
	}
	return "", nil
}

func (p *Planner) keyColumnType(ctx context.Context, database, table, key string) (string, error) {
	rows, err := p.conn.QueryContext(ctx, fmt.Sprintf("SELECT `%s` FROM `%s`.`%s` LIMIT 0", key, database, table))
	if err != nil {
		return "", fmt.Errorf("probe key type for %s.%s.%s: %w", database, table, key, err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil || len(types) == 0 {
		return "", err
	}
	return types[0].DatabaseTypeName(), nil
}

// isIntegerKeyType reports whether a DatabaseTypeName corresponds to the
// only key types the planner is allowed to chunk on: LONG, LONGLONG and
// INT24 in the original C client's enum, i.e. INT/INTEGER, BIGINT and
// MEDIUMINT here.
func isIntegerKeyType(typeName string) bool {
	switch strings.ToUpper(typeName) {
	case "INT", "INTEGER", "BIGINT", "MEDIUMINT":
		return true
	default:
		return false
	}
}

func (p *Planner) minMax(ctx context.Context, database, table, key string) (min, max *big.Int, ok bool, err error) {
	row := p.conn.QueryRowContext(ctx, fmt.Sprintf("SELECT MIN(`%s`), MAX(`%s`) FROM `%s`.`%s`", key, key, database, table))
	var minRaw, maxRaw sql.NullString
	if err := row.Scan(&minRaw, &maxRaw); err != nil {
		return nil, nil, false, fmt.Errorf("min/max for %s.%s.%s: %w", database, table, key, err)
	}
	if !minRaw.Valid || !maxRaw.Valid {
		return nil, nil, false, nil
	}
	min = new(big.Int)
	if _, ok := min.SetString(minRaw.String, 10); !ok {
		return nil, nil, false, nil
	}
	max = new(big.Int)
	if _, ok := max.SetString(maxRaw.String, 10); !ok {
		return nil, nil, false, nil
	}
	return min, max, true, nil
}

// estimateCount returns EXPLAIN's row-count estimate for SELECT key FROM
// db.table, located by column name since its position is not fixed across
// server versions. from/to, when non-nil, bound the estimate to a
// candidate chunk range; both are escaped independently (the reference
// implementation escaped the "to" bound with the "from" string — fixed
// here, and covered by a regression test).
func (p *Planner) estimateCount(ctx context.Context, database, table, key string, from, to *string) (int64, error) {
	query := fmt.Sprintf("EXPLAIN SELECT `%s` FROM `%s`.`%s`", key, database, table)
	if from != nil || to != nil {
		var clauses []string
		if from != nil {
			clauses = append(clauses, fmt.Sprintf("`%s` >= \"%s\"", key, string(escapeBytes([]byte(*from)))))
		}
		if to != nil {
			clauses = append(clauses, fmt.Sprintf("`%s` <= \"%s\"", key, string(escapeBytes([]byte(*to)))))
		}
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := p.conn.QueryContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("explain %s.%s: %w", database, table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, err
	}
	rowsIdx := -1
	for i, c := range cols {
		if strings.EqualFold(c, "rows") {
			rowsIdx = i
			break
		}
	}
	if rowsIdx < 0 {
		return 0, fmt.Errorf("explain %s.%s: no rows column in output", database, table)
	}

	if !rows.Next() {
		return 0, fmt.Errorf("explain %s.%s: no rows returned", database, table)
	}
	raw := make([]sql.RawBytes, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return 0, err
	}
	var estimate int64
	if raw[rowsIdx] != nil {
		fmt.Sscanf(string(raw[rowsIdx]), "%d", &estimate)
	}
	return estimate, nil
}
