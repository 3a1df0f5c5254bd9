package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/edc-ingest/internal/core/domain"
)

// TargetStore owns the canonical study tables. Each table load runs inside
// its own transaction; index maintenance is deferred to BuildIndexes so bulk
// inserts are not amplified per row.
type TargetStore struct {
	db *sql.DB
}

func NewTargetStore(db *sql.DB) *TargetStore {
	return &TargetStore{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func safeIdent(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", fmt.Errorf("unsafe identifier %q", name)
	}
	return name, nil
}

func sqlType(t domain.ColumnType) string {
	switch t {
	case domain.ColumnInteger:
		return "BIGINT"
	case domain.ColumnReal:
		return "DOUBLE PRECISION"
	case domain.ColumnDate:
		return "DATE"
	default:
		return "TEXT"
	}
}

// EnsureSchema creates every registry table that does not exist yet. The
// advisory lock serializes bootstrap DDL across api/worker startups.
func (s *TargetStore) EnsureSchema(ctx context.Context, expectations []domain.SchemaExpectation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082301)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	for _, exp := range expectations {
		ddl, err := createTableDDL(exp)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table %s: %w", exp.TableID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func createTableDDL(exp domain.SchemaExpectation) (string, error) {
	table, err := safeIdent(exp.TableID)
	if err != nil {
		return "", fmt.Errorf("table %s: %w", exp.TableID, err)
	}

	var cols []string
	for _, col := range exp.Columns() {
		name, err := safeIdent(col.Name)
		if err != nil {
			return "", fmt.Errorf("table %s: %w", table, err)
		}
		cols = append(cols, fmt.Sprintf("\t%s %s", name, sqlType(col.Type)))
	}
	cols = append(cols, "\tcreated_at TIMESTAMPTZ NOT NULL DEFAULT now()")

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n)", table, strings.Join(cols, ",\n")), nil
}

// insertChunkRows keeps one multi-row INSERT under the wire protocol's
// parameter ceiling.
const maxInsertParams = 30000

// InsertRows writes all rows for one table inside a single transaction.
// Any statement failure rolls back the whole table load.
func (s *TargetStore) InsertRows(ctx context.Context, tableID string, columns []string, rows [][]any) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	table, err := safeIdent(tableID)
	if err != nil {
		return 0, err
	}
	colIdents := make([]string, len(columns))
	for i, c := range columns {
		ident, err := safeIdent(c)
		if err != nil {
			return 0, fmt.Errorf("table %s: %w", table, err)
		}
		colIdents[i] = ident
	}

	chunkSize := maxInsertParams / len(columns)
	if chunkSize > 500 {
		chunkSize = 500
	}
	if chunkSize < 1 {
		chunkSize = 1
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	inserted := 0
	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		query, args := buildInsert(table, colIdents, chunk)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, fmt.Errorf("insert into %s: %w", table, err)
		}
		inserted += len(chunk)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert tx: %w", err)
	}
	return inserted, nil
}

func buildInsert(table string, columns []string, rows [][]any) (string, []any) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", table, strings.Join(columns, ", "))

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for j := range columns {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", len(args)+1)
			args = append(args, row[j])
		}
		sb.WriteByte(')')
	}
	return sb.String(), args
}

// Subject demographics live on the subject-level metrics table; the
// issue-level exports frequently ship without them.
const subjectMetricsTable = "subject_level_metrics"

var subjectBackfillColumns = []string{"site_id", "country"}

// BackfillSubjectFields copies site/country values onto issue rows that
// arrived without them, keyed by project and subject. Runs after all table
// loads; re-running is a no-op because only NULL cells are touched.
func (s *TargetStore) BackfillSubjectFields(ctx context.Context, expectations []domain.SchemaExpectation) error {
	var source *domain.SchemaExpectation
	for idx := range expectations {
		if expectations[idx].TableID == subjectMetricsTable {
			source = &expectations[idx]
			break
		}
	}
	if source == nil {
		return nil
	}

	for _, exp := range expectations {
		if exp.TableID == subjectMetricsTable {
			continue
		}
		if _, ok := exp.ColumnSpecByName("subject_id"); !ok {
			continue
		}
		table, err := safeIdent(exp.TableID)
		if err != nil {
			return err
		}
		for _, col := range subjectBackfillColumns {
			if _, ok := exp.ColumnSpecByName(col); !ok {
				continue
			}
			if _, ok := source.ColumnSpecByName(col); !ok {
				continue
			}
			ident, err := safeIdent(col)
			if err != nil {
				return fmt.Errorf("table %s: %w", table, err)
			}
			query := fmt.Sprintf(
				"UPDATE %s t SET %s = s.%s FROM %s s WHERE t.%s IS NULL AND t.project_name = s.project_name AND t.subject_id = s.subject_id",
				table, ident, ident, subjectMetricsTable, ident)
			if _, err := s.db.ExecContext(ctx, query); err != nil {
				return fmt.Errorf("backfill %s.%s: %w", table, ident, err)
			}
		}
	}
	return nil
}

// BuildIndexes creates the registry-declared read-side indexes. Runs after
// all table loads commit.
func (s *TargetStore) BuildIndexes(ctx context.Context, expectations []domain.SchemaExpectation) error {
	for _, exp := range expectations {
		table, err := safeIdent(exp.TableID)
		if err != nil {
			return err
		}
		for _, group := range exp.IndexColumns {
			idents := make([]string, len(group))
			for i, col := range group {
				ident, err := safeIdent(col)
				if err != nil {
					return fmt.Errorf("table %s: %w", table, err)
				}
				idents[i] = ident
			}
			name := fmt.Sprintf("idx_%s_%s", table, strings.Join(idents, "_"))
			ddl := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", name, table, strings.Join(idents, ", "))
			if _, err := s.db.ExecContext(ctx, ddl); err != nil {
				return fmt.Errorf("create index %s: %w", name, err)
			}
		}
	}
	return nil
}
