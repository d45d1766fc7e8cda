package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"remit-backoffice/pkg/utils"

	"github.com/google/uuid"
)

// SQLStore is the Postgres-backed record store. SQL is generated from the
// schema; every identifier that reaches a query was validated against it.
type SQLStore struct {
	db     *sql.DB
	schema Schema
}

func NewSQLStore(db *sql.DB, schema Schema) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("records: db required")
	}
	if len(schema) == 0 {
		return nil, errors.New("records: schema required")
	}
	return &SQLStore{db: db, schema: schema}, nil
}

func (s *SQLStore) Execute(ctx context.Context, m Mutation) (Result, error) {
	t, ok := s.schema.Table(m.Kind)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownKind, m.Kind)
	}

	switch m.Op {
	case OpCreate:
		return s.create(ctx, t, m)
	case OpUpdate:
		return s.update(ctx, t, m)
	case OpDelete:
		return s.delete(ctx, t, m)
	case OpCreateMany:
		return s.createMany(ctx, t, m)
	case OpUpdateMany:
		return s.updateMany(ctx, t, m)
	case OpDeleteMany:
		return s.deleteMany(ctx, t, m)
	case OpFindOne:
		return s.findOne(ctx, t, m)
	case OpFindMany:
		return s.findMany(ctx, t, m)
	default:
		return Result{}, fmt.Errorf("records: unsupported op %q", m.Op.WireName())
	}
}

// Snapshot reads the current state of a single row on a dedicated connection
// checked out for just this call. It never routes through Execute, so
// interceptors wrapping this store cannot recurse into themselves.
func (s *SQLStore) Snapshot(ctx context.Context, kind string, selector Record) (Record, bool, error) {
	t, ok := s.schema.Table(kind)
	if !ok {
		return nil, false, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if len(selector) == 0 {
		return nil, false, ErrEmptyMutation
	}
	if err := s.schema.checkFields(kind, selector); err != nil {
		return nil, false, err
	}

	where, args := whereClause(selector, 1)
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s LIMIT 1", strings.Join(t.Columns, ", "), t.Name, where)

	var out Record
	err := utils.WithConn(ctx, s.db, func(ctx context.Context, conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		recs, err := scanRecords(rows)
		if err != nil {
			return err
		}
		if len(recs) > 0 {
			out = recs[0]
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

func (s *SQLStore) create(ctx context.Context, t Table, m Mutation) (Result, error) {
	data, err := s.prepareInsert(t, m.Kind, m.Data)
	if err != nil {
		return Result{}, err
	}

	fields := sortedFields(data)
	placeholders := make([]string, len(fields))
	args := make([]any, len(fields))
	for i, f := range fields {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = data[f]
	}

	q := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		t.Name,
		strings.Join(fields, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(t.Columns, ", "),
	)
	rec, err := s.queryOne(ctx, q, args)
	if err != nil {
		return Result{}, err
	}
	return Result{Record: rec}, nil
}

func (s *SQLStore) update(ctx context.Context, t Table, m Mutation) (Result, error) {
	if len(m.Selector) == 0 || len(m.Data) == 0 {
		return Result{}, ErrEmptyMutation
	}
	if err := s.schema.checkFields(m.Kind, m.Selector); err != nil {
		return Result{}, err
	}
	data := m.Data.Clone()
	if t.hasColumn("updated_at") {
		data["updated_at"] = time.Now().UTC()
	}
	if err := s.schema.checkFields(m.Kind, data); err != nil {
		return Result{}, err
	}

	setFields := sortedFields(data)
	sets := make([]string, len(setFields))
	args := make([]any, 0, len(setFields)+len(m.Selector))
	for i, f := range setFields {
		sets[i] = fmt.Sprintf("%s = $%d", f, i+1)
		args = append(args, data[f])
	}
	where, whereArgs := whereClause(m.Selector, len(setFields)+1)
	args = append(args, whereArgs...)

	q := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s RETURNING %s",
		t.Name, strings.Join(sets, ", "), where, strings.Join(t.Columns, ", "),
	)
	rec, err := s.queryOne(ctx, q, args)
	if err != nil {
		return Result{}, err
	}
	return Result{Record: rec}, nil
}

func (s *SQLStore) delete(ctx context.Context, t Table, m Mutation) (Result, error) {
	if len(m.Selector) == 0 {
		return Result{}, ErrEmptyMutation
	}
	if err := s.schema.checkFields(m.Kind, m.Selector); err != nil {
		return Result{}, err
	}

	where, args := whereClause(m.Selector, 1)
	q := fmt.Sprintf("DELETE FROM %s WHERE %s RETURNING %s", t.Name, where, strings.Join(t.Columns, ", "))
	rec, err := s.queryOne(ctx, q, args)
	if err != nil {
		return Result{}, err
	}
	return Result{Record: rec}, nil
}

func (s *SQLStore) createMany(ctx context.Context, t Table, m Mutation) (Result, error) {
	if len(m.Batch) == 0 {
		return Result{}, ErrEmptyMutation
	}

	var affected int64
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		for _, row := range m.Batch {
			data, err := s.prepareInsert(t, m.Kind, row)
			if err != nil {
				return err
			}
			fields := sortedFields(data)
			placeholders := make([]string, len(fields))
			args := make([]any, len(fields))
			for i, f := range fields {
				placeholders[i] = fmt.Sprintf("$%d", i+1)
				args[i] = data[f]
			}
			q := fmt.Sprintf(
				"INSERT INTO %s (%s) VALUES (%s)",
				t.Name, strings.Join(fields, ", "), strings.Join(placeholders, ", "),
			)
			if _, err := tx.ExecContext(ctx, q, args...); err != nil {
				return err
			}
			affected++
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Affected: affected}, nil
}

func (s *SQLStore) updateMany(ctx context.Context, t Table, m Mutation) (Result, error) {
	if len(m.Data) == 0 {
		return Result{}, ErrEmptyMutation
	}
	if err := s.schema.checkFields(m.Kind, m.Selector); err != nil {
		return Result{}, err
	}
	data := m.Data.Clone()
	if t.hasColumn("updated_at") {
		data["updated_at"] = time.Now().UTC()
	}
	if err := s.schema.checkFields(m.Kind, data); err != nil {
		return Result{}, err
	}

	setFields := sortedFields(data)
	sets := make([]string, len(setFields))
	args := make([]any, 0, len(setFields)+len(m.Selector))
	for i, f := range setFields {
		sets[i] = fmt.Sprintf("%s = $%d", f, i+1)
		args = append(args, data[f])
	}

	q := fmt.Sprintf("UPDATE %s SET %s", t.Name, strings.Join(sets, ", "))
	if len(m.Selector) > 0 {
		where, whereArgs := whereClause(m.Selector, len(setFields)+1)
		q += " WHERE " + where
		args = append(args, whereArgs...)
	}

	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return Result{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Result{}, err
	}
	return Result{Affected: n}, nil
}

func (s *SQLStore) deleteMany(ctx context.Context, t Table, m Mutation) (Result, error) {
	if err := s.schema.checkFields(m.Kind, m.Selector); err != nil {
		return Result{}, err
	}

	q := fmt.Sprintf("DELETE FROM %s", t.Name)
	var args []any
	if len(m.Selector) > 0 {
		where, whereArgs := whereClause(m.Selector, 1)
		q += " WHERE " + where
		args = whereArgs
	}

	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return Result{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Result{}, err
	}
	return Result{Affected: n}, nil
}

func (s *SQLStore) findOne(ctx context.Context, t Table, m Mutation) (Result, error) {
	if len(m.Selector) == 0 {
		return Result{}, ErrEmptyMutation
	}
	if err := s.schema.checkFields(m.Kind, m.Selector); err != nil {
		return Result{}, err
	}

	where, args := whereClause(m.Selector, 1)
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s LIMIT 1", strings.Join(t.Columns, ", "), t.Name, where)
	rec, err := s.queryOne(ctx, q, args)
	if err != nil {
		return Result{}, err
	}
	return Result{Record: rec}, nil
}

func (s *SQLStore) findMany(ctx context.Context, t Table, m Mutation) (Result, error) {
	if err := s.schema.checkFields(m.Kind, m.Selector); err != nil {
		return Result{}, err
	}

	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(t.Columns, ", "), t.Name)
	var args []any
	if len(m.Selector) > 0 {
		where, whereArgs := whereClause(m.Selector, 1)
		q += " WHERE " + where
		args = whereArgs
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return Result{}, err
	}
	defer rows.Close()
	recs, err := scanRecords(rows)
	if err != nil {
		return Result{}, err
	}
	return Result{Rows: recs}, nil
}

// prepareInsert validates the submitted fields and stamps id/timestamps.
func (s *SQLStore) prepareInsert(t Table, kind string, data Record) (Record, error) {
	if len(data) == 0 {
		return nil, ErrEmptyMutation
	}
	out := data.Clone()
	if id, _ := out["id"].(string); id == "" {
		out["id"] = uuid.NewString()
	}
	now := time.Now().UTC()
	if t.hasColumn("created_at") {
		if _, ok := out["created_at"]; !ok {
			out["created_at"] = now
		}
	}
	if t.hasColumn("updated_at") {
		if _, ok := out["updated_at"]; !ok {
			out["updated_at"] = now
		}
	}
	if err := s.schema.checkFields(kind, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLStore) queryOne(ctx context.Context, q string, args []any) (Record, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	recs, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return recs[0], nil
}

func whereClause(selector Record, start int) (string, []any) {
	fields := sortedFields(selector)
	conds := make([]string, len(fields))
	args := make([]any, len(fields))
	for i, f := range fields {
		conds[i] = fmt.Sprintf("%s = $%d", f, start+i)
		args[i] = selector[f]
	}
	return strings.Join(conds, " AND "), args
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []Record
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(Record, len(cols))
		for i, c := range cols {
			rec[c] = normalizeValue(vals[i])
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// normalizeValue keeps Record values comparable across backends: the pgx
// stdlib driver hands text columns back as []byte.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
