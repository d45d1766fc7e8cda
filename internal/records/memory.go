package records

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Executor + Snapshotter for tests and early
// development. It mirrors SQLStore semantics on a per-kind map of rows.
type MemoryStore struct {
	mu     sync.Mutex
	schema Schema
	rows   map[string][]Record

	// ForcedErr, when set, fails every Execute call. Test hook for
	// mutation-error propagation.
	ForcedErr error

	// SnapshotErr, when set, fails every Snapshot call. Test hook for the
	// audit before-image failure path.
	SnapshotErr error
}

func NewMemoryStore(schema Schema) *MemoryStore {
	return &MemoryStore{schema: schema, rows: make(map[string][]Record)}
}

func (s *MemoryStore) Execute(_ context.Context, m Mutation) (Result, error) {
	if s.ForcedErr != nil {
		return Result{}, s.ForcedErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.schema.Table(m.Kind)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownKind, m.Kind)
	}
	if err := s.schema.checkFields(m.Kind, m.Selector); err != nil {
		return Result{}, err
	}

	switch m.Op {
	case OpCreate:
		if len(m.Data) == 0 {
			return Result{}, ErrEmptyMutation
		}
		row, err := s.stamp(t, m.Kind, m.Data)
		if err != nil {
			return Result{}, err
		}
		s.rows[m.Kind] = append(s.rows[m.Kind], row)
		return Result{Record: row.Clone()}, nil

	case OpCreateMany:
		if len(m.Batch) == 0 {
			return Result{}, ErrEmptyMutation
		}
		var n int64
		for _, data := range m.Batch {
			row, err := s.stamp(t, m.Kind, data)
			if err != nil {
				return Result{}, err
			}
			s.rows[m.Kind] = append(s.rows[m.Kind], row)
			n++
		}
		return Result{Affected: n}, nil

	case OpUpdate:
		if len(m.Selector) == 0 || len(m.Data) == 0 {
			return Result{}, ErrEmptyMutation
		}
		if err := s.schema.checkFields(m.Kind, m.Data); err != nil {
			return Result{}, err
		}
		for _, row := range s.rows[m.Kind] {
			if matches(row, m.Selector) {
				for f, v := range m.Data {
					row[f] = v
				}
				if t.hasColumn("updated_at") {
					row["updated_at"] = time.Now().UTC()
				}
				return Result{Record: row.Clone()}, nil
			}
		}
		return Result{}, ErrNotFound

	case OpUpdateMany:
		if len(m.Data) == 0 {
			return Result{}, ErrEmptyMutation
		}
		if err := s.schema.checkFields(m.Kind, m.Data); err != nil {
			return Result{}, err
		}
		var n int64
		for _, row := range s.rows[m.Kind] {
			if matches(row, m.Selector) {
				for f, v := range m.Data {
					row[f] = v
				}
				n++
			}
		}
		return Result{Affected: n}, nil

	case OpDelete:
		if len(m.Selector) == 0 {
			return Result{}, ErrEmptyMutation
		}
		for i, row := range s.rows[m.Kind] {
			if matches(row, m.Selector) {
				s.rows[m.Kind] = append(s.rows[m.Kind][:i], s.rows[m.Kind][i+1:]...)
				return Result{Record: row}, nil
			}
		}
		return Result{}, ErrNotFound

	case OpDeleteMany:
		kept := s.rows[m.Kind][:0]
		var n int64
		for _, row := range s.rows[m.Kind] {
			if matches(row, m.Selector) {
				n++
				continue
			}
			kept = append(kept, row)
		}
		s.rows[m.Kind] = kept
		return Result{Affected: n}, nil

	case OpFindOne:
		if len(m.Selector) == 0 {
			return Result{}, ErrEmptyMutation
		}
		for _, row := range s.rows[m.Kind] {
			if matches(row, m.Selector) {
				return Result{Record: row.Clone()}, nil
			}
		}
		return Result{}, ErrNotFound

	case OpFindMany:
		var out []Record
		for _, row := range s.rows[m.Kind] {
			if matches(row, m.Selector) {
				out = append(out, row.Clone())
			}
		}
		return Result{Rows: out}, nil

	default:
		return Result{}, fmt.Errorf("records: unsupported op %q", m.Op.WireName())
	}
}

func (s *MemoryStore) Snapshot(_ context.Context, kind string, selector Record) (Record, bool, error) {
	if s.SnapshotErr != nil {
		return nil, false, s.SnapshotErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schema.Table(kind); !ok {
		return nil, false, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if len(selector) == 0 {
		return nil, false, ErrEmptyMutation
	}
	for _, row := range s.rows[kind] {
		if matches(row, selector) {
			return row.Clone(), true, nil
		}
	}
	return nil, false, nil
}

// Seed inserts rows directly, bypassing stamping. Test helper.
func (s *MemoryStore) Seed(kind string, rows ...Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.rows[kind] = append(s.rows[kind], r.Clone())
	}
}

// Count reports stored rows for a kind. Test helper.
func (s *MemoryStore) Count(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows[kind])
}

func (s *MemoryStore) stamp(t Table, kind string, data Record) (Record, error) {
	row := data.Clone()
	if id, _ := row["id"].(string); id == "" {
		row["id"] = uuid.NewString()
	}
	now := time.Now().UTC()
	if t.hasColumn("created_at") {
		if _, ok := row["created_at"]; !ok {
			row["created_at"] = now
		}
	}
	if t.hasColumn("updated_at") {
		if _, ok := row["updated_at"]; !ok {
			row["updated_at"] = now
		}
	}
	if err := s.schema.checkFields(kind, row); err != nil {
		return nil, err
	}
	return row, nil
}

func matches(row, selector Record) bool {
	for f, want := range selector {
		if row[f] != want {
			return false
		}
	}
	return true
}
