package sheetstore

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-memory Store suitable for tests and early development. It
// mirrors the backend's observable semantics: header-defined tables, string
// cells, 1-based physical positions, and row shifting on delete.
type Memory struct {
	mu     sync.RWMutex
	tables map[string]*memoryTable
}

type memoryTable struct {
	header []string
	rows   [][]string
}

// NewMemory constructs an empty Memory store.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string]*memoryTable)}
}

// Seed installs a table with the given header and rows, replacing any
// previous contents.
func (m *Memory) Seed(table string, header []string, rows [][]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([][]string, 0, len(rows))
	for _, row := range rows {
		copied = append(copied, append([]string(nil), row...))
	}
	m.tables[table] = &memoryTable{header: append([]string(nil), header...), rows: copied}
}

func (m *Memory) ReadAll(_ context.Context, table string) (Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tables[table]
	if !ok {
		return Table{}, fmt.Errorf("%w: table %s not found", ErrUnavailable, table)
	}

	rows := make([][]string, 0, len(t.rows))
	for _, row := range t.rows {
		padded := append([]string(nil), row...)
		for len(padded) < len(t.header) {
			padded = append(padded, "")
		}
		rows = append(rows, padded)
	}

	return Table{Name: table, Header: append([]string(nil), t.header...), Rows: rows}, nil
}

func (m *Memory) Append(_ context.Context, table string, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[table]
	if !ok {
		return fmt.Errorf("%w: table %s not found", ErrUnavailable, table)
	}
	for _, row := range rows {
		t.rows = append(t.rows, append([]string(nil), row...))
	}
	return nil
}

func (m *Memory) Update(_ context.Context, table string, pos int, row []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[table]
	if !ok {
		return fmt.Errorf("%w: table %s not found", ErrUnavailable, table)
	}
	idx := pos - 2
	if idx < 0 || idx >= len(t.rows) {
		return fmt.Errorf("update %s: position %d out of range", table, pos)
	}
	t.rows[idx] = append([]string(nil), row...)
	return nil
}

func (m *Memory) Delete(_ context.Context, table string, pos int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[table]
	if !ok {
		return fmt.Errorf("%w: table %s not found", ErrUnavailable, table)
	}
	idx := pos - 2
	if idx < 0 || idx >= len(t.rows) {
		return fmt.Errorf("delete %s: position %d out of range", table, pos)
	}
	t.rows = append(t.rows[:idx], t.rows[idx+1:]...)
	return nil
}

// RowCount reports the number of data rows, for test assertions.
func (m *Memory) RowCount(table string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tables[table]
	if !ok {
		return 0
	}
	return len(t.rows)
}
