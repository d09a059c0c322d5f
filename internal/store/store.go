// Package store owns the in-memory tables of one session: named tables, the
// active table, cell and range access, header handling, the operation log and
// per-table undo/redo.
//
// A Store is a single-writer structure. Callers serialize access; the
// operation catalog does so for tool calls.
package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vinodismyname/sheetagent/config"
	"github.com/vinodismyname/sheetagent/internal/history"
	"github.com/vinodismyname/sheetagent/internal/table"
	"github.com/vinodismyname/sheetagent/internal/workbooks"
	"github.com/vinodismyname/sheetagent/pkg/cellref"
)

var (
	// ErrTableNotFound indicates an unknown table name.
	ErrTableNotFound = errors.New("store: table not found")
	// ErrInvalidReference indicates a malformed or out-of-bounds cell/range reference.
	ErrInvalidReference = errors.New("store: invalid reference")
	// ErrShapeMismatch indicates a block whose shape differs from the target range.
	ErrShapeMismatch = errors.New("store: shape mismatch")
	// ErrHeaderRow indicates a header row index outside the table.
	ErrHeaderRow = errors.New("store: header row out of range")
	// ErrTableLimit indicates the configured table cap was reached.
	ErrTableLimit = errors.New("store: table limit reached")
)

// Options bounds a Store. Zero values fall back to config defaults.
type Options struct {
	HistoryLimit  int
	SnapshotLimit int
	MaxTables     int
	Clock         func() time.Time
}

// Store is the single source of truth for the tables of a session.
type Store struct {
	logger zerolog.Logger
	opts   Options

	tables   map[string]*table.Table
	meta     map[string]*Metadata
	versions map[string]uint64
	order    []string
	active   string
	seq      uint64

	log   *history.Log
	snaps *history.Stacks

	lastSaved string
}

// New constructs an empty Store.
func New(logger zerolog.Logger, opts Options) *Store {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = config.DefaultHistoryLimit
	}
	if opts.SnapshotLimit <= 0 {
		opts.SnapshotLimit = config.DefaultSnapshotLimit
	}
	if opts.MaxTables <= 0 {
		opts.MaxTables = config.DefaultMaxTables
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Store{
		logger:   logger.With().Str("component", "store").Logger(),
		opts:     opts,
		tables:   map[string]*table.Table{},
		meta:     map[string]*Metadata{},
		versions: map[string]uint64{},
		log:      history.NewLog(opts.HistoryLimit),
		snaps:    history.NewStacks(opts.SnapshotLimit),
	}
}

// LoadOptions describes a workbook source.
type LoadOptions struct {
	// Name of the new table; defaults to the stem of FilePath, then "table".
	Name string
	// Sheet to read; defaults to the first sheet.
	Sheet string
	// FilePath is recorded in metadata and used to derive the name.
	FilePath string
	// Size is the source size in bytes, when known.
	Size int64
}

// Load reads one sheet of a workbook into a new table. The first loaded table
// becomes active. It returns a *workbooks.FormatError when the bytes are not a
// workbook; any other failure is logged and reported as false.
func (s *Store) Load(src io.Reader, opts LoadOptions) (bool, error) {
	name := opts.Name
	if name == "" {
		name = NameFromPath(opts.FilePath)
	}
	params := map[string]any{"name": name, "sheet": opts.Sheet, "file_path": opts.FilePath}

	dec, err := workbooks.Decode(src, opts.Sheet)
	if err != nil {
		s.recordLoad(name, params, err)
		var fe *workbooks.FormatError
		if errors.As(err, &fe) {
			return false, fe
		}
		s.logger.Warn().Err(err).Str("table", name).Msg("load failed")
		return false, nil
	}
	if _, exists := s.tables[name]; !exists && len(s.tables) >= s.opts.MaxTables {
		s.recordLoad(name, params, ErrTableLimit)
		s.logger.Warn().Str("table", name).Int("max_tables", s.opts.MaxTables).Msg("load rejected")
		return false, nil
	}

	s.snaps.Drop(name)
	now := s.opts.Clock()
	meta := buildMetadata(name, dec.Table, nil, now)
	meta.FilePath = opts.FilePath
	meta.SheetName = dec.Sheet
	meta.ByteSize = opts.Size
	s.install(name, dec.Table, meta)

	if s.active == "" {
		s.active = name
	}
	s.Snapshot(name)
	s.recordLoad(name, params, nil)
	s.logger.Info().Str("table", name).Str("sheet", dec.Sheet).Int("rows", dec.Table.Len()).Int("columns", dec.Table.Width()).Msg("table loaded")
	return true, nil
}

// LoadFile loads a workbook from disk. Path validation is the caller's
// concern.
func (s *Store) LoadFile(path, name, sheet string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("open failed")
		s.recordLoad(name, map[string]any{"file_path": path}, err)
		return false, nil
	}
	defer func() { _ = f.Close() }()
	var size int64
	if st, err := f.Stat(); err == nil {
		size = st.Size()
	}
	return s.Load(f, LoadOptions{Name: name, Sheet: sheet, FilePath: path, Size: size})
}

func (s *Store) recordLoad(name string, params map[string]any, err error) {
	rec := history.Record{
		Type:        history.OpLoad,
		Table:       name,
		Description: "load table " + name,
		Parameters:  params,
		Success:     err == nil,
	}
	if err != nil {
		rec.Error = err.Error()
	} else if t, ok := s.tables[name]; ok {
		rec.ResultSummary = fmt.Sprintf("%d rows x %d columns", t.Len(), t.Width())
	}
	s.log.Append(rec)
}

// NameFromPath derives a table name from a workbook path: the file stem, or
// "table" when there is none.
func NameFromPath(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if path == "" || stem == "" || stem == "." {
		return "table"
	}
	return stem
}

// install stores t under name with fresh metadata and a new version.
func (s *Store) install(name string, t *table.Table, meta *Metadata) {
	if _, exists := s.tables[name]; !exists {
		s.order = append(s.order, name)
	}
	s.tables[name] = t
	meta.HeaderRow = t.HeaderRow
	s.meta[name] = meta
	s.seq++
	s.versions[name] = s.seq
}

// Get returns a copy of the named table.
func (s *Store) Get(name string) (*table.Table, bool) {
	t, ok := s.tables[name]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// Has reports whether name is a known table.
func (s *Store) Has(name string) bool {
	_, ok := s.tables[name]
	return ok
}

// Active returns a copy of the active table and its name.
func (s *Store) Active() (*table.Table, string, bool) {
	if s.active == "" {
		return nil, "", false
	}
	t, ok := s.Get(s.active)
	return t, s.active, ok
}

// ActiveName returns the active table name, or "" when none.
func (s *Store) ActiveName() string { return s.active }

// SetActive selects a known table; unknown names leave state unchanged.
func (s *Store) SetActive(name string) bool {
	if _, ok := s.tables[name]; !ok {
		return false
	}
	s.active = name
	return true
}

// Names lists tables in load order.
func (s *Store) Names() []string {
	return append([]string(nil), s.order...)
}

// Remove deletes a table with its metadata and snapshots. When it was active,
// the first remaining table becomes active.
func (s *Store) Remove(name string) bool {
	if _, ok := s.tables[name]; !ok {
		return false
	}
	delete(s.tables, name)
	delete(s.meta, name)
	delete(s.versions, name)
	s.snaps.Drop(name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	if s.active == name {
		s.active = ""
		if len(s.order) > 0 {
			s.active = s.order[0]
		}
	}
	s.logger.Info().Str("table", name).Str("active", s.active).Msg("table removed")
	return true
}

// Put stores t under name. A new name is created with an initial undo point;
// an existing table is replaced through Mutate so the replacement can be
// undone.
func (s *Store) Put(name string, t *table.Table) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if _, exists := s.tables[name]; exists {
		return s.Mutate(name, func(work *table.Table) error {
			*work = *t.Clone()
			return nil
		})
	}
	if len(s.tables) >= s.opts.MaxTables {
		return fmt.Errorf("%w (max=%d)", ErrTableLimit, s.opts.MaxTables)
	}
	s.install(name, t.Clone(), buildMetadata(name, t, nil, s.opts.Clock()))
	if s.active == "" {
		s.active = name
	}
	s.Snapshot(name)
	return nil
}

// Metadata returns a copy of the metadata of name.
func (s *Store) Metadata(name string) (Metadata, bool) {
	m, ok := s.meta[name]
	if !ok {
		return Metadata{}, false
	}
	cp := *m
	cp.Columns = append([]string(nil), m.Columns...)
	cp.ColumnTypes = make(map[string]string, len(m.ColumnTypes))
	for k, v := range m.ColumnTypes {
		cp.ColumnTypes[k] = v
	}
	return cp, true
}

// Info returns metadata enriched with missing-value counts and undo state.
func (s *Store) Info(name string) (*Info, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTableNotFound, name)
	}
	m, _ := s.Metadata(name)
	return &Info{
		Metadata:      m,
		MissingValues: t.MissingCounts(),
		Version:       s.versions[name],
		CanUndo:       s.CanUndo(name),
		CanRedo:       s.CanRedo(name),
	}, nil
}

// Version returns the mutation version of name. It changes on every write.
func (s *Store) Version(name string) (uint64, bool) {
	v, ok := s.versions[name]
	return v, ok
}

// touch records an in-place change of name: new version, fresh metadata.
func (s *Store) touch(name string) {
	s.seq++
	s.versions[name] = s.seq
	s.refreshMetadata(name)
}

func (s *Store) refreshMetadata(name string) {
	t := s.tables[name]
	m := buildMetadata(name, t, s.meta[name], s.opts.Clock())
	m.HeaderRow = t.HeaderRow
	s.meta[name] = m
}

// History exposes the operation log.
func (s *Store) History() *history.Log { return s.log }

// Record appends an operation record to the log.
func (s *Store) Record(r history.Record) history.Record { return s.log.Append(r) }

// LastSavedFilename returns the base name of the most recent SaveFile.
func (s *Store) LastSavedFilename() string { return s.lastSaved }

// ExportBytes serializes name to xlsx in memory.
func (s *Store) ExportBytes(name string) ([]byte, bool) {
	t, ok := s.tables[name]
	if !ok {
		return nil, false
	}
	data, err := workbooks.EncodeBytes(t, s.sheetFor(name))
	if err != nil {
		s.logger.Warn().Err(err).Str("table", name).Msg("export failed")
		return nil, false
	}
	return data, true
}

// SaveFile writes name to path as xlsx and remembers the file name.
func (s *Store) SaveFile(name, path string) (string, error) {
	t, ok := s.tables[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrTableNotFound, name)
	}
	if err := workbooks.WriteFile(t, s.sheetFor(name), path); err != nil {
		return "", err
	}
	s.lastSaved = filepath.Base(path)
	s.logger.Info().Str("table", name).Str("path", path).Msg("table saved")
	return s.lastSaved, nil
}

func (s *Store) sheetFor(name string) string {
	if m, ok := s.meta[name]; ok && m.SheetName != "" {
		return m.SheetName
	}
	return workbooks.DefaultSheet
}

func (s *Store) lookup(name string) (*table.Table, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTableNotFound, name)
	}
	return t, nil
}

// Cell reads one value. References address data rows ("A1" is the first row
// below the header).
func (s *Store) Cell(name, ref string) (any, error) {
	t, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	c, err := cell(t, ref)
	if err != nil {
		return nil, err
	}
	return t.Rows[c.Row][c.Col], nil
}

// SetCell writes one value and refreshes metadata. It does not snapshot; the
// next Mutate or Undo captures the change first.
func (s *Store) SetCell(name, ref string, value any) error {
	t, err := s.lookup(name)
	if err != nil {
		return err
	}
	c, err := cell(t, ref)
	if err != nil {
		return err
	}
	t.Rows[c.Row][c.Col] = table.Normalize(value)
	s.touch(name)
	return nil
}

// Range reads a rectangular block.
func (s *Store) Range(name, ref string) ([][]any, error) {
	t, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	r, err := area(t, ref)
	if err != nil {
		return nil, err
	}
	out := make([][]any, 0, r.Rows())
	for i := r.Start.Row; i <= r.End.Row; i++ {
		out = append(out, append([]any(nil), t.Rows[i][r.Start.Col:r.End.Col+1]...))
	}
	return out, nil
}

// SetRange writes a block whose shape must match the range exactly. Like
// SetCell it does not snapshot.
func (s *Store) SetRange(name, ref string, values [][]any) error {
	t, err := s.lookup(name)
	if err != nil {
		return err
	}
	if err := writeBlock(t, ref, values); err != nil {
		return err
	}
	s.touch(name)
	return nil
}

// WriteRange is SetRange through Mutate: the write gets its own undo point.
func (s *Store) WriteRange(name, ref string, values [][]any) error {
	return s.Mutate(name, func(t *table.Table) error {
		return writeBlock(t, ref, values)
	})
}

func writeBlock(t *table.Table, ref string, values [][]any) error {
	r, err := area(t, ref)
	if err != nil {
		return err
	}
	if len(values) != r.Rows() {
		return fmt.Errorf("%w: range %s has %d rows, got %d", ErrShapeMismatch, ref, r.Rows(), len(values))
	}
	for i, row := range values {
		if len(row) != r.Cols() {
			return fmt.Errorf("%w: range %s has %d columns, row %d has %d", ErrShapeMismatch, ref, r.Cols(), i, len(row))
		}
	}
	for i, row := range values {
		for j, v := range row {
			t.Rows[r.Start.Row+i][r.Start.Col+j] = table.Normalize(v)
		}
	}
	return nil
}

func cell(t *table.Table, ref string) (cellref.Cell, error) {
	c, err := cellref.Parse(ref)
	if err != nil {
		return cellref.Cell{}, fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	if !cellref.InBounds(c, t.Len(), t.Width()) {
		return cellref.Cell{}, fmt.Errorf("%w: %s outside %d rows x %d columns", ErrInvalidReference, ref, t.Len(), t.Width())
	}
	return c, nil
}

func area(t *table.Table, ref string) (cellref.Range, error) {
	r, err := cellref.ParseArea(ref)
	if err != nil {
		return cellref.Range{}, fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	if !cellref.RangeInBounds(r, t.Len(), t.Width()) {
		return cellref.Range{}, fmt.Errorf("%w: %s outside %d rows x %d columns", ErrInvalidReference, ref, t.Len(), t.Width())
	}
	return r, nil
}
