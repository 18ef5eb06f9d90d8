package store

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"scenefetch/internal/logging"

	"github.com/jszwec/csvutil"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotConnected is returned by operations invoked before Connect.
	ErrNotConnected = errors.New("store: not connected")
	// ErrAlreadyConnected is returned by Connect when a connection is live.
	ErrAlreadyConnected = errors.New("store: already connected")
	// ErrMissingSceneID is returned when inserted metadata carries no scene identifier.
	ErrMissingSceneID = errors.New("store: metadata lacks a scene identifier")
)

// Field is one metadata field as delivered by the catalog service.
type Field struct {
	Name  string
	Value any
}

// SceneLink pairs a scene identifier with its recorded download link.
type SceneLink struct {
	SceneID string
	Link    string
}

// Store persists scene metadata and download completion state in SQLite.
// It is not safe for concurrent use; the download pipeline is sequential.
type Store struct {
	path string
	db   *sql.DB
}

// New returns an unconnected store for the database at path. The file may
// not exist yet; Connect creates it.
func New(path string) *Store {
	return &Store{path: path}
}

// Connect opens the database and verifies it is reachable.
func (s *Store) Connect() error {
	if s.db != nil {
		return ErrAlreadyConnected
	}
	// Pragmas: busy timeout and WAL for better concurrency.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_journal_mode=WAL", s.path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}
	// Conservative limits.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return err
	}
	s.db = db
	return nil
}

// Disconnect closes the database. Calling it on an unconnected store is a no-op.
func (s *Store) Disconnect() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// EnsureSchema creates the scenes table if it does not exist. Idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s.db == nil {
		return ErrNotConnected
	}
	_, err := s.db.ExecContext(ctx, schemaDDL)
	return err
}

// HasSchema reports whether the scenes table exists.
func (s *Store) HasSchema(ctx context.Context) (bool, error) {
	if s.db == nil {
		return false, ErrNotConnected
	}
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'scenes'`).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

var insertSceneSQL = buildInsertSceneSQL()

func buildInsertSceneSQL() string {
	cols := make([]string, 0, len(metadataColumns)+2)
	cols = append(cols, metadataColumns...)
	cols = append(cols, "link", "download_successful")
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return `INSERT OR REPLACE INTO scenes (` + strings.Join(cols, ", ") +
		`) VALUES (` + placeholders + `)`
}

// InsertScene stores one scene's metadata together with its download link,
// flagged as not yet downloaded. Field names are normalized to column names
// and numeric strings are parsed into numbers. Re-inserting a known scene
// replaces the whole row, so its completion flag reverts to false; prune or
// export completed rows first if they must be preserved.
func (s *Store) InsertScene(ctx context.Context, fields []Field, link string) error {
	if s.db == nil {
		return ErrNotConnected
	}

	values := normalizeFields(fields)
	sceneID := sceneIDFrom(values)
	if sceneID == "" {
		return ErrMissingSceneID
	}

	args := make([]any, 0, len(metadataColumns)+2)
	for _, col := range metadataColumns {
		args = append(args, values[col])
	}
	args = append(args, link, false)

	if _, err := s.db.ExecContext(ctx, insertSceneSQL, args...); err != nil {
		logging.LogDBOperation("insert_scene", sceneID, err)
		return fmt.Errorf("insert scene %s: %w", sceneID, err)
	}
	logging.LogSceneInsert(sceneID, link)
	return nil
}

// QueryIncomplete returns identifier and link for every scene not yet
// marked as downloaded.
func (s *Store) QueryIncomplete(ctx context.Context) ([]SceneLink, error) {
	if s.db == nil {
		return nil, ErrNotConnected
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT landsat_scene_identifier, link FROM scenes WHERE download_successful = FALSE`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SceneLink
	for rows.Next() {
		var (
			id   string
			link sql.NullString
		)
		if err := rows.Scan(&id, &link); err != nil {
			return nil, err
		}
		out = append(out, SceneLink{SceneID: id, Link: link.String})
	}
	return out, rows.Err()
}

// Query runs an arbitrary parameterized read against the database and
// returns the raw rows. Escape hatch for reporting; mutations go through
// the typed methods.
func (s *Store) Query(ctx context.Context, query string, args ...any) ([][]any, error) {
	if s.db == nil {
		return nil, ErrNotConnected
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}

// MarkComplete sets the completion flag for the given scene. Marking an
// unknown or already-complete scene is a no-op.
func (s *Store) MarkComplete(ctx context.Context, sceneID string) error {
	if s.db == nil {
		return ErrNotConnected
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE scenes SET download_successful = TRUE WHERE landsat_scene_identifier = ?`, sceneID)
	if err != nil {
		logging.LogDBOperation("mark_complete", sceneID, err)
		return fmt.Errorf("mark scene %s complete: %w", sceneID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		logging.LogMarkComplete(sceneID)
	}
	return nil
}

// PruneCompleted deletes every scene marked as downloaded and returns how
// many rows were removed.
func (s *Store) PruneCompleted(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, ErrNotConnected
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM scenes WHERE download_successful = TRUE`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	logging.LogPrune(n)
	return n, nil
}

// ExportCSV writes the whole scenes table to w, header first, one row per
// scene in table column order.
func (s *Store) ExportCSV(ctx context.Context, w io.Writer) error {
	if s.db == nil {
		return ErrNotConnected
	}
	rows, err := s.db.QueryContext(ctx, `SELECT * FROM scenes`)
	if err != nil {
		return err
	}
	defer rows.Close()

	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	// Header goes out even for an empty table.
	if err := enc.EncodeHeader(SceneRecord{}); err != nil {
		return err
	}
	for rows.Next() {
		var rec SceneRecord
		if err := rows.Scan(rec.scanDest()...); err != nil {
			return err
		}
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// ExportCSVFile is ExportCSV writing to a freshly created file at path.
func (s *Store) ExportCSVFile(ctx context.Context, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := s.ExportCSV(ctx, f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// normalizeFields maps catalog field names to column names (lower-case,
// spaces and slashes become underscores) and parses numeric string values.
func normalizeFields(fields []Field) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		name := strings.ToLower(f.Name)
		name = strings.ReplaceAll(name, " ", "_")
		name = strings.ReplaceAll(name, "/", "_")
		out[name] = coerceValue(f.Value)
	}
	return out
}

// coerceValue parses numeric strings: a decimal point selects a real,
// otherwise an integer is attempted. Everything unparseable stays as-is.
func coerceValue(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return s
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}

func sceneIDFrom(values map[string]any) string {
	switch v := values[sceneIDColumn].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		// A purely numeric identifier would have been coerced.
		return fmt.Sprint(v)
	}
}
