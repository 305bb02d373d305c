package spacetraveling

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eringen/spacetraveling/cms"
)

// ErrNotFound is returned when the snapshot holds no such record.
var ErrNotFound = errors.New("spacetraveling: not found")

// Snapshot is a stored backend document plus the local copy of its banner.
type Snapshot struct {
	Document   cms.Document
	BannerPath string // public path of the downloaded banner, or ""
	FetchedAt  time.Time
}

// Store wraps a SQLite database holding the last known copy of every
// document and of the first listing page.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and creates the schema.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS documents (
    uid TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    first_publication_date TEXT,
    data TEXT NOT NULL,
    banner_path TEXT NOT NULL DEFAULT '',
    fetched_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS documents_type_date ON documents (type, first_publication_date);
CREATE TABLE IF NOT EXISTS listing (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    next_page TEXT NOT NULL,
    results TEXT NOT NULL,
    fetched_at TEXT NOT NULL
);
`)
	return err
}

// SaveDocument upserts doc. An existing banner path is kept.
func (s *Store) SaveDocument(doc cms.Document) error {
	if doc.UID == "" {
		return fmt.Errorf("spacetraveling: save document %q: missing uid", doc.ID)
	}
	data := string(doc.Data)
	if data == "" {
		data = "{}"
	}
	_, err := s.db.Exec(`
INSERT INTO documents (uid, type, first_publication_date, data, fetched_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(uid) DO UPDATE SET
    type = excluded.type,
    first_publication_date = excluded.first_publication_date,
    data = excluded.data,
    fetched_at = excluded.fetched_at`,
		doc.UID, doc.Type, nullString(doc.FirstPublicationDate), data, time.Now().UTC().Format(time.RFC3339))
	return err
}

// GetDocument returns the snapshot of uid.
func (s *Store) GetDocument(uid string) (Snapshot, error) {
	row := s.db.QueryRow(`SELECT uid, type, first_publication_date, data, banner_path, fetched_at FROM documents WHERE uid = ?`, uid)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	return snap, err
}

// ListDocuments returns every snapshot of docType, newest first. Documents
// without a publication date come last.
func (s *Store) ListDocuments(docType string) ([]Snapshot, error) {
	rows, err := s.db.Query(`SELECT uid, type, first_publication_date, data, banner_path, fetched_at FROM documents
WHERE type = ? ORDER BY first_publication_date IS NULL, first_publication_date DESC, uid`, docType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// SetBannerPath records the local banner of uid.
func (s *Store) SetBannerPath(uid, path string) error {
	res, err := s.db.Exec(`UPDATE documents SET banner_path = ? WHERE uid = ?`, path, uid)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveListing replaces the stored first listing page.
func (s *Store) SaveListing(page cms.PostPage) error {
	results, err := json.Marshal(page.Results)
	if err != nil {
		return fmt.Errorf("spacetraveling: encode listing: %w", err)
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO listing (id, next_page, results, fetched_at) VALUES (1, ?, ?, ?)`,
		page.NextPage, string(results), time.Now().UTC().Format(time.RFC3339))
	return err
}

// GetListing returns the stored first listing page and when it was fetched.
func (s *Store) GetListing() (cms.PostPage, time.Time, error) {
	var nextPage, results, fetchedAt string
	err := s.db.QueryRow(`SELECT next_page, results, fetched_at FROM listing WHERE id = 1`).Scan(&nextPage, &results, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return cms.PostPage{}, time.Time{}, ErrNotFound
	}
	if err != nil {
		return cms.PostPage{}, time.Time{}, err
	}
	page := cms.PostPage{NextPage: nextPage}
	if err := json.Unmarshal([]byte(results), &page.Results); err != nil {
		return cms.PostPage{}, time.Time{}, fmt.Errorf("spacetraveling: decode listing: %w", err)
	}
	t, _ := time.Parse(time.RFC3339, fetchedAt)
	return page, t, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row rowScanner) (Snapshot, error) {
	var (
		snap      Snapshot
		published sql.NullString
		data      string
		fetchedAt string
	)
	doc := &snap.Document
	if err := row.Scan(&doc.UID, &doc.Type, &published, &data, &snap.BannerPath, &fetchedAt); err != nil {
		return Snapshot{}, err
	}
	if published.Valid {
		v := published.String
		doc.FirstPublicationDate = &v
	}
	doc.Data = json.RawMessage(data)
	snap.FetchedAt, _ = time.Parse(time.RFC3339, fetchedAt)
	return snap, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
