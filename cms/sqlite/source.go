// Package sqlite implements cms.Client on a local SQLite database holding
// CMS documents in the CMS's own JSON form. It backs offline builds and
// local development without network access to the CMS.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eringen/cmsblog/cms"
)

// Source wraps a SQLite database of CMS documents.
type Source struct {
	db *sql.DB
}

// NewSource opens (or creates) the SQLite database at path, ensures the
// data directory exists, and creates the schema.
func NewSource(path string) (*Source, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(1)
	s := &Source{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Source) Close() error {
	return s.db.Close()
}

func (s *Source) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS documents (
    id TEXT NOT NULL,
    ref TEXT NOT NULL DEFAULT '',
    uid TEXT NOT NULL,
    type TEXT NOT NULL,
    first_publication_date TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL,
    PRIMARY KEY (id, ref)
);
CREATE INDEX IF NOT EXISTS documents_type_uid ON documents (type, uid);
`)
	return err
}

// Put upserts doc under ref. The empty ref holds published content; any
// other ref holds preview versions that shadow published ones by id.
func (s *Source) Put(ctx context.Context, ref cms.Ref, doc cms.Document) error {
	if doc.ID == "" || doc.Type == "" {
		return fmt.Errorf("sqlite: put: document needs id and type")
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("sqlite: put %q: %w", doc.ID, err)
	}
	published := ""
	if !doc.FirstPublicationDate.IsZero() {
		published = doc.FirstPublicationDate.UTC().Format(time.RFC3339)
	}
	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO documents (id, ref, uid, type, first_publication_date, body) VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID, string(ref), doc.UID, doc.Type, published, string(body))
	return err
}

// Delete removes the document id stored under ref.
func (s *Source) Delete(ctx context.Context, ref cms.Ref, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ? AND ref = ?`, id, string(ref))
	return err
}

// visible selects the documents seen under a ref: the ref's own rows plus
// published rows it does not shadow.
const visible = `(d.ref = ?1 OR (d.ref = '' AND NOT EXISTS (SELECT 1 FROM documents o WHERE o.id = d.id AND o.ref = ?1)))`

func (s *Source) checkRef(ctx context.Context, ref cms.Ref) error {
	if ref == "" {
		return nil
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE ref = ?`, string(ref)).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return cms.ErrInvalidRef
	}
	return nil
}

var rePredicate = regexp.MustCompile(`^\[at\(([a-zA-Z0-9_.]+),(".*")\)\]$`)

// where translates predicates into SQL conditions. Only equality on
// document.type, document.id and my.<type>.uid is supported.
func where(preds []cms.Predicate) (string, []any, error) {
	var conds []string
	var args []any
	for _, p := range preds {
		m := rePredicate.FindStringSubmatch(string(p))
		if m == nil {
			return "", nil, fmt.Errorf("sqlite: unsupported predicate %s", p)
		}
		value, err := strconv.Unquote(m[2])
		if err != nil {
			return "", nil, fmt.Errorf("sqlite: predicate %s: %w", p, err)
		}
		path := m[1]
		switch {
		case path == "document.type":
			conds = append(conds, "d.type = ?")
			args = append(args, value)
		case path == "document.id":
			conds = append(conds, "d.id = ?")
			args = append(args, value)
		case strings.HasPrefix(path, "my.") && strings.HasSuffix(path, ".uid"):
			typ := strings.TrimSuffix(strings.TrimPrefix(path, "my."), ".uid")
			conds = append(conds, "d.type = ? AND d.uid = ?")
			args = append(args, typ, value)
		default:
			return "", nil, fmt.Errorf("sqlite: unsupported predicate path %q", path)
		}
	}
	if len(conds) == 0 {
		return "", nil, nil
	}
	return " AND " + strings.Join(conds, " AND "), args, nil
}

// orderBy honors document.first_publication_date orderings and defaults
// to newest first.
func orderBy(orderings []string) (string, error) {
	if len(orderings) == 0 {
		return " ORDER BY d.first_publication_date DESC, d.id", nil
	}
	var parts []string
	for _, o := range orderings {
		field, dir, _ := strings.Cut(strings.TrimSpace(o), " ")
		if field != "document.first_publication_date" {
			return "", fmt.Errorf("sqlite: unsupported ordering %q", o)
		}
		switch strings.TrimSpace(dir) {
		case "", "asc":
			parts = append(parts, "d.first_publication_date ASC")
		case "desc":
			parts = append(parts, "d.first_publication_date DESC")
		default:
			return "", fmt.Errorf("sqlite: unsupported ordering %q", o)
		}
	}
	return " ORDER BY " + strings.Join(parts, ", ") + ", d.id", nil
}

// Query implements cms.Client.
func (s *Source) Query(ctx context.Context, preds []cms.Predicate, opts cms.QueryOptions) (cms.Response, error) {
	if err := s.checkRef(ctx, opts.Ref); err != nil {
		return cms.Response{}, fmt.Errorf("query: %w", err)
	}
	cond, args, err := where(preds)
	if err != nil {
		return cms.Response{}, err
	}
	order, err := orderBy(opts.Orderings)
	if err != nil {
		return cms.Response{}, err
	}
	page, size := opts.Page, opts.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}

	base := append([]any{string(opts.Ref)}, args...)
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents d WHERE `+visible+cond, base...).Scan(&total); err != nil {
		return cms.Response{}, fmt.Errorf("query: count: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT d.body FROM documents d WHERE `+visible+cond+order+` LIMIT ? OFFSET ?`,
		append(base, size, (page-1)*size)...)
	if err != nil {
		return cms.Response{}, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var docs []cms.Document
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return cms.Response{}, err
		}
		var doc cms.Document
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			return cms.Response{}, fmt.Errorf("query: decode: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return cms.Response{}, err
	}
	return cms.Response{
		Page:             page,
		ResultsPerPage:   size,
		TotalResultsSize: total,
		TotalPages:       (total + size - 1) / size,
		Results:          docs,
	}, nil
}

// GetByUID implements cms.Client.
func (s *Source) GetByUID(ctx context.Context, typ, uid string, opts cms.QueryOptions) (cms.Document, error) {
	doc, err := s.first(ctx, []cms.Predicate{cms.At("my."+typ+".uid", uid)}, opts)
	if err != nil {
		return cms.Document{}, fmt.Errorf("get %s %q: %w", typ, uid, err)
	}
	return doc, nil
}

// GetByID implements cms.Client.
func (s *Source) GetByID(ctx context.Context, id string, opts cms.QueryOptions) (cms.Document, error) {
	doc, err := s.first(ctx, []cms.Predicate{cms.At("document.id", id)}, opts)
	if err != nil {
		return cms.Document{}, fmt.Errorf("get document %q: %w", id, err)
	}
	return doc, nil
}

func (s *Source) first(ctx context.Context, preds []cms.Predicate, opts cms.QueryOptions) (cms.Document, error) {
	opts.Page, opts.PageSize = 1, 1
	resp, err := s.Query(ctx, preds, opts)
	if err != nil {
		return cms.Document{}, err
	}
	if len(resp.Results) == 0 {
		return cms.Document{}, cms.ErrNotFound
	}
	return resp.Results[0], nil
}

// errEmptyFixture is returned by Import when the input holds no documents.
var errEmptyFixture = errors.New("sqlite: fixture has no documents")
