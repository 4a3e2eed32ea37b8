// Package store persists the inverted index and the content store in
// PostgreSQL. Every term partition is its own table keyed by term, so a
// partition can be truncated, repopulated and fetched independently.
//
//	CREATE TABLE postings_<id> (
//	    term TEXT PRIMARY KEY,
//	    data JSONB NOT NULL   -- doc_id -> {tf, positions, total_terms}
//	);
//	CREATE TABLE documents (
//	    doc_id      TEXT PRIMARY KEY,
//	    title       TEXT NOT NULL,
//	    url         TEXT NOT NULL,
//	    content     TEXT NOT NULL,
//	    total_terms INTEGER NOT NULL
//	);
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/termshard/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/termshard/pkg/postgres"
	"github.com/lib/pq"
)

const documentsTable = "documents"

// Store reads and rebuilds partitions in PostgreSQL.
type Store struct {
	db        *postgres.Client
	batchSize int
	logger    *slog.Logger
}

// New returns a Store writing batchSize rows per insert statement.
func New(db *postgres.Client, batchSize int) *Store {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Store{
		db:        db,
		batchSize: batchSize,
		logger:    slog.Default().With("component", "store"),
	}
}

// EnsureSchema creates every partition table and the documents table.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, id := range shard.All() {
		table := pq.QuoteIdentifier(shard.TableName(id))
		stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (term TEXT PRIMARY KEY, data JSONB NOT NULL)`, table)
		if _, err := s.db.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating table for shard %s: %w", id, err)
		}
	}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		doc_id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		url TEXT NOT NULL,
		content TEXT NOT NULL,
		total_terms INTEGER NOT NULL
	)`, pq.QuoteIdentifier(documentsTable))
	if _, err := s.db.DB.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("creating documents table: %w", err)
	}
	return nil
}

// RebuildShard truncates partition id and repopulates it with entries in
// batches, each committed on its own. A failed batch aborts the rebuild and
// leaves the rows of earlier batches in place.
func (s *Store) RebuildShard(ctx context.Context, id string, entries []index.TermEntry) error {
	if err := shard.Validate(id); err != nil {
		return err
	}
	start := time.Now()
	table := pq.QuoteIdentifier(shard.TableName(id))
	if _, err := s.db.DB.ExecContext(ctx, "TRUNCATE "+table); err != nil {
		return fmt.Errorf("truncating shard %s: %w", id, err)
	}
	for lo := 0; lo < len(entries); lo += s.batchSize {
		hi := min(lo+s.batchSize, len(entries))
		if err := s.insertTerms(ctx, table, entries[lo:hi]); err != nil {
			return fmt.Errorf("shard %s batch at row %d: %w", id, lo, err)
		}
	}
	s.logger.Info("shard rebuilt", "shard", id, "terms", len(entries), "duration", time.Since(start))
	return nil
}

func (s *Store) insertTerms(ctx context.Context, table string, rows []index.TermEntry) error {
	args := make([]any, 0, len(rows)*2)
	values := make([]string, 0, len(rows))
	for i, row := range rows {
		data, err := json.Marshal(row.Postings)
		if err != nil {
			return fmt.Errorf("marshaling postings for %q: %w", row.Term, err)
		}
		values = append(values, fmt.Sprintf("($%d, $%d)", i*2+1, i*2+2))
		args = append(args, row.Term, string(data))
	}
	stmt := fmt.Sprintf("INSERT INTO %s (term, data) VALUES %s", table, strings.Join(values, ", "))
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, stmt, args...)
		return err
	})
}

// ReplaceDocuments truncates the content store and loads docs in batches.
func (s *Store) ReplaceDocuments(ctx context.Context, docs []ingestion.Document) error {
	table := pq.QuoteIdentifier(documentsTable)
	if _, err := s.db.DB.ExecContext(ctx, "TRUNCATE "+table); err != nil {
		return fmt.Errorf("truncating documents: %w", err)
	}
	return s.AppendDocuments(ctx, docs)
}

// AppendDocuments inserts docs in batches, each committed on its own.
func (s *Store) AppendDocuments(ctx context.Context, docs []ingestion.Document) error {
	table := pq.QuoteIdentifier(documentsTable)
	for lo := 0; lo < len(docs); lo += s.batchSize {
		hi := min(lo+s.batchSize, len(docs))
		batch := docs[lo:hi]
		args := make([]any, 0, len(batch)*5)
		values := make([]string, 0, len(batch))
		for i, d := range batch {
			n := i * 5
			values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5))
			args = append(args, d.DocID, d.Title, d.URL, d.Content, d.TotalTerms)
		}
		stmt := fmt.Sprintf("INSERT INTO %s (doc_id, title, url, content, total_terms) VALUES %s",
			table, strings.Join(values, ", "))
		err := s.db.InTx(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, stmt, args...)
			return err
		})
		if err != nil {
			return fmt.Errorf("documents batch at row %d: %w", lo, err)
		}
	}
	return nil
}

// UpdateTotalTerms records each document's normalized length after a build.
func (s *Store) UpdateTotalTerms(ctx context.Context, docs []ingestion.Document) error {
	stmt := fmt.Sprintf("UPDATE %s SET total_terms = $2 WHERE doc_id = $1", pq.QuoteIdentifier(documentsTable))
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		prepared, err := tx.PrepareContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("preparing update: %w", err)
		}
		defer prepared.Close()
		for _, d := range docs {
			if _, err := prepared.ExecContext(ctx, d.DocID, d.TotalTerms); err != nil {
				return fmt.Errorf("updating %s: %w", d.DocID, err)
			}
		}
		return nil
	})
}

// ScanDocuments pages through the content store in doc_id order, calling fn
// once per page of at most pageSize records.
func (s *Store) ScanDocuments(ctx context.Context, pageSize int, fn func([]ingestion.Record) error) error {
	if pageSize <= 0 {
		pageSize = s.batchSize
	}
	stmt := fmt.Sprintf(`SELECT doc_id, title, url, content FROM %s WHERE doc_id > $1 ORDER BY doc_id LIMIT $2`,
		pq.QuoteIdentifier(documentsTable))
	after := ""
	for {
		rows, err := s.db.DB.QueryContext(ctx, stmt, after, pageSize)
		if err != nil {
			return fmt.Errorf("scanning documents after %q: %w", after, err)
		}
		page := make([]ingestion.Record, 0, pageSize)
		for rows.Next() {
			var r ingestion.Record
			if err := rows.Scan(&r.DocID, &r.Title, &r.URL, &r.Content); err != nil {
				rows.Close()
				return fmt.Errorf("scanning document row: %w", err)
			}
			page = append(page, r)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return fmt.Errorf("iterating documents: %w", err)
		}
		if len(page) == 0 {
			return nil
		}
		if err := fn(page); err != nil {
			return err
		}
		after = page[len(page)-1].DocID
		if len(page) < pageSize {
			return nil
		}
	}
}

// FetchShard reads every row of partition id.
func (s *Store) FetchShard(ctx context.Context, id string) ([]index.TermEntry, error) {
	if err := shard.Validate(id); err != nil {
		return nil, err
	}
	stmt := fmt.Sprintf("SELECT term, data FROM %s ORDER BY term", pq.QuoteIdentifier(shard.TableName(id)))
	rows, err := s.db.DB.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("querying shard %s: %w", id, err)
	}
	defer rows.Close()

	var entries []index.TermEntry
	for rows.Next() {
		var term string
		var data []byte
		if err := rows.Scan(&term, &data); err != nil {
			return nil, fmt.Errorf("scanning shard %s row: %w", id, err)
		}
		var postings index.PostingMap
		if err := json.Unmarshal(data, &postings); err != nil {
			return nil, fmt.Errorf("decoding postings for %q: %w", term, err)
		}
		entries = append(entries, index.TermEntry{Term: term, Postings: postings})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating shard %s: %w", id, err)
	}
	return entries, nil
}

// FetchContent reads the whole content store.
func (s *Store) FetchContent(ctx context.Context) ([]ingestion.Document, error) {
	stmt := fmt.Sprintf("SELECT doc_id, title, url, content, total_terms FROM %s ORDER BY doc_id",
		pq.QuoteIdentifier(documentsTable))
	rows, err := s.db.DB.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []ingestion.Document
	for rows.Next() {
		var d ingestion.Document
		if err := rows.Scan(&d.DocID, &d.Title, &d.URL, &d.Content, &d.TotalTerms); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// CountTerms returns the number of rows in partition id.
func (s *Store) CountTerms(ctx context.Context, id string) (int, error) {
	if err := shard.Validate(id); err != nil {
		return 0, err
	}
	var n int
	stmt := fmt.Sprintf("SELECT COUNT(*) FROM %s", pq.QuoteIdentifier(shard.TableName(id)))
	if err := s.db.DB.QueryRowContext(ctx, stmt).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting shard %s: %w", id, err)
	}
	return n, nil
}
