// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

// Package sqlitevec is a single-file local backend on sqlite-vec, for
// browsing exported sets offline. It covers the Store contract except
// neighbor links; filter expressions are limited to attribute equality.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"github.com/tidwall/gjson"

	"github.com/vecscope-dev/vecscope/internal/vecstore"
	vserr "github.com/vecscope-dev/vecscope/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
}

// Compile-time interface check.
var _ vecstore.Store = (*Store)(nil)

// Store implements vecstore.Store backed by SQLite with sqlite-vec. Each
// vector set gets its own vec0 virtual table; a catalog table maps set names
// to table names and dimensionality.
type Store struct {
	db *sql.DB

	mu      sync.Mutex // guards catalog mutation (table creation)
	nowFunc func() time.Time
}

// New opens (or creates) the database at dbPath and initialises the catalog.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, vserr.Wrapf(err, vserr.CodeStoreRequestFailure, "opening sqlite db")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, vserr.Wrapf(err, vserr.CodeStoreRequestFailure, "pinging sqlite db")
	}

	const catalogDDL = `
CREATE TABLE IF NOT EXISTS vector_sets (
	name       TEXT PRIMARY KEY,
	table_name TEXT NOT NULL,
	dims       INTEGER NOT NULL
)`
	if _, err := db.Exec(catalogDDL); err != nil {
		_ = db.Close()
		return nil, vserr.Wrapf(err, vserr.CodeStoreRequestFailure, "creating catalog table")
	}

	const attrDDL = `
CREATE TABLE IF NOT EXISTS element_attributes (
	set_name   TEXT NOT NULL,
	element    TEXT NOT NULL,
	attributes TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (set_name, element)
)`
	if _, err := db.Exec(attrDDL); err != nil {
		_ = db.Close()
		return nil, vserr.Wrapf(err, vserr.CodeStoreRequestFailure, "creating attributes table")
	}

	return &Store{db: db, nowFunc: time.Now}, nil
}

// SetNowFunc overrides the time source (for testing).
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.nowFunc = fn
}

func (s *Store) SimilaritySearch(ctx context.Context, set string, q vecstore.Query) (*vecstore.Result, error) {
	table, dims, err := s.lookupSet(ctx, set)
	if err != nil {
		return nil, err
	}

	anchor := q.Vector
	if q.Element != "" {
		anchor, err = s.elementVector(ctx, table, set, q.Element)
		if err != nil {
			return nil, err
		}
	}
	if len(anchor) == 0 {
		return nil, vserr.New(vserr.CodeSearchQueryInvalid, "query needs a vector or an element", vserr.FieldVectorSet(set))
	}
	if len(anchor) != dims {
		return nil, vserr.New(vserr.CodeSearchDimensionMismatch,
			fmt.Sprintf("query vector has %d dimensions, set expects %d", len(anchor), dims),
			vserr.FieldVectorSet(set))
	}

	blob, err := sqlite_vec.SerializeFloat32(anchor)
	if err != nil {
		return nil, vserr.Wrapf(err, vserr.CodeStoreRequestFailure, "serializing query vector")
	}

	count := q.Count
	if count <= 0 {
		count = 10
	}
	// Over-fetch when a filter will discard rows post-search.
	k := count
	if q.Filter != "" {
		k = count * 4
	}

	query := fmt.Sprintf(`SELECT v.id, v.distance, COALESCE(a.attributes, '')
FROM %s v
LEFT JOIN element_attributes a ON a.set_name = ? AND a.element = v.id
WHERE v.embedding MATCH ? AND k = ?
ORDER BY v.distance`, table)

	started := s.nowFunc()
	rows, err := s.db.QueryContext(ctx, query, set, blob, k)
	if err != nil {
		return nil, vserr.Wrap(err, vserr.CodeStoreRequestFailure, "searching vectors", vserr.FieldVectorSet(set))
	}
	defer func() { _ = rows.Close() }()

	var matches []vecstore.Match
	for rows.Next() {
		var m vecstore.Match
		var attrs string
		if err := rows.Scan(&m.Element, &m.Score, &attrs); err != nil {
			return nil, vserr.Wrap(err, vserr.CodeStoreRequestFailure, "scanning search result")
		}
		if q.Filter != "" && !matchesFilter(attrs, q.Filter) {
			continue
		}
		if q.WithAttributes {
			m.Attributes = attrs
		}
		matches = append(matches, m)
		if len(matches) == count {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, vserr.Wrap(err, vserr.CodeStoreRequestFailure, "iterating search results")
	}
	elapsed := s.nowFunc().Sub(started)

	if q.WithVectors {
		for i := range matches {
			vec, err := s.elementVector(ctx, table, set, matches[i].Element)
			if err != nil {
				return nil, err
			}
			matches[i].Vector = vec
		}
	}

	return &vecstore.Result{
		Matches:          matches,
		ExecutionSeconds: elapsed.Seconds(),
		Command:          fmt.Sprintf("SELECT ... FROM %s WHERE embedding MATCH <%d floats> AND k = %d", table, len(anchor), k),
	}, nil
}

func (s *Store) Cardinality(ctx context.Context, set string) (int64, error) {
	table, _, err := s.lookupSet(ctx, set)
	if err != nil {
		return 0, err
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)).Scan(&n); err != nil {
		return 0, vserr.Wrap(err, vserr.CodeStoreRequestFailure, "counting elements", vserr.FieldVectorSet(set))
	}
	return n, nil
}

func (s *Store) Dimensionality(ctx context.Context, set string) (int, error) {
	_, dims, err := s.lookupSet(ctx, set)
	if err != nil {
		return 0, err
	}
	return dims, nil
}

// Add upserts an element. The set is created on first add, taking its
// dimensionality from the first vector.
func (s *Store) Add(ctx context.Context, set, element string, vector []float32, attributes string) error {
	table, dims, err := s.ensureSet(ctx, set, len(vector))
	if err != nil {
		return err
	}
	if len(vector) != dims {
		return vserr.New(vserr.CodeSearchDimensionMismatch,
			fmt.Sprintf("vector has %d dimensions, set expects %d", len(vector), dims),
			vserr.FieldVectorSet(set), vserr.FieldElement(element))
	}

	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return vserr.Wrapf(err, vserr.CodeStoreRequestFailure, "serializing vector")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return vserr.Wrapf(err, vserr.CodeStoreRequestFailure, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	// vec0 does not support ON CONFLICT; delete first for upsert.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table), element); err != nil {
		return vserr.Wrap(err, vserr.CodeStoreRequestFailure, "deleting existing vector", vserr.FieldElement(element))
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s(id, embedding) VALUES (?, ?)`, table), element, blob); err != nil {
		return vserr.Wrap(err, vserr.CodeStoreRequestFailure, "inserting vector", vserr.FieldElement(element))
	}

	if attributes != "" {
		const attrQ = `INSERT INTO element_attributes(set_name, element, attributes) VALUES (?, ?, ?)
ON CONFLICT(set_name, element) DO UPDATE SET attributes = excluded.attributes`
		if _, err := tx.ExecContext(ctx, attrQ, set, element, attributes); err != nil {
			return vserr.Wrap(err, vserr.CodeStoreRequestFailure, "upserting attributes", vserr.FieldElement(element))
		}
	}

	if err := tx.Commit(); err != nil {
		return vserr.Wrapf(err, vserr.CodeStoreRequestFailure, "committing add")
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, set, element string) error {
	table, _, err := s.lookupSet(ctx, set)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return vserr.Wrapf(err, vserr.CodeStoreRequestFailure, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table), element); err != nil {
		return vserr.Wrap(err, vserr.CodeStoreRequestFailure, "deleting vector", vserr.FieldElement(element))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM element_attributes WHERE set_name = ? AND element = ?`, set, element); err != nil {
		return vserr.Wrap(err, vserr.CodeStoreRequestFailure, "deleting attributes", vserr.FieldElement(element))
	}

	if err := tx.Commit(); err != nil {
		return vserr.Wrapf(err, vserr.CodeStoreRequestFailure, "committing remove")
	}
	return nil
}

// Links is not available in this backend: vec0 does not expose its index
// graph.
func (s *Store) Links(_ context.Context, set, _ string) ([][]vecstore.Neighbor, error) {
	return nil, vserr.New(vserr.CodeStoreOperationUnsupported,
		"neighbor links are not available on the sqlite backend", vserr.FieldVectorSet(set))
}

func (s *Store) GetAttribute(ctx context.Context, set, element string) (string, error) {
	var attrs string
	err := s.db.QueryRowContext(ctx,
		`SELECT attributes FROM element_attributes WHERE set_name = ? AND element = ?`,
		set, element).Scan(&attrs)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", vserr.Wrap(err, vserr.CodeStoreRequestFailure, "reading attributes",
			vserr.FieldVectorSet(set), vserr.FieldElement(element))
	}
	return attrs, nil
}

func (s *Store) GetAttributes(ctx context.Context, set string, elements []string) (map[string]string, error) {
	out := make(map[string]string, len(elements))
	for _, el := range elements {
		attrs, err := s.GetAttribute(ctx, set, el)
		if err != nil {
			return nil, err
		}
		out[el] = attrs
	}
	return out, nil
}

func (s *Store) SetAttribute(ctx context.Context, set, element, attributes string) error {
	if _, _, err := s.lookupSet(ctx, set); err != nil {
		return err
	}

	const q = `INSERT INTO element_attributes(set_name, element, attributes) VALUES (?, ?, ?)
ON CONFLICT(set_name, element) DO UPDATE SET attributes = excluded.attributes`
	if _, err := s.db.ExecContext(ctx, q, set, element, attributes); err != nil {
		return vserr.Wrap(err, vserr.CodeStoreRequestFailure, "setting attributes",
			vserr.FieldVectorSet(set), vserr.FieldElement(element))
	}
	return nil
}

func (s *Store) ListSets(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM vector_sets ORDER BY name`)
	if err != nil {
		return nil, vserr.Wrapf(err, vserr.CodeStoreRequestFailure, "listing sets")
	}
	defer func() { _ = rows.Close() }()

	var sets []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, vserr.Wrapf(err, vserr.CodeStoreRequestFailure, "scanning set name")
		}
		sets = append(sets, name)
	}
	return sets, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) lookupSet(ctx context.Context, set string) (table string, dims int, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT table_name, dims FROM vector_sets WHERE name = ?`, set).
		Scan(&table, &dims)
	if err == sql.ErrNoRows {
		return "", 0, vserr.New(vserr.CodeStoreSetNotFound, "vector set does not exist", vserr.FieldVectorSet(set))
	}
	if err != nil {
		return "", 0, vserr.Wrap(err, vserr.CodeStoreRequestFailure, "looking up set", vserr.FieldVectorSet(set))
	}
	return table, dims, nil
}

func (s *Store) ensureSet(ctx context.Context, set string, dims int) (string, int, error) {
	if table, existing, err := s.lookupSet(ctx, set); err == nil {
		return table, existing, nil
	} else if !vserr.IsNotFound(err) {
		return "", 0, err
	}

	if dims <= 0 {
		return "", 0, vserr.New(vserr.CodeSearchQueryInvalid, "cannot create a set from an empty vector", vserr.FieldVectorSet(set))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check under the lock; another goroutine may have created it.
	if table, existing, err := s.lookupSet(ctx, set); err == nil {
		return table, existing, nil
	}

	table := "vs_" + sanitizeIdent(set)
	ddl := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(id TEXT PRIMARY KEY, embedding float[%d])`, table, dims)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return "", 0, vserr.Wrap(err, vserr.CodeStoreRequestFailure, "creating set table", vserr.FieldVectorSet(set))
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO vector_sets(name, table_name, dims) VALUES (?, ?, ?)`, set, table, dims); err != nil {
		return "", 0, vserr.Wrap(err, vserr.CodeStoreRequestFailure, "registering set", vserr.FieldVectorSet(set))
	}
	return table, dims, nil
}

func (s *Store) elementVector(ctx context.Context, table, set, element string) ([]float32, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT embedding FROM %s WHERE id = ?`, table), element).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, vserr.New(vserr.CodeStoreSetNotFound, "element does not exist",
			vserr.FieldVectorSet(set), vserr.FieldElement(element))
	}
	if err != nil {
		return nil, vserr.Wrap(err, vserr.CodeStoreRequestFailure, "reading element vector",
			vserr.FieldVectorSet(set), vserr.FieldElement(element))
	}
	return deserializeFloat32(blob), nil
}

var identRe = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

func sanitizeIdent(name string) string {
	return identRe.ReplaceAllString(name, "_")
}

// matchesFilter evaluates the supported filter subset: one or more
// `.field == literal` clauses joined by `and`.
func matchesFilter(attributes, filter string) bool {
	if attributes == "" {
		return false
	}

	for _, clause := range strings.Split(filter, " and ") {
		field, want, ok := strings.Cut(clause, "==")
		if !ok {
			return false
		}
		field = strings.TrimPrefix(strings.TrimSpace(field), ".")
		want = strings.Trim(strings.TrimSpace(want), `"'`)

		got := gjson.Get(attributes, field)
		if !got.Exists() || got.String() != want {
			return false
		}
	}
	return true
}

// deserializeFloat32 decodes the little-endian float32 blob vec0 stores.
func deserializeFloat32(blob []byte) []float32 {
	vec := make([]float32, 0, len(blob)/4)
	for i := 0; i+4 <= len(blob); i += 4 {
		bits := binary.LittleEndian.Uint32(blob[i : i+4])
		vec = append(vec, math.Float32frombits(bits))
	}
	return vec
}
