// Package index persists catalog metadata records into a SQLite database so
// cross-dataset spatial queries do not have to rescan manifest trees.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	// Registers the sqlite3 database/sql driver.
	_ "github.com/mattn/go-sqlite3"

	"github.com/reliefmap/demgrid/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS manifests (
	dataset  TEXT NOT NULL,
	filename TEXT NOT NULL,
	format   TEXT NOT NULL,
	version  INTEGER NOT NULL,
	width    INTEGER NOT NULL,
	height   INTEGER NOT NULL,
	px       REAL NOT NULL,
	py       REAL NOT NULL,
	xmin     REAL NOT NULL,
	xmax     REAL NOT NULL,
	ymin     REAL NOT NULL,
	ymax     REAL NOT NULL,
	PRIMARY KEY (dataset, filename)
);
CREATE INDEX IF NOT EXISTS manifests_bounds ON manifests (xmin, xmax, ymin, ymax);
`

// Entry is one indexed metadata record with its owning dataset.
type Entry struct {
	Dataset  string
	Metadata domain.FileMetadata
}

// SQLiteIndex is the catalog index database.
type SQLiteIndex struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (and if necessary initializes) the index database at path.
func Open(path string) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing index schema: %w", err)
	}

	return &SQLiteIndex{db: db}, nil
}

// Close closes the database.
func (i *SQLiteIndex) Close() error {
	return i.db.Close()
}

// Rebuild replaces the indexed records of one dataset in a single
// transaction, so readers never observe a half-rebuilt dataset.
func (i *SQLiteIndex) Rebuild(ctx context.Context, dataset string, records []*domain.FileMetadata) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM manifests WHERE dataset = ?`, dataset); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO manifests
			(dataset, filename, format, version, width, height, px, py, xmin, xmax, ymin, ymax)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, md := range records {
		_, err := stmt.ExecContext(ctx,
			dataset, md.Filename, md.Format.String(), md.Version,
			md.Width, md.Height, md.PixelSize.X, md.PixelSize.Y,
			md.Bounds.XMin, md.Bounds.XMax, md.Bounds.YMin, md.Bounds.YMax,
		)
		if err != nil {
			return fmt.Errorf("indexing %s: %w", md.Filename, err)
		}
	}

	return tx.Commit()
}

// QueryIntersecting returns all indexed records whose bounding box
// intersects the given box, across datasets.
func (i *SQLiteIndex) QueryIntersecting(ctx context.Context, box domain.BoundingBox) ([]Entry, error) {
	rows, err := i.db.QueryContext(ctx, `
		SELECT dataset, filename, format, version, width, height, px, py, xmin, xmax, ymin, ymax
		FROM manifests
		WHERE xmax >= ? AND xmin <= ? AND ymax >= ? AND ymin <= ?
		ORDER BY dataset, filename`,
		box.XMin, box.XMax, box.YMin, box.YMax,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var format string
		err := rows.Scan(
			&e.Dataset, &e.Metadata.Filename, &format, &e.Metadata.Version,
			&e.Metadata.Width, &e.Metadata.Height,
			&e.Metadata.PixelSize.X, &e.Metadata.PixelSize.Y,
			&e.Metadata.Bounds.XMin, &e.Metadata.Bounds.XMax,
			&e.Metadata.Bounds.YMin, &e.Metadata.Bounds.YMax,
		)
		if err != nil {
			return nil, err
		}
		if e.Metadata.Format, err = domain.ParseRasterFormat(format); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Count returns the number of indexed records for a dataset, or across all
// datasets when dataset is empty.
func (i *SQLiteIndex) Count(ctx context.Context, dataset string) (int, error) {
	var n int
	var err error
	if dataset == "" {
		err = i.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM manifests`).Scan(&n)
	} else {
		err = i.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM manifests WHERE dataset = ?`, dataset).Scan(&n)
	}
	return n, err
}
