// Package mysql provides a MySQL implementation of catalog.Store on
// top of database/sql and the go-sql-driver driver.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/kavinraju/cirrus/internal/catalog"
	"github.com/kavinraju/cirrus/internal/errs"
	"github.com/kavinraju/cirrus/internal/objstore"
)

const (
	defaultMaxOpenConns    = 5
	defaultMaxIdleConns    = 2
	defaultConnMaxLifetime = 30 * time.Minute
)

// Config holds the settings needed to reach the catalog database.
type Config struct {
	// DSN in go-sql-driver format,
	// e.g. "user:pass@tcp(localhost:3306)/cirrus?parseTime=true".
	DSN string

	MaxOpenConns int
	MaxIdleConns int
}

// DefaultConfig returns conservative pool settings for the given DSN.
func DefaultConfig(dsn string) *Config {
	return &Config{
		DSN:          dsn,
		MaxOpenConns: defaultMaxOpenConns,
		MaxIdleConns: defaultMaxIdleConns,
	}
}

// Applied on every open. Idempotent. Statements are executed one at a
// time so the DSN does not need multiStatements.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS catalog_sources (
		id              VARCHAR(128) PRIMARY KEY,
		name            VARCHAR(255) NOT NULL,
		provider        VARCHAR(32)  NOT NULL,
		endpoint        VARCHAR(255) NOT NULL,
		bucket          VARCHAR(255) NOT NULL,
		region          VARCHAR(64)  NOT NULL DEFAULT '',
		use_ssl         BOOLEAN      NOT NULL DEFAULT FALSE,
		path_style      BOOLEAN      NOT NULL DEFAULT FALSE,
		note            TEXT,
		cdn_url         VARCHAR(255) NOT NULL DEFAULT '',
		credentials_ref VARCHAR(255) NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS catalog_tags (
		id    VARCHAR(128) PRIMARY KEY,
		name  VARCHAR(255) NOT NULL,
		color VARCHAR(32)  NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS catalog_source_tags (
		source_id VARCHAR(128) NOT NULL,
		tag_id    VARCHAR(128) NOT NULL,
		PRIMARY KEY (source_id, tag_id)
	)`,
}

// Driver is a MySQL implementation of catalog.Store.
// Safe for concurrent use by multiple goroutines.
type Driver struct {
	db *sql.DB
}

// New connects to MySQL, validates the connection and ensures the
// catalog schema exists.
func New(ctx context.Context, cfg *Config) (*Driver, error) {
	if cfg.DSN == "" {
		return nil, errs.New(errs.ErrKindConfiguration, "catalog DSN not set")
	}

	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConfiguration, "invalid catalog DSN", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen == 0 {
		maxOpen = defaultMaxOpenConns
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle == 0 {
		maxIdle = defaultMaxIdleConns
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, mapError(err, "catalog database unreachable")
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, mapError(err, "failed to ensure catalog schema")
		}
	}
	return &Driver{db: db}, nil
}

// --- catalog.Store implementation ---

func (d *Driver) ListSources(ctx context.Context) ([]catalog.Source, error) {
	const q = `
		SELECT id, name, provider, endpoint, bucket, region,
		       use_ssl, path_style, note, cdn_url, credentials_ref
		FROM catalog_sources
		ORDER BY name`

	rows, err := d.db.QueryContext(ctx, q)
	if err != nil {
		return nil, mapError(err, "failed to list sources")
	}
	defer rows.Close()

	var sources []catalog.Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, mapError(err, "failed to scan source")
		}
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "error iterating sources")
	}

	links, err := d.fetchTagLinks(ctx)
	if err != nil {
		return nil, err
	}
	for i := range sources {
		sources[i].TagIDs = links[sources[i].ID]
	}
	return sources, nil
}

func (d *Driver) GetSource(ctx context.Context, id string) (catalog.Source, error) {
	const q = `
		SELECT id, name, provider, endpoint, bucket, region,
		       use_ssl, path_style, note, cdn_url, credentials_ref
		FROM catalog_sources
		WHERE id = ?`

	rows, err := d.db.QueryContext(ctx, q, id)
	if err != nil {
		return catalog.Source{}, mapError(err, "failed to get source")
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return catalog.Source{}, mapError(err, "failed to get source")
		}
		return catalog.Source{}, errs.New(errs.ErrKindNotFound, "no source with id "+id)
	}
	s, err := scanSource(rows)
	if err != nil {
		return catalog.Source{}, mapError(err, "failed to scan source")
	}
	rows.Close()

	tagRows, err := d.db.QueryContext(ctx,
		`SELECT tag_id FROM catalog_source_tags WHERE source_id = ? ORDER BY tag_id`, id)
	if err != nil {
		return catalog.Source{}, mapError(err, "failed to load source tags")
	}
	defer tagRows.Close()

	for tagRows.Next() {
		var tagID string
		if err := tagRows.Scan(&tagID); err != nil {
			return catalog.Source{}, mapError(err, "failed to scan tag link")
		}
		s.TagIDs = append(s.TagIDs, tagID)
	}
	if err := tagRows.Err(); err != nil {
		return catalog.Source{}, mapError(err, "error iterating tag links")
	}
	return s, nil
}

func (d *Driver) SaveSource(ctx context.Context, s catalog.Source) error {
	if s.ID == "" {
		return errs.New(errs.ErrKindConfiguration, "source id is required")
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	for _, tagID := range s.TagIDs {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM catalog_tags WHERE id = ?`, tagID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return errs.New(errs.ErrKindConfiguration, "unknown tag id "+tagID)
		}
		if err != nil {
			return mapError(err, "failed to check tag")
		}
	}

	const upsert = `
		INSERT INTO catalog_sources
			(id, name, provider, endpoint, bucket, region,
			 use_ssl, path_style, note, cdn_url, credentials_ref)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			name = VALUES(name), provider = VALUES(provider),
			endpoint = VALUES(endpoint), bucket = VALUES(bucket),
			region = VALUES(region), use_ssl = VALUES(use_ssl),
			path_style = VALUES(path_style), note = VALUES(note),
			cdn_url = VALUES(cdn_url), credentials_ref = VALUES(credentials_ref)`

	e := s.Endpoint
	if _, err := tx.ExecContext(ctx, upsert, s.ID, s.Name, string(e.Provider), e.Endpoint, e.Bucket,
		e.Region, e.UseSSL, e.PathStyle, e.Note, e.CDNURL, e.CredentialsRef); err != nil {
		return mapError(err, "failed to save source")
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_source_tags WHERE source_id = ?`, s.ID); err != nil {
		return mapError(err, "failed to clear tag links")
	}
	for _, tagID := range s.TagIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO catalog_source_tags (source_id, tag_id) VALUES (?, ?)`, s.ID, tagID); err != nil {
			return mapError(err, "failed to link tag")
		}
	}

	if err := tx.Commit(); err != nil {
		return mapError(err, "failed to commit source")
	}
	return nil
}

func (d *Driver) DeleteSource(ctx context.Context, id string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_source_tags WHERE source_id = ?`, id); err != nil {
		return mapError(err, "failed to unlink source")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_sources WHERE id = ?`, id); err != nil {
		return mapError(err, "failed to delete source")
	}

	if err := tx.Commit(); err != nil {
		return mapError(err, "failed to commit source deletion")
	}
	return nil
}

func (d *Driver) ListTags(ctx context.Context) ([]catalog.Tag, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, name, color FROM catalog_tags ORDER BY name`)
	if err != nil {
		return nil, mapError(err, "failed to list tags")
	}
	defer rows.Close()

	var tags []catalog.Tag
	for rows.Next() {
		var t catalog.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Color); err != nil {
			return nil, mapError(err, "failed to scan tag")
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "error iterating tags")
	}
	return tags, nil
}

func (d *Driver) SaveTag(ctx context.Context, tag catalog.Tag) error {
	if tag.ID == "" {
		return errs.New(errs.ErrKindConfiguration, "tag id is required")
	}

	const q = `
		INSERT INTO catalog_tags (id, name, color) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), color = VALUES(color)`
	if _, err := d.db.ExecContext(ctx, q, tag.ID, tag.Name, tag.Color); err != nil {
		return mapError(err, "failed to save tag")
	}
	return nil
}

// DeleteTag removes the tag and its links in one transaction, so no
// source ever references a dangling tag.
func (d *Driver) DeleteTag(ctx context.Context, id string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_source_tags WHERE tag_id = ?`, id); err != nil {
		return mapError(err, "failed to unlink tag")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_tags WHERE id = ?`, id); err != nil {
		return mapError(err, "failed to delete tag")
	}

	if err := tx.Commit(); err != nil {
		return mapError(err, "failed to commit tag deletion")
	}
	return nil
}

// Close shuts down the pool.
func (d *Driver) Close() error {
	return d.db.Close()
}

// --- internals ---

func (d *Driver) fetchTagLinks(ctx context.Context) (map[string][]string, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT source_id, tag_id FROM catalog_source_tags ORDER BY tag_id`)
	if err != nil {
		return nil, mapError(err, "failed to load tag links")
	}
	defer rows.Close()

	links := make(map[string][]string)
	for rows.Next() {
		var sourceID, tagID string
		if err := rows.Scan(&sourceID, &tagID); err != nil {
			return nil, mapError(err, "failed to scan tag link")
		}
		links[sourceID] = append(links[sourceID], tagID)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "error iterating tag links")
	}
	return links, nil
}

func scanSource(rows *sql.Rows) (catalog.Source, error) {
	var (
		s    catalog.Source
		e    objstore.EndpointConfig
		p    string
		note sql.NullString
	)
	err := rows.Scan(&s.ID, &s.Name, &p, &e.Endpoint, &e.Bucket, &e.Region,
		&e.UseSSL, &e.PathStyle, &note, &e.CDNURL, &e.CredentialsRef)
	if err != nil {
		return catalog.Source{}, err
	}
	e.Provider = objstore.Provider(p)
	e.Note = note.String
	s.Endpoint = e
	return s, nil
}

// mapError translates a driver error into a *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindCanceled, msg, err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}
	return errs.Wrap(errs.ErrKindStore, msg, err)
}
