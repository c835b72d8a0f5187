package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"media-streamer/internal/logging"
	"media-streamer/internal/probe"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// Database persists ffprobe results keyed by source fingerprint so a
// restart does not re-probe files whose bytes have not changed. A
// fingerprint key encodes path, size, and mtime, so a modified file
// naturally misses and gets probed again; stale rows are swept lazily.
type Database struct {
	db     *sql.DB
	dbPath string
}

// New opens (or creates) the probe cache database.
// dbPath must be the full path to the database FILE (e.g. "/cache/probes.db"),
// and the parent directory must already exist and be writable — use
// startup.LoadConfig() to validate directories before calling this.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Probe cache database path: %s", dbPath)

	// WAL mode and busy_timeout keep concurrent segment requests from
	// tripping "database is locked" errors.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// The cache sees short point reads and writes; a small pool is plenty.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Probe cache database initialized at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS probes (
		fingerprint TEXT PRIMARY KEY,
		duration REAL NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		codec TEXT NOT NULL DEFAULT '',
		fps REAL NOT NULL DEFAULT 0,
		video_bit_rate INTEGER NOT NULL DEFAULT 0,
		audio_bit_rate INTEGER NOT NULL DEFAULT 0,
		format_bit_rate INTEGER NOT NULL DEFAULT 0,
		has_audio INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_probes_created ON probes(created_at);
	`

	_, err := d.db.ExecContext(ctx, schema)
	if err != nil {
		return err
	}
	return nil
}

// Lookup returns the cached probe for a fingerprint key, or (nil, nil)
// when the key has never been probed.
func (d *Database) Lookup(ctx context.Context, key string) (*probe.MediaProbe, error) {
	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var (
		info     probe.MediaProbe
		hasAudio int
	)
	err := d.db.QueryRowContext(opCtx, `
		SELECT duration, width, height, codec, fps,
		       video_bit_rate, audio_bit_rate, format_bit_rate, has_audio
		FROM probes WHERE fingerprint = ?`, key).Scan(
		&info.Duration, &info.Width, &info.Height, &info.Codec, &info.FPS,
		&info.VideoBitRate, &info.AudioBitRate, &info.FormatBitRate, &hasAudio,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up probe: %w", err)
	}
	info.HasAudio = hasAudio != 0
	return &info, nil
}

// Store upserts a probe result under a fingerprint key.
func (d *Database) Store(ctx context.Context, key string, info *probe.MediaProbe) error {
	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	hasAudio := 0
	if info.HasAudio {
		hasAudio = 1
	}

	_, err := d.db.ExecContext(opCtx, `
		INSERT INTO probes (fingerprint, duration, width, height, codec, fps,
			video_bit_rate, audio_bit_rate, format_bit_rate, has_audio)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			duration = excluded.duration,
			width = excluded.width,
			height = excluded.height,
			codec = excluded.codec,
			fps = excluded.fps,
			video_bit_rate = excluded.video_bit_rate,
			audio_bit_rate = excluded.audio_bit_rate,
			format_bit_rate = excluded.format_bit_rate,
			has_audio = excluded.has_audio`,
		key, info.Duration, info.Width, info.Height, info.Codec, info.FPS,
		info.VideoBitRate, info.AudioBitRate, info.FormatBitRate, hasAudio,
	)
	if err != nil {
		return fmt.Errorf("failed to store probe: %w", err)
	}
	return nil
}

// Purge removes every cached probe. Called when the transcode cache is
// cleared so subsequent requests see fresh source metadata.
func (d *Database) Purge(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(opCtx, `DELETE FROM probes`)
	if err != nil {
		return fmt.Errorf("failed to purge probe cache: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		logging.Info("Purged %d cached probe results", n)
	}
	return nil
}

// Count returns the number of cached probe results.
func (d *Database) Count(ctx context.Context) (int64, error) {
	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int64
	if err := d.db.QueryRowContext(opCtx, `SELECT COUNT(*) FROM probes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count probes: %w", err)
	}
	return n, nil
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	logging.Debug("Closing probe cache database")
	return d.db.Close()
}
