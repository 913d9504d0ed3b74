package storage

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/procpulse/agent/internal/enumerate"
	"github.com/procpulse/agent/internal/tracking"
	"github.com/procpulse/agent/internal/types"
)

// Store persists sessions and samples. The sampling loop is the sole
// writer of both tables; the id cache relies on that.
type Store struct {
	logger  *zap.Logger
	db      *sql.DB
	idCache map[types.SessionKey]int64
}

func NewStore(rootLogger *zap.Logger, dbPath string) (*Store, error) {
	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, err
	}

	logger := rootLogger.Named("store")
	logger.Debug("Store opened", zap.String("Path", dbPath))

	return &Store{
		logger:  logger,
		db:      db,
		idCache: make(map[types.SessionKey]int64),
	}, nil
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordMachineId stamps the database with the identity of the host it was
// collected on, so copied databases remain attributable.
func (s *Store) RecordMachineId(ctx context.Context, machineId string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES ('machine_id', ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, machineId)
	if err != nil {
		return errors.WithMessage(err, "record machine id")
	}
	return nil
}

// WriteTick commits one tick's session upserts, samples and end-of-session
// marks as a single transaction. A crash between ticks therefore never
// leaves a half-applied tick behind.
//
// Ids resolved during the transaction are staged locally and merged into
// the cache only after the commit succeeds: a rolled-back attempt (e.g.
// under storage contention, before the loop retries) must leave the cache
// exactly as it was, or the retry would update rows that were never
// inserted.
func (s *Store) WriteTick(ctx context.Context, tick *tracking.TickResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WithMessage(err, "begin tick transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	staged := make(map[types.SessionKey]int64)

	for i := range tick.Upserts {
		if _, err := s.upsertSession(ctx, tx, staged, &tick.Upserts[i], tick.WallTs); err != nil {
			return err
		}
	}

	if len(tick.Samples) > 0 {
		insert, err := tx.PrepareContext(ctx, `INSERT INTO sample
			(ts, process_id, dt_s, delta_cpu_s, eff_cores, active, rss_bytes, vms_bytes, io_read_bytes, io_write_bytes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return errors.WithMessage(err, "prepare sample insert")
		}
		defer insert.Close()

		for i := range tick.Samples {
			sample := &tick.Samples[i]
			processId, cached := s.idCache[sample.Key]
			if !cached {
				processId, cached = staged[sample.Key]
			}
			if !cached {
				// Upserts cover every enumerated session, so a sample
				// without a resolved id means the batch is inconsistent.
				return errors.Errorf("no session row for sample key '%s'", sample.Key)
			}

			active := 0
			if sample.Active {
				active = 1
			}
			if _, err := insert.ExecContext(ctx, sample.Ts, processId, sample.DtS, sample.DeltaCPUS,
				sample.EffCores, active, sample.RssBytes, sample.VmsBytes,
				sample.IOReadBytes, sample.IOWriteBytes); err != nil {
				return errors.WithMessagef(err, "insert sample for '%s'", sample.Key)
			}
		}
	}

	for _, key := range tick.Ended {
		if err := s.markEnded(ctx, tx, key, tick.WallTs); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.WithMessage(err, "commit tick transaction")
	}

	for key, processId := range staged {
		s.idCache[key] = processId
	}
	for _, key := range tick.Ended {
		delete(s.idCache, key)
	}
	return nil
}

// upsertSession inserts the session row on first sight and refreshes
// last_seen afterwards. Metadata read successfully once is kept even if a
// later read comes back empty, and partial_meta is sticky. Newly resolved
// ids land in staged, never directly in the cache.
func (s *Store) upsertSession(ctx context.Context, tx *sql.Tx, staged map[types.SessionKey]int64, reading *enumerate.Reading, wallTs float64) (int64, error) {
	key := reading.Key()
	partial := 0
	if reading.Partial {
		partial = 1
	}

	processId, cached := s.idCache[key]
	if !cached {
		processId, cached = staged[key]
	}
	if cached {
		_, err := tx.ExecContext(ctx, `UPDATE process SET
			last_seen=?,
			exe_path=COALESCE(exe_path, ?),
			name=COALESCE(name, ?),
			cmdline=COALESCE(cmdline, ?),
			username=COALESCE(username, ?),
			ppid=COALESCE(ppid, ?),
			partial_meta=(partial_meta OR ?)
			WHERE id=?`,
			wallTs, reading.ExePath, reading.Name, reading.Cmdline, reading.Username,
			reading.Ppid, partial, processId)
		if err != nil {
			return 0, errors.WithMessagef(err, "update session '%s'", key)
		}
		return processId, nil
	}

	_, err := tx.ExecContext(ctx, `INSERT INTO process
		(pid, create_time, exe_path, name, cmdline, username, ppid, first_seen, last_seen, ended, partial_meta)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(pid, create_time) DO UPDATE SET
		last_seen=excluded.last_seen,
		exe_path=COALESCE(exe_path, excluded.exe_path),
		name=COALESCE(name, excluded.name),
		cmdline=COALESCE(cmdline, excluded.cmdline),
		username=COALESCE(username, excluded.username),
		ppid=COALESCE(ppid, excluded.ppid),
		partial_meta=(partial_meta OR excluded.partial_meta)`,
		key.Pid, key.CreateTime, reading.ExePath, reading.Name, reading.Cmdline,
		reading.Username, reading.Ppid, wallTs, wallTs, partial)
	if err != nil {
		return 0, errors.WithMessagef(err, "upsert session '%s'", key)
	}

	row := tx.QueryRowContext(ctx, `SELECT id FROM process WHERE pid=? AND create_time=?`,
		key.Pid, key.CreateTime)
	if err := row.Scan(&processId); err != nil {
		return 0, errors.WithMessagef(err, "resolve session id for '%s'", key)
	}

	staged[key] = processId
	return processId, nil
}

// markEnded flags the session row. Cache eviction happens after commit, in
// WriteTick, so a rollback keeps the cache intact.
func (s *Store) markEnded(ctx context.Context, tx *sql.Tx, key types.SessionKey, wallTs float64) error {
	processId, cached := s.idCache[key]
	if !cached {
		// Session ended without ever producing a cached id in this run;
		// fall back to the composite key.
		_, err := tx.ExecContext(ctx, `UPDATE process SET ended=1, last_seen=? WHERE pid=? AND create_time=?`,
			wallTs, key.Pid, key.CreateTime)
		if err != nil {
			return errors.WithMessagef(err, "mark session '%s' ended", key)
		}
		return nil
	}

	_, err := tx.ExecContext(ctx, `UPDATE process SET ended=1, last_seen=? WHERE id=?`, wallTs, processId)
	if err != nil {
		return errors.WithMessagef(err, "mark session '%s' ended", key)
	}
	return nil
}

// PruneSamples deletes samples older than cutoffTs. Session rows are never
// pruned. Safe to call repeatedly.
func (s *Store) PruneSamples(ctx context.Context, cutoffTs float64) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sample WHERE ts < ?`, cutoffTs)
	if err != nil {
		return 0, errors.WithMessage(err, "prune samples")
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, errors.WithMessage(err, "count pruned samples")
	}
	return deleted, nil
}

func (s *Store) Vacuum(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `VACUUM`); err != nil {
		return errors.WithMessage(err, "vacuum database")
	}
	return nil
}

// Reset clears both tables and compacts the file.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WithMessage(err, "begin reset transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sample`); err != nil {
		return errors.WithMessage(err, "clear samples")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM process`); err != nil {
		return errors.WithMessage(err, "clear sessions")
	}
	if err := tx.Commit(); err != nil {
		return errors.WithMessage(err, "commit reset transaction")
	}

	s.idCache = make(map[types.SessionKey]int64)
	return s.Vacuum(ctx)
}
