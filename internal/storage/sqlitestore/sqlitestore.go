package sqlitestore

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/BearBump/ParcelDesk/internal/models"
	"github.com/BearBump/ParcelDesk/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS packages (
  tracking_number TEXT PRIMARY KEY,
  updated_at      INTEGER NOT NULL,
  payload         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_packages_updated_at ON packages(updated_at);

CREATE TABLE IF NOT EXISTS package_details (
  tracking_number TEXT PRIMARY KEY,
  updated_at      INTEGER NOT NULL,
  payload         TEXT NOT NULL
);
`

type Storage struct {
	db  *sql.DB
	now func() time.Time
}

// WithClock sets the clock used to stamp UpdatedAt on updates.
func (s *Storage) WithClock(now func() time.Time) *Storage {
	if now != nil {
		s.now = now
	}
	return s
}

// Open opens (or creates) the cache file at path. ":memory:" gives a private in-memory cache.
func Open(path string) (*Storage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// one connection: ":memory:" databases are per-connection and writes serialize anyway
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "set pragma %q", p)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "init schema")
	}
	return &Storage{db: db, now: storage.UTCNow}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) SavePackages(ctx context.Context, pkgs []models.Package) error {
	if err := storage.ValidatePackages(pkgs); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsert("packages"))
	if err != nil {
		return errors.Wrap(err, "prepare upsert")
	}
	defer stmt.Close()

	for _, p := range pkgs {
		b, err := storage.EncodePackage(p)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, p.TrackingNumber, p.UpdatedAt.UnixMilli(), string(b)); err != nil {
			return errors.Wrap(err, "upsert package")
		}
	}
	return errors.Wrap(tx.Commit(), "commit tx")
}

func (s *Storage) GetPackages(ctx context.Context) ([]models.Package, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM packages ORDER BY tracking_number`)
	if err != nil {
		return nil, errors.Wrap(err, "select packages")
	}
	defer rows.Close()

	out := []models.Package{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.Wrap(err, "scan package")
		}
		p, err := storage.DecodePackage([]byte(payload))
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, errors.Wrap(rows.Err(), "rows")
}

func (s *Storage) GetPackage(ctx context.Context, number string) (*models.Package, error) {
	payload, err := s.get(ctx, "packages", number)
	if err != nil || payload == nil {
		return nil, err
	}
	return storage.DecodePackage(payload)
}

func (s *Storage) UpdatePackage(ctx context.Context, number string, patch models.PackagePatch) error {
	return s.update(ctx, "packages", number, func(b []byte) ([]byte, int64, error) {
		out, at, err := storage.PatchPackage(b, patch, s.now())
		return out, at.UnixMilli(), err
	})
}

func (s *Storage) SavePackageDetails(ctx context.Context, d models.PackageDetails) error {
	if err := storage.ValidateKey(d.TrackingNumber); err != nil {
		return err
	}
	b, err := storage.EncodeDetails(d)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, upsert("package_details"), d.TrackingNumber, d.UpdatedAt.UnixMilli(), string(b))
	return errors.Wrap(err, "upsert details")
}

func (s *Storage) GetPackageDetails(ctx context.Context, number string) (*models.PackageDetails, error) {
	payload, err := s.get(ctx, "package_details", number)
	if err != nil || payload == nil {
		return nil, err
	}
	return storage.DecodeDetails(payload)
}

func (s *Storage) UpdatePackageDetails(ctx context.Context, number string, patch models.PackagePatch) error {
	return s.update(ctx, "package_details", number, func(b []byte) ([]byte, int64, error) {
		out, at, err := storage.PatchDetails(b, patch, s.now())
		return out, at.UnixMilli(), err
	})
}

func (s *Storage) DeletePackage(ctx context.Context, number string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM packages WHERE tracking_number = ?`, number); err != nil {
		return errors.Wrap(err, "delete package")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM package_details WHERE tracking_number = ?`, number); err != nil {
		return errors.Wrap(err, "delete details")
	}
	return errors.Wrap(tx.Commit(), "commit tx")
}

func (s *Storage) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"packages", "package_details"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return errors.Wrapf(err, "clear %s", table)
		}
	}
	return errors.Wrap(tx.Commit(), "commit tx")
}

func upsert(table string) string {
	return `INSERT INTO ` + table + ` (tracking_number, updated_at, payload) VALUES (?, ?, ?)
ON CONFLICT(tracking_number) DO UPDATE SET updated_at = excluded.updated_at, payload = excluded.payload`
}

func (s *Storage) get(ctx context.Context, table, number string) ([]byte, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM `+table+` WHERE tracking_number = ?`, number).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "select %s", table)
	}
	return []byte(payload), nil
}

func (s *Storage) update(ctx context.Context, table, number string, patch func([]byte) ([]byte, int64, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	var payload string
	err = tx.QueryRowContext(ctx, `SELECT payload FROM `+table+` WHERE tracking_number = ?`, number).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	if err != nil {
		return errors.Wrapf(err, "select %s", table)
	}

	b, updatedAt, err := patch([]byte(payload))
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE `+table+` SET payload = ?, updated_at = ? WHERE tracking_number = ?`,
		string(b), updatedAt, number); err != nil {
		return errors.Wrapf(err, "update %s", table)
	}
	return errors.Wrap(tx.Commit(), "commit tx")
}
