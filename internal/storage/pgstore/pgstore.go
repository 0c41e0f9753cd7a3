package pgstore

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/BearBump/ParcelDesk/internal/models"
	"github.com/BearBump/ParcelDesk/internal/storage"
)

type Storage struct {
	db  *pgxpool.Pool
	now func() time.Time
}

// WithClock sets the clock used to stamp UpdatedAt on updates.
func (s *Storage) WithClock(now func() time.Time) *Storage {
	if now != nil {
		s.now = now
	}
	return s
}

func New(connString string) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(err, "parse pg config")
	}

	db, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect pg")
	}

	s := &Storage{db: db, now: storage.UTCNow}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Storage) Close() error {
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS packages (
  tracking_number TEXT PRIMARY KEY,
  updated_at TIMESTAMPTZ NOT NULL,
  payload JSONB NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_packages_updated_at ON packages(updated_at DESC)`,
		`
CREATE TABLE IF NOT EXISTS package_details (
  tracking_number TEXT PRIMARY KEY,
  updated_at TIMESTAMPTZ NOT NULL,
  payload JSONB NOT NULL
)`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}

func (s *Storage) SavePackages(ctx context.Context, pkgs []models.Package) error {
	if err := storage.ValidatePackages(pkgs); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, p := range pkgs {
		b, err := storage.EncodePackage(p)
		if err != nil {
			return err
		}
		batch.Queue(upsert("packages"), p.TrackingNumber, p.UpdatedAt, b)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrap(err, "upsert packages")
	}
	return errors.Wrap(tx.Commit(ctx), "commit tx")
}

func (s *Storage) GetPackages(ctx context.Context) ([]models.Package, error) {
	rows, err := s.db.Query(ctx, `SELECT payload FROM packages ORDER BY tracking_number`)
	if err != nil {
		return nil, errors.Wrap(err, "select packages")
	}
	defer rows.Close()

	out := []models.Package{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.Wrap(err, "scan package")
		}
		p, err := storage.DecodePackage(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) GetPackage(ctx context.Context, number string) (*models.Package, error) {
	b, err := s.get(ctx, "packages", number)
	if err != nil || b == nil {
		return nil, err
	}
	return storage.DecodePackage(b)
}

func (s *Storage) UpdatePackage(ctx context.Context, number string, patch models.PackagePatch) error {
	return s.update(ctx, "packages", number, func(b []byte) ([]byte, error) {
		out, _, err := storage.PatchPackage(b, patch, s.now())
		return out, err
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
	_, err = s.db.Exec(ctx, upsert("package_details"), d.TrackingNumber, d.UpdatedAt, b)
	return errors.Wrap(err, "upsert details")
}

func (s *Storage) GetPackageDetails(ctx context.Context, number string) (*models.PackageDetails, error) {
	b, err := s.get(ctx, "package_details", number)
	if err != nil || b == nil {
		return nil, err
	}
	return storage.DecodeDetails(b)
}

func (s *Storage) UpdatePackageDetails(ctx context.Context, number string, patch models.PackagePatch) error {
	return s.update(ctx, "package_details", number, func(b []byte) ([]byte, error) {
		out, _, err := storage.PatchDetails(b, patch, s.now())
		return out, err
	})
}

func (s *Storage) DeletePackage(ctx context.Context, number string) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM packages WHERE tracking_number = $1`, number); err != nil {
		return errors.Wrap(err, "delete package")
	}
	if _, err := tx.Exec(ctx, `DELETE FROM package_details WHERE tracking_number = $1`, number); err != nil {
		return errors.Wrap(err, "delete details")
	}
	return errors.Wrap(tx.Commit(ctx), "commit tx")
}

func (s *Storage) Clear(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `TRUNCATE packages, package_details`)
	return errors.Wrap(err, "truncate")
}

func upsert(table string) string {
	return `
INSERT INTO ` + table + ` (tracking_number, updated_at, payload)
VALUES ($1, $2, $3)
ON CONFLICT (tracking_number)
DO UPDATE SET updated_at = EXCLUDED.updated_at, payload = EXCLUDED.payload`
}

func (s *Storage) get(ctx context.Context, table, number string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRow(ctx, `SELECT payload FROM `+table+` WHERE tracking_number = $1`, number).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "select %s", table)
	}
	return payload, nil
}

// update locks the row with SELECT ... FOR UPDATE so concurrent patches serialize.
func (s *Storage) update(ctx context.Context, table, number string, patch func([]byte) ([]byte, error)) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var payload []byte
	err = tx.QueryRow(ctx, `SELECT payload FROM `+table+` WHERE tracking_number = $1 FOR UPDATE`, number).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}
	if err != nil {
		return errors.Wrapf(err, "select %s", table)
	}

	next, err := patch(payload)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE `+table+` SET payload = $2, updated_at = now() WHERE tracking_number = $1`, number, next); err != nil {
		return errors.Wrapf(err, "update %s", table)
	}
	return errors.Wrap(tx.Commit(ctx), "commit tx")
}
