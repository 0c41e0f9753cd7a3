package redisstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/BearBump/ParcelDesk/internal/models"
	"github.com/BearBump/ParcelDesk/internal/storage"
)

const (
	packagesKey = "parceldesk:packages"
	detailsKey  = "parceldesk:details"
)

// Storage keeps each table in one hash field-per-tracking-number, so several
// dashboards can share a cache.
type Storage struct {
	c   *redis.Client
	now func() time.Time
}

// WithClock sets the clock used to stamp UpdatedAt on updates.
func (s *Storage) WithClock(now func() time.Time) *Storage {
	if now != nil {
		s.now = now
	}
	return s
}

func New(addr string) *Storage {
	return &Storage{
		c:   redis.NewClient(&redis.Options{Addr: addr}),
		now: storage.UTCNow,
	}
}

func (s *Storage) Ping(ctx context.Context) error {
	return errors.Wrap(s.c.Ping(ctx).Err(), "redis ping")
}

func (s *Storage) Close() error {
	return s.c.Close()
}

func (s *Storage) SavePackages(ctx context.Context, pkgs []models.Package) error {
	if err := storage.ValidatePackages(pkgs); err != nil {
		return err
	}
	if len(pkgs) == 0 {
		return nil
	}
	values := make([]any, 0, len(pkgs)*2)
	for _, p := range pkgs {
		b, err := storage.EncodePackage(p)
		if err != nil {
			return err
		}
		values = append(values, p.TrackingNumber, b)
	}
	_, err := s.c.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, packagesKey, values...)
		return nil
	})
	return errors.Wrap(err, "redis hset packages")
}

func (s *Storage) GetPackages(ctx context.Context) ([]models.Package, error) {
	m, err := s.c.HGetAll(ctx, packagesKey).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis hgetall")
	}
	out := make([]models.Package, 0, len(m))
	for _, v := range m {
		p, err := storage.DecodePackage([]byte(v))
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

func (s *Storage) GetPackage(ctx context.Context, number string) (*models.Package, error) {
	b, err := s.hget(ctx, packagesKey, number)
	if err != nil || b == nil {
		return nil, err
	}
	return storage.DecodePackage(b)
}

func (s *Storage) UpdatePackage(ctx context.Context, number string, patch models.PackagePatch) error {
	return s.update(ctx, packagesKey, number, func(b []byte) ([]byte, error) {
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
	return errors.Wrap(s.c.HSet(ctx, detailsKey, d.TrackingNumber, b).Err(), "redis hset details")
}

func (s *Storage) GetPackageDetails(ctx context.Context, number string) (*models.PackageDetails, error) {
	b, err := s.hget(ctx, detailsKey, number)
	if err != nil || b == nil {
		return nil, err
	}
	return storage.DecodeDetails(b)
}

func (s *Storage) UpdatePackageDetails(ctx context.Context, number string, patch models.PackagePatch) error {
	return s.update(ctx, detailsKey, number, func(b []byte) ([]byte, error) {
		out, _, err := storage.PatchDetails(b, patch, s.now())
		return out, err
	})
}

func (s *Storage) DeletePackage(ctx context.Context, number string) error {
	_, err := s.c.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, packagesKey, number)
		pipe.HDel(ctx, detailsKey, number)
		return nil
	})
	return errors.Wrap(err, "redis delete package")
}

func (s *Storage) Clear(ctx context.Context) error {
	return errors.Wrap(s.c.Del(ctx, packagesKey, detailsKey).Err(), "redis clear")
}

func (s *Storage) hget(ctx context.Context, hash, field string) ([]byte, error) {
	val, err := s.c.HGet(ctx, hash, field).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis hget")
	}
	return val, nil
}

// update is an optimistic read-modify-write guarded by WATCH on the hash.
func (s *Storage) update(ctx context.Context, hash, field string, patch func([]byte) ([]byte, error)) error {
	for attempt := 0; attempt < 10; attempt++ {
		err := s.c.Watch(ctx, func(tx *redis.Tx) error {
			cur, err := tx.HGet(ctx, hash, field).Bytes()
			if err == redis.Nil {
				return models.ErrNotFound
			}
			if err != nil {
				return errors.Wrap(err, "redis hget")
			}
			next, err := patch(cur)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, hash, field, next)
				return nil
			})
			return err
		}, hash)
		if err == redis.TxFailedErr {
			continue
		}
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return errors.Wrap(err, "redis update")
		}
		return err
	}
	return errors.New("redis update: too many concurrent writers")
}
