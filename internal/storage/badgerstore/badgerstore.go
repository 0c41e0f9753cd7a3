package badgerstore

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"

	"github.com/BearBump/ParcelDesk/internal/models"
	"github.com/BearBump/ParcelDesk/internal/storage"
)

var (
	packagePrefix = []byte("pkg:")
	detailsPrefix = []byte("det:")
)

type Storage struct {
	db  *badger.DB
	now func() time.Time
}

// WithClock sets the clock used to stamp UpdatedAt on updates.
func (s *Storage) WithClock(now func() time.Time) *Storage {
	if now != nil {
		s.now = now
	}
	return s
}

// Open opens a badger directory. An empty dir keeps everything in memory.
func Open(dir string) (*Storage, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "open badger")
	}
	return &Storage{db: db, now: storage.UTCNow}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func key(prefix []byte, number string) []byte {
	return append(append([]byte(nil), prefix...), number...)
}

func (s *Storage) SavePackages(_ context.Context, pkgs []models.Package) error {
	if err := storage.ValidatePackages(pkgs); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for _, p := range pkgs {
			b, err := storage.EncodePackage(p)
			if err != nil {
				return err
			}
			if err := txn.Set(key(packagePrefix, p.TrackingNumber), b); err != nil {
				return errors.Wrap(err, "set package")
			}
		}
		return nil
	})
}

func (s *Storage) GetPackages(_ context.Context) ([]models.Package, error) {
	out := []models.Package{}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 64, Prefix: packagePrefix})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				p, err := storage.DecodePackage(val)
				if err != nil {
					return err
				}
				out = append(out, *p)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan packages")
	}
	return out, nil
}

func (s *Storage) GetPackage(_ context.Context, number string) (*models.Package, error) {
	b, err := s.get(key(packagePrefix, number))
	if err != nil || b == nil {
		return nil, err
	}
	return storage.DecodePackage(b)
}

func (s *Storage) UpdatePackage(_ context.Context, number string, patch models.PackagePatch) error {
	return s.update(key(packagePrefix, number), func(b []byte) ([]byte, error) {
		out, _, err := storage.PatchPackage(b, patch, s.now())
		return out, err
	})
}

func (s *Storage) SavePackageDetails(_ context.Context, d models.PackageDetails) error {
	if err := storage.ValidateKey(d.TrackingNumber); err != nil {
		return err
	}
	b, err := storage.EncodeDetails(d)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return errors.Wrap(txn.Set(key(detailsPrefix, d.TrackingNumber), b), "set details")
	})
}

func (s *Storage) GetPackageDetails(_ context.Context, number string) (*models.PackageDetails, error) {
	b, err := s.get(key(detailsPrefix, number))
	if err != nil || b == nil {
		return nil, err
	}
	return storage.DecodeDetails(b)
}

func (s *Storage) UpdatePackageDetails(_ context.Context, number string, patch models.PackagePatch) error {
	return s.update(key(detailsPrefix, number), func(b []byte) ([]byte, error) {
		out, _, err := storage.PatchDetails(b, patch, s.now())
		return out, err
	})
}

func (s *Storage) DeletePackage(_ context.Context, number string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(key(packagePrefix, number)); err != nil {
			return errors.Wrap(err, "delete package")
		}
		return errors.Wrap(txn.Delete(key(detailsPrefix, number)), "delete details")
	})
}

func (s *Storage) Clear(_ context.Context) error {
	return errors.Wrap(s.db.DropPrefix(packagePrefix, detailsPrefix), "clear")
}

func (s *Storage) get(k []byte) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "badger get")
	}
	return out, nil
}

// update retries on conflict: badger txns are optimistic.
func (s *Storage) update(k []byte, patch func([]byte) ([]byte, error)) error {
	for {
		err := s.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(k)
			if errors.Is(err, badger.ErrKeyNotFound) {
				return models.ErrNotFound
			}
			if err != nil {
				return errors.Wrap(err, "badger get")
			}
			cur, err := item.ValueCopy(nil)
			if err != nil {
				return errors.Wrap(err, "badger value")
			}
			next, err := patch(cur)
			if err != nil {
				return err
			}
			return errors.Wrap(txn.Set(k, next), "badger set")
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
}
