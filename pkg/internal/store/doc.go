package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	gocacheStore "github.com/eko/gocache/lib/v4/store"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Doc is a typed handle to one collection document. The zero page of every
// workflow: Load the whole mapping, mutate in memory, Save the whole
// mapping back. No partial-field updates at this layer.
type Doc[T any] struct {
	store      *Store
	collection string
	owner      string
}

func Open[T any](s *Store, collection, owner string) Doc[T] {
	return Doc[T]{store: s, collection: collection, owner: owner}
}

func (d Doc[T]) Name() string { return d.collection + "/" + d.owner }

func (d Doc[T]) path() string { return d.store.path(d.collection, d.owner) }

// Load reads and parses the document. A missing file is an empty, valid
// document; unparsable bytes come back as *CorruptError.
func (d Doc[T]) Load() (map[string]T, error) {
	raw, err := d.readBytes()
	if err != nil {
		return nil, err
	}
	items := make(map[string]T)
	if raw == nil {
		return items, nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &CorruptError{Document: d.Name(), Path: d.path(), Err: err}
	}
	return items, nil
}

// Save atomically replaces the document under its lock.
func (d Doc[T]) Save(items map[string]T) error {
	mu := d.store.lockFor(d.path())
	mu.Lock()
	defer mu.Unlock()
	return d.save(items)
}

// Mutate runs fn over the freshly loaded mapping and saves the result,
// all under the document lock. When fn returns an error nothing is
// written. A corrupt document is quarantined and fn starts from empty,
// so one damaged file costs its own contents and nothing else.
func (d Doc[T]) Mutate(fn func(items map[string]T) error) error {
	mu := d.store.lockFor(d.path())
	mu.Lock()
	defer mu.Unlock()

	items, err := d.Load()
	if err != nil {
		var corrupt *CorruptError
		if !errors.As(err, &corrupt) {
			return err
		}
		aside, qerr := d.Quarantine()
		if qerr != nil {
			return fmt.Errorf("failed to quarantine corrupt document: %w", qerr)
		}
		log.Error().Str("document", d.Name()).Str("aside", aside).
			Msg("Reinitialized a corrupt store document before writing.")
		items = make(map[string]T)
	}

	if err := fn(items); err != nil {
		return err
	}
	return d.save(items)
}

// Quarantine renames the document aside so a fresh one can take its place.
func (d Doc[T]) Quarantine() (string, error) {
	aside := fmt.Sprintf("%s.corrupt-%d", d.path(), time.Now().UnixNano())
	if err := os.Rename(d.path(), aside); err != nil {
		return "", err
	}
	return aside, nil
}

func (d Doc[T]) save(items map[string]T) error {
	payload, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", d.Name(), err)
	}

	path := d.path()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// readBytes serves document bytes through the ristretto cache. Entries are
// keyed by path plus mtime, so a rename from save() simply orphans the old
// entry instead of racing an invalidation.
func (d Doc[T]) readBytes() ([]byte, error) {
	info, err := os.Stat(d.path())
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	ctx := context.Background()
	key := fmt.Sprintf("%s@%d:%d", d.path(), info.ModTime().UnixNano(), info.Size())
	if raw, err := d.store.cache.Get(ctx, key); err == nil && raw != nil {
		return raw, nil
	}

	raw, err := os.ReadFile(d.path())
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	_ = d.store.cache.Set(ctx, key, raw, gocacheStore.WithCost(int64(len(raw))))
	return raw, nil
}
