// Package store keeps every collection as plain JSON documents on disk,
// one document per collection per owner, each a mapping from content id to
// entity record. Documents are rewritten whole through a temp-file rename,
// so a crash mid-write never leaves a torn file behind.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/eko/gocache/lib/v4/cache"
	ristrettoStore "github.com/eko/gocache/store/ristretto/v4"
	"github.com/rs/zerolog/log"
)

// CorruptError reports a document whose on-disk bytes no longer parse.
// The document can be quarantined and reinitialized; other documents stay
// usable.
type CorruptError struct {
	Document string
	Path     string
	Err      error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("store document %s is corrupt: %v", e.Document, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

type Store struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	cache *cache.Cache[[]byte]
}

// New opens (and creates if needed) a store rooted at dir.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store root: %w", err)
	}

	inner, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     64 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build document cache: %w", err)
	}

	return &Store{
		root:  dir,
		locks: make(map[string]*sync.Mutex),
		cache: cache.New[[]byte](ristrettoStore.NewRistretto(inner)),
	}, nil
}

func (s *Store) Root() string { return s.root }

func (s *Store) path(collection, owner string) string {
	return filepath.Join(s.root, collection, owner+".json")
}

func (s *Store) lockFor(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mu, ok := s.locks[path]; ok {
		return mu
	}
	mu := new(sync.Mutex)
	s.locks[path] = mu
	return mu
}

// Owners lists the document owners present in a collection directory.
// Quarantined and in-flight temp files are not owners.
func (s *Store) Owners(collection string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, collection))
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	var owners []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		owners = append(owners, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(owners)
	return owners, nil
}

// Sweep checks every document of the given collections and quarantines the
// ones that no longer parse, so a damaged file taken out at boot never
// poisons a later write cycle. Returns the paths set aside.
func (s *Store) Sweep(collections ...string) ([]string, error) {
	var quarantined []string
	for _, collection := range collections {
		owners, err := s.Owners(collection)
		if err != nil {
			return quarantined, err
		}
		for _, owner := range owners {
			doc := Open[jsonRaw](s, collection, owner)
			if _, err := doc.Load(); err != nil {
				var corrupt *CorruptError
				if !errors.As(err, &corrupt) {
					return quarantined, err
				}
				aside, qerr := doc.Quarantine()
				if qerr != nil {
					return quarantined, qerr
				}
				log.Error().Str("document", corrupt.Document).Str("aside", aside).
					Msg("Quarantined a corrupt store document.")
				quarantined = append(quarantined, aside)
			}
		}
	}
	return quarantined, nil
}

// CleanTemp removes temp files abandoned by writes that died before their
// rename. Anything younger than an hour may still be in flight.
func (s *Store) CleanTemp() int {
	cleaned := 0
	_ = filepath.WalkDir(s.root, func(path string, entry os.DirEntry, err error) error {
		if err != nil || entry.IsDir() || !strings.HasPrefix(entry.Name(), ".") {
			return nil
		}
		info, err := entry.Info()
		if err != nil || time.Since(info.ModTime()) < time.Hour {
			return nil
		}
		if os.Remove(path) == nil {
			cleaned++
		}
		return nil
	})
	return cleaned
}

type jsonRaw = map[string]any
