package store_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlornet/parlor/pkg/internal/store"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestDocRoundTrip(t *testing.T) {
	s := newStore(t)
	doc := store.Open[record](s, "posts", "user")

	items, err := doc.Load()
	require.NoError(t, err)
	assert.Empty(t, items, "missing document should load as empty")

	require.NoError(t, doc.Save(map[string]record{
		"a": {Name: "first", Count: 1},
		"b": {Name: "second", Count: 2},
	}))

	items, err = doc.Load()
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "first", items["a"].Name)

	// Reads go through the cache; a second load must agree with disk.
	again, err := doc.Load()
	require.NoError(t, err)
	assert.Equal(t, items, again)
}

func TestSaveLeavesNoTempDebris(t *testing.T) {
	s := newStore(t)
	doc := store.Open[record](s, "posts", "user")
	require.NoError(t, doc.Save(map[string]record{"a": {Name: "x"}}))

	entries, err := os.ReadDir(filepath.Join(s.Root(), "posts"))
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.HasPrefix(entry.Name(), "."),
			"temp file left behind: %s", entry.Name())
	}
}

func TestMutateErrorWritesNothing(t *testing.T) {
	s := newStore(t)
	doc := store.Open[record](s, "posts", "user")
	require.NoError(t, doc.Save(map[string]record{"a": {Name: "keep"}}))

	boom := errors.New("boom")
	err := doc.Mutate(func(items map[string]record) error {
		items["b"] = record{Name: "dropme"}
		return boom
	})
	require.ErrorIs(t, err, boom)

	items, err := doc.Load()
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, "keep", items["a"].Name)
}

func TestLoadCorruptDocument(t *testing.T) {
	s := newStore(t)
	doc := store.Open[record](s, "posts", "user")

	path := filepath.Join(s.Root(), "posts", "user.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(`{"a": {"name": "tru`), 0644))

	_, err := doc.Load()
	var corrupt *store.CorruptError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, "posts/user", corrupt.Document)
}

func TestMutateQuarantinesCorruptDocument(t *testing.T) {
	s := newStore(t)
	doc := store.Open[record](s, "posts", "user")

	path := filepath.Join(s.Root(), "posts", "user.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("not json at all"), 0644))

	require.NoError(t, doc.Mutate(func(items map[string]record) error {
		items["fresh"] = record{Name: "fresh"}
		return nil
	}))

	items, err := doc.Load()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "fresh", items["fresh"].Name)

	entries, err := os.ReadDir(filepath.Join(s.Root(), "posts"))
	require.NoError(t, err)
	aside := 0
	for _, entry := range entries {
		if strings.Contains(entry.Name(), ".corrupt-") {
			aside++
		}
	}
	assert.Equal(t, 1, aside, "corrupt file should be renamed aside, not destroyed")
}

func TestSweepQuarantinesOnlyBrokenOwners(t *testing.T) {
	s := newStore(t)
	good := store.Open[record](s, "posts", "user")
	require.NoError(t, good.Save(map[string]record{"a": {Name: "ok"}}))

	badPath := filepath.Join(s.Root(), "posts", "agent-ada.json")
	require.NoError(t, os.WriteFile(badPath, []byte("{{{{"), 0644))

	quarantined, err := s.Sweep("posts")
	require.NoError(t, err)
	require.Len(t, quarantined, 1)
	assert.Contains(t, quarantined[0], "agent-ada.json.corrupt-")

	owners, err := s.Owners("posts")
	require.NoError(t, err)
	assert.Equal(t, []string{"user"}, owners)
}

func TestOwnersSkipsQuarantineAndTempFiles(t *testing.T) {
	s := newStore(t)
	require.NoError(t, store.Open[record](s, "posts", "user").Save(map[string]record{}))
	require.NoError(t, store.Open[record](s, "posts", "agent-ada").Save(map[string]record{}))

	dir := filepath.Join(s.Root(), "posts")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.json.corrupt-1"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".user.json.12345"), []byte("x"), 0644))

	owners, err := s.Owners("posts")
	require.NoError(t, err)
	assert.Equal(t, []string{"agent-ada", "user"}, owners)
}
