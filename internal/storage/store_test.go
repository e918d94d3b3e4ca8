package storage

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestSaveAndOpenRoundTrip(t *testing.T) {
	store := newTestStore(t)
	content := []byte("%PDF-1.4 fake report body")

	storedName, size, err := store.Save("scan.pdf", bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), size)
	assert.True(t, strings.HasSuffix(storedName, ".pdf"))

	f, err := store.Open(storedName)
	require.NoError(t, err)
	defer f.Close()

	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestSaveGeneratesDistinctNames(t *testing.T) {
	store := newTestStore(t)

	a, _, err := store.Save("x.png", strings.NewReader("one"))
	require.NoError(t, err)
	b, _, err := store.Save("x.png", strings.NewReader("two"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestSaveRejectsEmptyContent(t *testing.T) {
	store := newTestStore(t)

	_, _, err := store.Save("empty.txt", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, _, err = store.Save("nil.txt", nil)
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestOpenMissingFile(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Open("1700000000-deadbeef.pdf")
	assert.ErrorIs(t, err, ErrFileMissing)
}

func TestRemoveIsIdempotent(t *testing.T) {
	store := newTestStore(t)

	storedName, _, err := store.Save("r.txt", strings.NewReader("bytes"))
	require.NoError(t, err)

	require.NoError(t, store.Remove(storedName))
	// Second removal of the same name must not be an error.
	assert.NoError(t, store.Remove(storedName))
}

func TestResolveRejectsTraversal(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Open("../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidName)
	_, err = store.Open("")
	assert.ErrorIs(t, err, ErrInvalidName)
	assert.ErrorIs(t, store.Remove("sub/dir.txt"), ErrInvalidName)
}
