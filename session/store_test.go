package session

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"file": func(t *testing.T) Store {
			return NewFileStore(filepath.Join(t.TempDir(), "nested", "token.yaml"))
		},
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)

			token, err := store.Load()
			require.NoError(t, err)
			assert.Empty(t, token, "fresh store must be empty")

			require.NoError(t, store.Save("tok-1"))
			token, err = store.Load()
			require.NoError(t, err)
			assert.Equal(t, "tok-1", token)

			require.NoError(t, store.Save("tok-2"))
			token, _ = store.Load()
			assert.Equal(t, "tok-2", token)

			require.NoError(t, store.Clear())
			require.NoError(t, store.Clear(), "clear must be idempotent")
			token, err = store.Load()
			require.NoError(t, err)
			assert.Empty(t, token)
		})
	}
}

func TestFileStore_Layout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.yaml")
	store := NewFileStore(path)

	require.NoError(t, store.Save("abc"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "access_token: abc\n", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// No temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.yaml")
	require.NoError(t, os.WriteFile(path, []byte("access_token: [unclosed"), 0o600))

	_, err := NewFileStore(path).Load()
	assert.Error(t, err)
}

func TestFileStore_ConcurrentReadsSeeWholeTokens(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "token.yaml"))
	require.NoError(t, store.Save("aaaaaaaa"))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = store.Save("bbbbbbbb")
				_ = store.Save("aaaaaaaa")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 40; j++ {
				token, err := store.Load()
				assert.NoError(t, err)
				assert.Contains(t, []string{"aaaaaaaa", "bbbbbbbb"}, token)
			}
		}()
	}
	wg.Wait()
}
