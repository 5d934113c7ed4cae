package rest

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMediaHandler(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Music"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Music", "song.mp3"), []byte("ID3-payload"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Music", "two words.mp3"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "album-art"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "album-art", "100.png"), []byte("png"), 0o644))

	h := NewMediaHandler(root, "/media")
	get := func(path, byteRange string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if byteRange != "" {
			req.Header.Set("Range", byteRange)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	t.Run("strips drop prefix", func(t *testing.T) {
		w := get("/media/Music/song.mp3", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ID3-payload", w.Body.String())
	})

	t.Run("escaped names resolve", func(t *testing.T) {
		w := get("/media/Music/two%20words.mp3", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("album art without prefix", func(t *testing.T) {
		w := get("/album-art/100.png", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		w := get("/media/Music/missing.mp3", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("serves byte ranges", func(t *testing.T) {
		w := get("/media/Music/song.mp3", "bytes=0-2")
		require.Equal(t, http.StatusPartialContent, w.Code)
		assert.Equal(t, "ID3", w.Body.String())
	})
}
