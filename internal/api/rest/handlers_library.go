package rest

import (
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"

	"github.com/sonobox/sonobox/internal/app/command"
	"github.com/sonobox/sonobox/internal/domain/track"
	"github.com/sonobox/sonobox/internal/infra/library"
)

// urlParam returns a route parameter with percent-escapes decoded.
// chi hands back the raw segment when the request path was escaped.
func urlParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func (s *Server) handlePlaylists(w http.ResponseWriter, r *http.Request) {
	names, err := s.playlists.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleShowPlaylist(w http.ResponseWriter, r *http.Request) {
	entries, err := s.playlists.Entries(urlParam(r, "name"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusNotFound, "playlist not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleQueuePlaylist(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.playlists.Tracks(urlParam(r, "name"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusNotFound, "playlist not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	if len(tracks) == 0 {
		writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
		return
	}
	if s.submit(w, command.AddTracks(tracks)) {
		writeJSON(w, http.StatusOK, statusResponse{Status: "ok", Added: len(tracks)})
	}
}

// handlePlayFile queues a single media file by its path under the media
// root, e.g. /playfile/Music/Artist/Album/01%20Song.mp3.
func (s *Server) handlePlayFile(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(urlParam(r, "*"), "/")
	if rel == "" {
		writeError(w, http.StatusBadRequest, "missing file path")
		return
	}
	t := track.Track{
		Title: path.Base(rel),
		URI:   s.mediaBase + escapePath("/"+rel),
	}
	if s.submit(w, command.AddTrack(t)) {
		writeJSON(w, http.StatusOK, statusResponse{Status: "ok", Added: 1})
	}
}

func (s *Server) handleAlbums(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.lib.Albums())
}

func (s *Server) handleRecentAlbums(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.lib.RecentAlbums(limit))
}

func (s *Server) handleArtists(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.lib.Artists())
}

func (s *Server) handleArtistAlbums(w http.ResponseWriter, r *http.Request) {
	albums := s.lib.AlbumsByArtist(urlParam(r, "name"))
	if len(albums) == 0 {
		writeError(w, http.StatusNotFound, "artist not found")
		return
	}
	writeJSON(w, http.StatusOK, albums)
}

func (s *Server) handleAlbum(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	summary, ok := s.lib.Album(id)
	if !ok {
		writeError(w, http.StatusNotFound, "album not found")
		return
	}
	tracks, _ := s.lib.AlbumTracks(id)
	writeJSON(w, http.StatusOK, struct {
		Album  library.AlbumSummary `json:"album"`
		Tracks []track.Track        `json:"tracks"`
	}{Album: summary, Tracks: tracks})
}

func (s *Server) handlePlayAlbum(w http.ResponseWriter, r *http.Request) {
	tracks, ok := s.lib.AlbumTracks(urlParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "album not found")
		return
	}
	if len(tracks) == 0 {
		writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
		return
	}
	if s.submit(w, command.AddTracks(tracks)) {
		writeJSON(w, http.StatusOK, statusResponse{Status: "ok", Added: len(tracks)})
	}
}

func (s *Server) handlePlaySong(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lib.TrackByKey(urlParam(r, "key"))
	if !ok {
		writeError(w, http.StatusNotFound, "song not found")
		return
	}
	if s.submit(w, command.AddTrack(t)) {
		writeJSON(w, http.StatusOK, statusResponse{Status: "ok", Added: 1})
	}
}

func escapePath(p string) string {
	u := url.URL{Path: p}
	return u.EscapedPath()
}
