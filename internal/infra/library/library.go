// Package library loads the exported album database and answers
// lookups against it. The database is a single JSON file produced by an
// external export tool; the library reloads it when the file changes.
package library

import (
	"context"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	zlog "github.com/rs/zerolog/log"

	"github.com/sonobox/sonobox/internal/domain/track"
)

const reloadDebounce = 500 * time.Millisecond

// TrackEntry is one track inside an album record.
type TrackEntry struct {
	Song   string   `json:"song"`
	Artist string   `json:"artist"`
	Key    string   `json:"key"`
	Length string   `json:"length,omitempty"`
	Path   []string `json:"path"`
}

// Album is one album record keyed by album ID in the database file.
type Album struct {
	Title     string                `json:"title"`
	Artist    string                `json:"artist"`
	Thumbfile string                `json:"thumbfile"`
	Added     float64               `json:"added"`
	Tracks    map[string]TrackEntry `json:"tracks"`
}

// AlbumSummary is the listing shape for an album.
type AlbumSummary struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	AlbumArt   string  `json:"album_art,omitempty"`
	TrackCount int     `json:"tracks"`
	Added      float64 `json:"added"`
}

type songRef struct {
	albumID string
	index   string
}

// Library holds the parsed database plus derived indexes. Reloads swap
// everything under the write lock; lookups share the read lock.
type Library struct {
	path    string
	baseURL string

	mu       sync.RWMutex
	albums   map[string]Album
	byKey    map[string]songRef
	byArtist map[string][]string
	recent   []string
}

// New creates a library for the given database file. No data is loaded
// until Load is called.
func New(path, baseURL string) *Library {
	return &Library{
		path:    path,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		albums:  map[string]Album{},
	}
}

// Load reads and indexes the database file. The previous data is kept
// when the file is missing or unparseable.
func (l *Library) Load() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return errors.Wrap(err, "failed to read album database")
	}

	var albums map[string]Album
	if err := json.Unmarshal(data, &albums); err != nil {
		return errors.Wrap(err, "failed to parse album database")
	}

	byKey := map[string]songRef{}
	byArtist := map[string][]string{}
	recent := make([]string, 0, len(albums))
	tracks := 0
	for id, album := range albums {
		recent = append(recent, id)
		byArtist[album.Artist] = append(byArtist[album.Artist], id)
		for idx, t := range album.Tracks {
			tracks++
			if t.Key != "" {
				byKey[t.Key] = songRef{albumID: id, index: idx}
			}
		}
	}
	sort.Slice(recent, func(i, j int) bool {
		return albums[recent[i]].Added > albums[recent[j]].Added
	})
	for _, ids := range byArtist {
		sortAlbumIDs(ids)
	}

	l.mu.Lock()
	l.albums = albums
	l.byKey = byKey
	l.byArtist = byArtist
	l.recent = recent
	l.mu.Unlock()

	zlog.Info().Msgf("library: loaded %d albums, %d tracks from %s", len(albums), tracks, l.path)
	return nil
}

// Watch reloads the database whenever its file changes. Export tools
// tend to write a temp file and rename it over the target, so the
// parent directory is watched rather than the file itself.
func (l *Library) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create watcher")
	}
	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		watcher.Close()
		return errors.Wrapf(err, "failed to watch %s", filepath.Dir(l.path))
	}

	go func() {
		defer watcher.Close()
		base := filepath.Base(l.path)
		var reload <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != base {
					continue
				}
				if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
					continue
				}
				reload = time.After(reloadDebounce)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				zlog.Warn().Err(err).Msg("library: watch error")
			case <-reload:
				reload = nil
				if err := l.Load(); err != nil {
					zlog.Warn().Err(err).Msg("library: reload failed, keeping previous data")
				}
			}
		}
	}()
	return nil
}

// Albums lists all albums sorted by title.
func (l *Library) Albums() []AlbumSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]AlbumSummary, 0, len(l.albums))
	for id := range l.albums {
		out = append(out, l.summaryLocked(id))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// RecentAlbums lists up to n albums, most recently added first.
func (l *Library) RecentAlbums(n int) []AlbumSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > len(l.recent) {
		n = len(l.recent)
	}
	out := make([]AlbumSummary, 0, n)
	for _, id := range l.recent[:n] {
		out = append(out, l.summaryLocked(id))
	}
	return out
}

// Artists lists all album artists sorted by name.
func (l *Library) Artists() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]string, 0, len(l.byArtist))
	for artist := range l.byArtist {
		out = append(out, artist)
	}
	sort.Strings(out)
	return out
}

// AlbumsByArtist lists the albums credited to an artist.
func (l *Library) AlbumsByArtist(artist string) []AlbumSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := l.byArtist[artist]
	out := make([]AlbumSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, l.summaryLocked(id))
	}
	return out
}

// Album looks up a single album by ID.
func (l *Library) Album(id string) (AlbumSummary, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, ok := l.albums[id]; !ok {
		return AlbumSummary{}, false
	}
	return l.summaryLocked(id), true
}

// AlbumTracks builds the playable tracks of an album in track order.
func (l *Library) AlbumTracks(id string) ([]track.Track, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	album, ok := l.albums[id]
	if !ok {
		return nil, false
	}

	indexes := make([]string, 0, len(album.Tracks))
	for idx := range album.Tracks {
		indexes = append(indexes, idx)
	}
	sort.Slice(indexes, func(i, j int) bool { return indexLess(indexes[i], indexes[j]) })

	out := make([]track.Track, 0, len(indexes))
	for _, idx := range indexes {
		t, ok := l.trackLocked(id, album, album.Tracks[idx])
		if !ok {
			continue
		}
		out = append(out, t)
	}
	return out, true
}

// TrackByKey resolves a single track by its song key.
func (l *Library) TrackByKey(key string) (track.Track, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ref, ok := l.byKey[key]
	if !ok {
		return track.Track{}, false
	}
	album := l.albums[ref.albumID]
	return l.trackLocked(ref.albumID, album, album.Tracks[ref.index])
}

// Counts reports the number of albums and tracks loaded.
func (l *Library) Counts() (albums, tracks int) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	albums = len(l.albums)
	for _, a := range l.albums {
		tracks += len(a.Tracks)
	}
	return albums, tracks
}

func (l *Library) summaryLocked(id string) AlbumSummary {
	album := l.albums[id]
	return AlbumSummary{
		ID:         id,
		Title:      album.Title,
		Artist:     album.Artist,
		AlbumArt:   l.artURLLocked(id, album),
		TrackCount: len(album.Tracks),
		Added:      album.Added,
	}
}

func (l *Library) trackLocked(id string, album Album, entry TrackEntry) (track.Track, bool) {
	if len(entry.Path) == 0 {
		return track.Track{}, false
	}
	return track.Track{
		Title:       entry.Song,
		Artist:      entry.Artist,
		Album:       album.Title,
		URI:         l.baseURL + escapePath(entry.Path[0]),
		AlbumArtURL: l.artURLLocked(id, album),
		Duration:    track.ParseLength(entry.Length),
		Length:      entry.Length,
	}, true
}

// artURLLocked builds the album art URL. The export tool records the
// art file it wrote in thumbfile, so the URL exists exactly when that
// field is set.
func (l *Library) artURLLocked(id string, album Album) string {
	if album.Thumbfile == "" {
		return ""
	}
	return l.baseURL + "/album-art/" + id + ".png"
}

func sortAlbumIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool { return indexLess(ids[i], ids[j]) })
}

// indexLess orders numeric strings numerically and falls back to the
// lexical order for anything else.
func indexLess(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}

func escapePath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := url.URL{Path: p}
	return u.EscapedPath()
}
