// Package playlist provides m3u playlist parsing and lookup.
package playlist

import (
	"bufio"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/sonobox/sonobox/internal/domain/track"
)

// Entry is a single playlist line pair: the optional #EXTINF metadata plus
// the path that followed it.
type Entry struct {
	ID     int    `json:"id"`
	Length string `json:"length"`
	Title  string `json:"title"`
	Path   string `json:"path"`
}

// Parse reads an m3u/m3u8 playlist. Files named *.m3u or *.m3u8 must open
// with an "#EXTM3U" line; an empty entry list is returned otherwise, matching
// how lenient players treat malformed files. Lines starting with '#' other
// than EXTINF are comments.
func Parse(r io.Reader, name string) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".m3u") || strings.HasSuffix(lower, ".m3u8") {
		if !scanner.Scan() {
			return nil, scanner.Err()
		}
		if !strings.HasPrefix(scanner.Text(), "#EXTM3U") {
			return []Entry{}, nil
		}
	}

	var entries []Entry
	next := Entry{}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "#EXTINF:"):
			meta := strings.TrimPrefix(line, "#EXTINF:")
			length, title, found := strings.Cut(meta, ",")
			if !found {
				length = meta
			}
			next.Length = strings.TrimSpace(length)
			next.Title = strings.TrimSpace(title)
		case strings.HasPrefix(line, "#"):
			// comment
		case line != "":
			next.ID = len(entries) + 1
			next.Path = line
			entries = append(entries, next)
			next = Entry{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read playlist")
	}
	return entries, nil
}

// ParseFile parses the playlist at the given path.
func ParseFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open playlist %s", path)
	}
	defer f.Close()
	return Parse(f, filepath.Base(path))
}

// List returns the playlist file names (not paths) found directly in dir,
// sorted for stable output.
func List(dir string) ([]string, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read playlist dir %s", dir)
	}
	var names []string
	for _, it := range items {
		if it.IsDir() {
			continue
		}
		lower := strings.ToLower(it.Name())
		if strings.HasSuffix(lower, ".m3u") || strings.HasSuffix(lower, ".m3u8") {
			names = append(names, it.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Store resolves playlist names under one directory and turns entries into
// queueable tracks whose URIs point at the media server.
type Store struct {
	dir     string
	baseURL string // media server base, e.g. http://192.168.1.10:54000
}

// NewStore creates a playlist store over dir. baseURL is the media server
// prefix prepended to playlist paths.
func NewStore(dir, baseURL string) *Store {
	return &Store{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// List returns the playlist names in the store directory.
func (s *Store) List() ([]string, error) {
	return List(s.dir)
}

// Entries parses the named playlist.
func (s *Store) Entries(name string) ([]Entry, error) {
	clean := filepath.Base(name)
	return ParseFile(filepath.Join(s.dir, clean))
}

// Tracks parses the named playlist and converts every entry into a Track.
func (s *Store) Tracks(name string) ([]track.Track, error) {
	entries, err := s.Entries(name)
	if err != nil {
		return nil, err
	}
	tracks := make([]track.Track, 0, len(entries))
	for _, e := range entries {
		tracks = append(tracks, s.trackFromEntry(e))
	}
	return tracks, nil
}

func (s *Store) trackFromEntry(e Entry) track.Track {
	t := track.Track{
		URI:      s.baseURL + escapePath(e.Path),
		Length:   e.Length,
		Duration: track.ParseLength(e.Length),
	}
	// EXTINF titles are conventionally "Artist - Title".
	if artist, title, found := strings.Cut(e.Title, " - "); found {
		t.Artist = strings.TrimSpace(artist)
		t.Title = strings.TrimSpace(title)
	} else {
		t.Title = e.Title
	}
	if t.Title == "" {
		t.Title = filepath.Base(e.Path)
	}
	return t
}

// escapePath percent-encodes a filesystem path for use in a URL, keeping
// the slashes.
func escapePath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := url.URL{Path: p}
	return u.EscapedPath()
}
