// Package rest exposes the HTTP control surface: transport commands,
// queue and library browsing, zone management, and the realtime event
// endpoints. All control endpoints are GET so a browser address bar is
// enough to drive the player.
package rest

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sonobox/sonobox/internal/app/command"
	"github.com/sonobox/sonobox/internal/app/playback"
	"github.com/sonobox/sonobox/internal/domain/playlist"
	"github.com/sonobox/sonobox/internal/infra/library"
	"github.com/sonobox/sonobox/internal/infra/sonos"
)

// Player is the controller surface the API consumes.
type Player interface {
	Submit(cmd command.Command) error
	Snapshot() playback.Snapshot
	MailboxStats() command.QueueStats
}

// EventStream hands out event subscriptions for the SSE and WebSocket
// endpoints.
type EventStream interface {
	Subscribe() (id string, ch <-chan []byte)
	Unsubscribe(id string)
	SubscriberCount() int
}

// ZoneLister finds speakers on the network.
type ZoneLister func(ctx context.Context, timeout time.Duration) ([]sonos.Zone, error)

// Config wires the server's collaborators.
type Config struct {
	Player    Player
	Events    EventStream
	Library   *library.Library
	Playlists *playlist.Store
	Discover  ZoneLister
	MediaBase string // media server base URL, used by /playfile
}

// Server holds the handlers for the control API.
type Server struct {
	player    Player
	events    EventStream
	lib       *library.Library
	playlists *playlist.Store
	discover  ZoneLister
	mediaBase string
	started   time.Time
}

// NewServer creates the API server.
func NewServer(cfg Config) *Server {
	return &Server{
		player:    cfg.Player,
		events:    cfg.Events,
		lib:       cfg.Library,
		playlists: cfg.Playlists,
		discover:  cfg.Discover,
		mediaBase: cfg.MediaBase,
		started:   time.Now(),
	}
}

// Router builds the route table.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/play", s.handleCommand(command.KindPlay))
	r.Get("/pause", s.handleCommand(command.KindPause))
	r.Get("/stop", s.handleCommand(command.KindStop))
	r.Get("/next", s.handleCommand(command.KindNext))
	r.Get("/prev", s.handleCommand(command.KindPrev))

	r.Get("/state", s.handleState)
	r.Get("/current", s.handleCurrent)
	r.Get("/queue", s.handleQueue)
	r.Get("/queue/clear", s.handleCommand(command.KindClearQueue))
	r.Get("/queuedepth", s.handleQueueDepth)

	r.Get("/volume", s.handleVolume)
	r.Get("/volume/{level}", s.handleSetVolume)
	r.Get("/volumeup", s.handleCommand(command.KindVolumeUp))
	r.Get("/volumedown", s.handleCommand(command.KindVolumeDown))

	r.Get("/repeat", s.handleCommand(command.KindToggleRepeat))
	r.Get("/shuffle", s.handleCommand(command.KindToggleShuffle))

	r.Get("/speakers", s.handleSpeakers)
	r.Get("/setzone/{zone}", s.handleSetZone)

	r.Get("/playlists", s.handlePlaylists)
	r.Get("/listm3u", s.handlePlaylists)
	r.Get("/showplaylist/{name}", s.handleShowPlaylist)
	r.Get("/playlist/{name}", s.handleQueuePlaylist)
	r.Get("/playfile/*", s.handlePlayFile)

	r.Get("/albums", s.handleAlbums)
	r.Get("/albums/recent", s.handleRecentAlbums)
	r.Get("/artists", s.handleArtists)
	r.Get("/artist/{name}", s.handleArtistAlbums)
	r.Get("/album/{id}", s.handleAlbum)
	r.Get("/album/{id}/play", s.handlePlayAlbum)
	r.Get("/song/{key}/play", s.handlePlaySong)

	r.Get("/stats", s.handleStats)
	r.Get("/events", s.handleEvents)
	r.Get("/ws", s.handleWS)

	return r
}
