package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"

	"github.com/sonobox/sonobox/internal/app/command"
	"github.com/sonobox/sonobox/internal/app/playback"
	"github.com/sonobox/sonobox/internal/domain/track"
)

const discoverTimeout = 3 * time.Second

type statusResponse struct {
	Status string `json:"status"`
	Added  int    `json:"added,omitempty"`
}

type stateResponse struct {
	State   string `json:"state"`
	Repeat  bool   `json:"repeat"`
	Shuffle bool   `json:"shuffle"`
	Volume  int    `json:"volume"`
	Zone    string `json:"zone"`
	Depth   int    `json:"queuedepth"`
}

type statsResponse struct {
	TS          int64               `json:"ts"`
	Uptime      string              `json:"uptime"`
	Controller  playback.Statistics `json:"controller"`
	Mailbox     command.QueueStats  `json:"mailbox"`
	Subscribers int                 `json:"subscribers"`
	Albums      int                 `json:"albums"`
	Tracks      int                 `json:"tracks"`
}

// submit enqueues a command and writes the error response when it is
// rejected. Commands are applied asynchronously; a 200 means accepted,
// the outcome arrives on the event stream.
func (s *Server) submit(w http.ResponseWriter, cmd command.Command) bool {
	if err := s.player.Submit(cmd); err != nil {
		if errors.Is(err, command.ErrQueueFull) {
			writeError(w, http.StatusServiceUnavailable, "command queue full")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return false
	}
	return true
}

func (s *Server) handleCommand(kind command.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.submit(w, command.New(kind)) {
			writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
		}
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap := s.player.Snapshot()
	writeJSON(w, http.StatusOK, stateResponse{
		State:   snap.State.String(),
		Repeat:  snap.Repeat,
		Shuffle: snap.Shuffle,
		Volume:  snap.Volume,
		Zone:    snap.Zone,
		Depth:   snap.Depth(),
	})
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	snap := s.player.Snapshot()
	if snap.Current == nil {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, snap.Current)
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	snap := s.player.Snapshot()
	tracks := snap.Tracks
	if tracks == nil {
		tracks = []track.Track{}
	}
	writeJSON(w, http.StatusOK, tracks)
}

func (s *Server) handleQueueDepth(w http.ResponseWriter, r *http.Request) {
	snap := s.player.Snapshot()
	writeJSON(w, http.StatusOK, playback.QueueChangedPayload{Depth: snap.Depth()})
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	snap := s.player.Snapshot()
	writeJSON(w, http.StatusOK, playback.VolumeChangedPayload{Volume: snap.Volume})
}

func (s *Server) handleSetVolume(w http.ResponseWriter, r *http.Request) {
	level, err := strconv.Atoi(chi.URLParam(r, "level"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "volume must be an integer")
		return
	}
	if s.submit(w, command.SetVolume(level)) {
		writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
	}
}

func (s *Server) handleSpeakers(w http.ResponseWriter, r *http.Request) {
	if s.discover == nil {
		writeError(w, http.StatusServiceUnavailable, "discovery unavailable")
		return
	}
	zones, err := s.discover(r.Context(), discoverTimeout)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, zones)
}

func (s *Server) handleSetZone(w http.ResponseWriter, r *http.Request) {
	zone := urlParam(r, "zone")
	if zone == "" {
		writeError(w, http.StatusBadRequest, "missing zone")
		return
	}
	if s.submit(w, command.SwitchZone(zone)) {
		writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.player.Snapshot()
	albums, tracks := 0, 0
	if s.lib != nil {
		albums, tracks = s.lib.Counts()
	}
	subscribers := 0
	if s.events != nil {
		subscribers = s.events.SubscriberCount()
	}
	writeJSON(w, http.StatusOK, statsResponse{
		TS:          time.Now().Unix(),
		Uptime:      time.Since(s.started).Round(time.Second).String(),
		Controller:  snap.Stats,
		Mailbox:     s.player.MailboxStats(),
		Subscribers: subscribers,
		Albums:      albums,
		Tracks:      tracks,
	})
}
