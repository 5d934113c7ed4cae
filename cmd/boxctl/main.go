// Package main provides the control CLI for a running sonobox server.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
)

var (
	app    = kingpin.New("boxctl", "sonobox control client")
	server = app.Flag("server", "Server address").Default("http://localhost:8001").String()

	statusCmd = app.Command("status", "Show player state and the current track")
	playCmd   = app.Command("play", "Start or resume playback")
	pauseCmd  = app.Command("pause", "Pause playback")
	stopCmd   = app.Command("stop", "Stop playback")
	nextCmd   = app.Command("next", "Skip to the next track")
	prevCmd   = app.Command("prev", "Restart the track or skip back")

	volumeCmd = app.Command("volume", "Show or set the volume")
	volumeArg = volumeCmd.Arg("level", "0-100, up, or down").String()

	queueCmd   = app.Command("queue", "Show the queue")
	queueClear = queueCmd.Flag("clear", "Clear the queue instead").Bool()

	repeatCmd  = app.Command("repeat", "Toggle repeat")
	shuffleCmd = app.Command("shuffle", "Toggle shuffle")

	playlistsCmd = app.Command("playlists", "List playlists")
	playlistCmd  = app.Command("playlist", "Queue a playlist")
	playlistName = playlistCmd.Arg("name", "Playlist file name").Required().String()

	albumsCmd = app.Command("albums", "List albums")
	albumCmd  = app.Command("album", "Queue an album")
	albumID   = albumCmd.Arg("id", "Album ID").Required().String()

	speakersCmd = app.Command("speakers", "List speakers on the network")
	setzoneCmd  = app.Command("setzone", "Switch playback to another speaker")
	setzoneZone = setzoneCmd.Arg("zone", "Zone name or address").Required().String()

	watchCmd = app.Command("watch", "Tail the event stream")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	switch command {
	case statusCmd.FullCommand():
		status()
	case playCmd.FullCommand():
		simple("/play")
	case pauseCmd.FullCommand():
		simple("/pause")
	case stopCmd.FullCommand():
		simple("/stop")
	case nextCmd.FullCommand():
		simple("/next")
	case prevCmd.FullCommand():
		simple("/prev")
	case volumeCmd.FullCommand():
		volume(*volumeArg)
	case queueCmd.FullCommand():
		queue(*queueClear)
	case repeatCmd.FullCommand():
		simple("/repeat")
	case shuffleCmd.FullCommand():
		simple("/shuffle")
	case playlistsCmd.FullCommand():
		playlists()
	case playlistCmd.FullCommand():
		queuePlaylist(*playlistName)
	case albumsCmd.FullCommand():
		albums()
	case albumCmd.FullCommand():
		queueAlbum(*albumID)
	case speakersCmd.FullCommand():
		speakers()
	case setzoneCmd.FullCommand():
		setzone(*setzoneZone)
	case watchCmd.FullCommand():
		watch()
	}
}

// call issues a GET against the server and returns the body, exiting
// with the server's error message on anything but 200.
func call(path string) []byte {
	resp, err := http.Get(*server + path)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			fmt.Printf("Error: %s\n", e.Error)
		} else {
			fmt.Printf("Error: %s\n", resp.Status)
		}
		os.Exit(1)
	}
	return body
}

func parse(data []byte, v any) {
	if err := json.Unmarshal(data, v); err != nil {
		fmt.Printf("Error: unexpected response: %v\n", err)
		os.Exit(1)
	}
}

func simple(path string) {
	call(path)
	fmt.Println("OK")
}

type trackView struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album"`
	Length string `json:"length"`
}

func (t trackView) label() string {
	switch {
	case t.Artist != "" && t.Title != "":
		return t.Artist + " - " + t.Title
	case t.Title != "":
		return t.Title
	default:
		return "(unknown)"
	}
}

func status() {
	var state struct {
		State   string `json:"state"`
		Repeat  bool   `json:"repeat"`
		Shuffle bool   `json:"shuffle"`
		Volume  int    `json:"volume"`
		Zone    string `json:"zone"`
		Depth   int    `json:"queuedepth"`
	}
	parse(call("/state"), &state)

	fmt.Printf("State:   %s\n", state.State)
	fmt.Printf("Zone:    %s\n", state.Zone)
	fmt.Printf("Volume:  %d\n", state.Volume)
	fmt.Printf("Repeat:  %v   Shuffle: %v\n", state.Repeat, state.Shuffle)
	fmt.Printf("Queued:  %d\n", state.Depth)

	var current trackView
	parse(call("/current"), &current)
	if current.Title != "" {
		fmt.Printf("Playing: %s\n", current.label())
	}
}

func volume(arg string) {
	switch arg {
	case "":
		var v struct {
			Volume int `json:"volume"`
		}
		parse(call("/volume"), &v)
		fmt.Printf("Volume: %d\n", v.Volume)
	case "up":
		simple("/volumeup")
	case "down":
		simple("/volumedown")
	default:
		level, err := strconv.Atoi(arg)
		if err != nil || level < 0 || level > 100 {
			fmt.Println("Error: level must be 0-100, up, or down")
			os.Exit(1)
		}
		simple("/volume/" + strconv.Itoa(level))
	}
}

func queue(clear bool) {
	if clear {
		simple("/queue/clear")
		return
	}

	var tracks []trackView
	parse(call("/queue"), &tracks)
	if len(tracks) == 0 {
		fmt.Println("Queue is empty")
		return
	}
	for i, t := range tracks {
		if t.Length != "" {
			fmt.Printf("%3d. %s (%s)\n", i+1, t.label(), t.Length)
		} else {
			fmt.Printf("%3d. %s\n", i+1, t.label())
		}
	}
}

func playlists() {
	var names []string
	parse(call("/playlists"), &names)
	if len(names) == 0 {
		fmt.Println("No playlists found")
		return
	}
	for _, name := range names {
		fmt.Println(name)
	}
}

func queuePlaylist(name string) {
	var resp struct {
		Added int `json:"added"`
	}
	parse(call("/playlist/"+url.PathEscape(name)), &resp)
	fmt.Printf("Queued %d tracks\n", resp.Added)
}

func albums() {
	var list []struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Artist string `json:"artist"`
		Tracks int    `json:"tracks"`
	}
	parse(call("/albums"), &list)
	if len(list) == 0 {
		fmt.Println("No albums found")
		return
	}
	for _, a := range list {
		fmt.Printf("%-8s %s - %s (%d tracks)\n", a.ID, a.Artist, a.Title, a.Tracks)
	}
}

func queueAlbum(id string) {
	var resp struct {
		Added int `json:"added"`
	}
	parse(call("/album/"+url.PathEscape(id)+"/play"), &resp)
	fmt.Printf("Queued %d tracks\n", resp.Added)
}

func speakers() {
	var zones []struct {
		Name  string `json:"name"`
		Host  string `json:"host"`
		Model string `json:"model"`
	}
	parse(call("/speakers"), &zones)
	if len(zones) == 0 {
		fmt.Println("No speakers found")
		return
	}
	for _, z := range zones {
		fmt.Printf("%-24s %-16s %s\n", z.Name, z.Host, z.Model)
	}
}

func setzone(zone string) {
	call("/setzone/" + url.PathEscape(zone))
	fmt.Printf("Switched to %s\n", zone)
}

// watch tails the SSE stream and prints one line per event.
func watch() {
	resp, err := http.Get(*server + "/events")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Error: %s\n", resp.Status)
		os.Exit(1)
	}

	fmt.Println("Watching events. Press Ctrl+C to exit.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println()
		os.Exit(0)
	}()

	event := "message"
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			fmt.Printf("[%s] %s\n", event, strings.TrimPrefix(line, "data: "))
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Printf("Stream error: %v\n", err)
		os.Exit(1)
	}
}
