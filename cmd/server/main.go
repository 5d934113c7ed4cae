// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/sonobox/sonobox/internal/api/rest"
	"github.com/sonobox/sonobox/internal/app/command"
	"github.com/sonobox/sonobox/internal/app/notification"
	"github.com/sonobox/sonobox/internal/app/playback"
	"github.com/sonobox/sonobox/internal/domain/playlist"
	"github.com/sonobox/sonobox/internal/infra/config"
	"github.com/sonobox/sonobox/internal/infra/library"
	"github.com/sonobox/sonobox/internal/infra/logger"
	"github.com/sonobox/sonobox/internal/infra/sonos"
)

var (
	app        = kingpin.New("sonobox-server", "sonobox jukebox server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	discoverCmd     = app.Command("discover", "List speakers on the network and exit")
	discoverTimeout = discoverCmd.Flag("timeout", "How long to wait for replies").Default("3s").Duration()
)

func init() {
	// start command (default) - no need to store the command
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	if cmd == discoverCmd.FullCommand() {
		if err := printZones(*discoverTimeout); err != nil {
			zlog.Fatal().Msgf("Discovery failed: %v", err)
		}
		return
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The media host goes into every track URI handed to the speaker, so
	// it has to be an address the speaker can reach, not localhost.
	host := cfg.Media.Host
	if host == "" {
		detected, err := config.DetectLocalIP()
		if err != nil {
			return fmt.Errorf("media host not configured and autodetect failed: %w", err)
		}
		host = detected
		zlog.Info().Msgf("Detected media host %s", host)
	}
	mediaBase, err := cfg.MediaBaseURL(host)
	if err != nil {
		return fmt.Errorf("failed to build media base URL: %w", err)
	}
	zlog.Info().Msgf("Serving media as %s", mediaBase)

	lib, err := loadLibrary(ctx, cfg, mediaBase)
	if err != nil {
		return err
	}

	playlists := playlist.NewStore(cfg.Media.PlaylistDir, mediaBase)

	dev, factory, err := playback.NewDeviceFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to attach device: %w", err)
	}
	zlog.Info().Msgf("Controlling device %s", dev.Name())

	var redisClient *redis.Client
	if cfg.Events.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Events.RedisAddr})
		defer redisClient.Close()
		zlog.Info().Msgf("Mirroring events to redis %s channel %s", cfg.Events.RedisAddr, cfg.Events.RedisChannel)
	}
	events := notification.NewManager(notification.Config{
		BufferSize: cfg.Events.BufferSize,
		Redis:      redisClient,
		Channel:    cfg.Events.RedisChannel,
	})

	mailbox := command.NewQueue(cfg.Player.QueueSize)
	controller := playback.New(playback.Config{
		PollInterval:   cfg.Player.PollInterval(),
		DequeueTimeout: cfg.Player.DequeueTimeout(),
		DeviceTimeout:  cfg.Player.DeviceTimeout(),
		Repeat:         cfg.Player.Repeat,
		Shuffle:        cfg.Player.Shuffle,
		NewDevice:      factory,
	}, dev, mailbox, events)
	controller.Start()

	api := rest.NewServer(rest.Config{
		Player:    controller,
		Events:    events,
		Library:   lib,
		Playlists: playlists,
		Discover:  sonos.Discover,
		MediaBase: mediaBase,
	})

	apiServer := &http.Server{
		Addr:    cfg.Server.APIAddr,
		Handler: h2c.NewHandler(api.Router(), &http2.Server{}),
	}
	mediaServer := &http.Server{
		Addr:    cfg.Server.MediaAddr,
		Handler: rest.NewMediaHandler(cfg.Media.Path, cfg.Media.DropPrefix),
	}

	serverErrCh := make(chan error, 2)
	go func() {
		zlog.Info().Msgf("Starting API server: addr=%s", cfg.Server.APIAddr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("api server: %w", err)
		}
	}()
	go func() {
		zlog.Info().Msgf("Starting media server: addr=%s root=%s", cfg.Server.MediaAddr, cfg.Media.Path)
		if err := mediaServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("media server: %w", err)
		}
	}()

	// Give the listeners a moment before announcing readiness.
	time.Sleep(100 * time.Millisecond)
	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		return err
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	// Controller first so nothing touches the device mid-shutdown, then
	// the event fanout, then the HTTP servers still draining handlers.
	if err := controller.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to stop controller: %v", err)
	}
	events.Close()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown API server: %v", err)
	}
	if err := mediaServer.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown media server: %v", err)
	}

	zlog.Info().Msg("Server stopped")
	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return nil
}

// loadLibrary builds the album library and starts its file watcher. A
// missing database is not fatal; the player runs with playlists only.
func loadLibrary(ctx context.Context, cfg *config.Config, mediaBase string) (*library.Library, error) {
	dbPath := cfg.Media.LibraryFile
	if dbPath == "" {
		dbPath = filepath.Join(cfg.Media.Path, "db.json")
	}

	lib := library.New(dbPath, mediaBase)
	if err := lib.Load(); err != nil {
		zlog.Warn().Err(err).Msgf("Album database not loaded, starting empty: path=%s", dbPath)
	}
	if err := lib.Watch(ctx); err != nil {
		zlog.Warn().Err(err).Msg("Album database watcher not started")
	}
	return lib, nil
}

// printZones runs speaker discovery and prints what answered.
func printZones(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout+time.Second)
	defer cancel()

	zones, err := sonos.Discover(ctx, timeout)
	if err != nil {
		return err
	}
	if len(zones) == 0 {
		fmt.Println("No speakers found")
		return nil
	}
	for _, z := range zones {
		fmt.Printf("%-24s %-16s %s\n", z.Name, z.Host, z.Model)
	}
	return nil
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
