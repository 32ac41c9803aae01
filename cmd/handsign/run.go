package main

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/ayusman/handsign/internal/app"
	"github.com/ayusman/handsign/internal/capture"
	"github.com/ayusman/handsign/internal/config"
	"github.com/ayusman/handsign/internal/detector"
	"github.com/ayusman/handsign/internal/plugin"
	"github.com/ayusman/handsign/internal/publish"
	"github.com/ayusman/handsign/internal/server"
	"github.com/ayusman/handsign/internal/store"
	"github.com/ayusman/handsign/internal/tray"
)

const shutdownTimeout = 5 * time.Second

func (e *env) runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "classify gestures from the camera",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagMode,
				Value: string(app.ModeView),
				Usage: "debug, view (or normal) or collect",
			},
			&cli.BoolFlag{
				Name:  flagTray,
				Usage: "show a system tray menu (requires --mode collect)",
			},
			&cli.BoolFlag{
				Name:  flagServe,
				Usage: "also serve the HTTP API, MJPEG stream and live feed",
			},
			&cli.IntFlag{
				Name:  flagCamera,
				Usage: "camera device `INDEX`",
			},
			&cli.BoolFlag{
				Name:  flagMotionGate,
				Usage: "only classify while the image is moving",
			},
			&cli.StringFlag{
				Name:  flagAddr,
				Usage: "listen `ADDRESS` for --serve",
			},
		},
		Action: e.run,
	}
}

func (e *env) run(c *cli.Context) error {
	mode, err := app.ParseMode(c.String(flagMode))
	if err != nil {
		return err
	}
	// The tray owns the main goroutine, and so does a highgui window.
	if c.Bool(flagTray) && mode.Windowed() {
		return errors.New("--tray needs --mode collect")
	}

	cfg := e.cfg
	if c.IsSet(flagCamera) {
		cfg.Camera.Device = c.Int(flagCamera)
	}
	if c.IsSet(flagMotionGate) {
		cfg.Camera.MotionGate = c.Bool(flagMotionGate)
	}
	if c.IsSet(flagAddr) {
		cfg.Server.Addr = c.String(flagAddr)
	}

	schema, err := detector.LookupSchema(cfg.Schema)
	if err != nil {
		return err
	}

	st, err := openStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var frames *capture.FrameBuffer
	if c.Bool(flagServe) {
		frames = capture.NewFrameBuffer()
	}

	a := app.New(app.Config{
		Mode: mode,
		Camera: capture.Config{
			Device: cfg.Camera.Device,
			Mirror: cfg.Camera.Mirror,
			Width:  cfg.Camera.Width,
			Height: cfg.Camera.Height,
			FPS:    cfg.Camera.ActiveFPS,
		},
		MotionGate:   cfg.Camera.MotionGate,
		MotionThresh: cfg.Camera.MotionThreshold,
		IdleFPS:      cfg.Camera.IdleFPS,
		ActiveFPS:    cfg.Camera.ActiveFPS,
		IdleAfter:    time.Duration(cfg.Camera.IdleTimeout),
		Schema:       schema,
		Store:        st,
		Frames:       frames,
		Logger:       e.logger,
	})

	if err := a.UseMediaPipe(cfg.DetectorConfig()); err != nil {
		e.logger.Warnw("MediaPipe unavailable, no hands will be detected", "error", err)
		a.SetDetector(detector.NewMockDetector())
	}

	enabled, err := st.Settings().GetOr(store.SettingEnabled, "true")
	if err != nil {
		return err
	}
	a.SetEnabled(enabled != "false")
	if err := st.Settings().Set(store.SettingSchema, schema.Version()); err != nil {
		e.logger.Warnw("failed to save schema setting", "error", err)
	}

	if cfg.MQTT.Broker != "" {
		pub, err := publish.NewMQTTPublisher(publish.Config{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			QoS:      cfg.MQTT.QoS,
			Logger:   e.logger,
		})
		if err != nil {
			return err
		}
		defer pub.Close()
		a.AddSink(pub)
	}

	plugins := plugin.NewManager(cfg.Plugins.Dir)
	if err := plugins.Discover(); err != nil {
		e.logger.Warnw("some plugins were not loaded", "dir", cfg.Plugins.Dir, "error", err)
	}
	if n := len(plugins.List()); n > 0 {
		dispatcher := plugin.NewDispatcher(plugins, plugin.NewExecutor(time.Duration(cfg.Plugins.Timeout)), e.logger)
		defer dispatcher.Close()
		a.AddSink(dispatcher)
		e.logger.Infow("plugins loaded", "count", n, "dir", cfg.Plugins.Dir)
	}

	if c.Bool(flagServe) {
		live := server.NewLiveHandler(e.logger)
		a.AddSink(live)
		srv := server.New(server.Config{
			StaticDir: staticDir(cfg),
			Store:     st,
			Frames:    frames,
			Live:      live,
			Logger:    e.logger,
		})
		go e.listen(srv, cfg.Server.Addr, stop)
		defer e.shutdown(srv)
	}

	var runErr error
	if c.Bool(flagTray) {
		runErr = e.runWithTray(ctx, stop, a, st, cfg)
	} else {
		runErr = a.Run(ctx)
	}
	return multierr.Append(runErr, a.Stop())
}

// runWithTray runs the pipeline in the background while the tray holds the
// main goroutine.
func (e *env) runWithTray(ctx context.Context, stop func(), a *app.App, st *store.Store, cfg config.Config) error {
	t := tray.New(a.IsEnabled())
	t.OnToggle(func(enabled bool) {
		a.SetEnabled(enabled)
		if err := st.Settings().Set(store.SettingEnabled, strconv.FormatBool(enabled)); err != nil {
			e.logger.Warnw("failed to save enabled setting", "error", err)
		}
		e.logger.Infow("recognition toggled", "enabled", enabled)
	})
	t.OnDashboard(func() {
		url := dashboardURL(cfg.Server.Addr)
		if err := openBrowser(url); err != nil {
			e.logger.Warnw("failed to open dashboard", "url", url, "error", err)
		}
	})
	t.OnQuit(stop)
	a.AddSink(t)

	errc := make(chan error, 1)
	go func() {
		errc <- a.Run(ctx)
		t.Quit()
	}()
	t.Run()
	stop()
	return <-errc
}

func (e *env) listen(srv *server.Server, addr string, stop func()) {
	if err := srv.ListenAndServe(addr); err != nil {
		e.logger.Errorw("http server failed", "addr", addr, "error", err)
		stop()
	}
}

func (e *env) shutdown(srv *server.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		e.logger.Warnw("http server shutdown", "error", err)
	}
}

func (e *env) serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the HTTP API without a camera",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagAddr,
				Usage: "listen `ADDRESS`",
			},
		},
		Action: func(c *cli.Context) error {
			cfg := e.cfg
			if c.IsSet(flagAddr) {
				cfg.Server.Addr = c.String(flagAddr)
			}

			st, err := openStore(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(server.Config{
				StaticDir: staticDir(cfg),
				Store:     st,
				Logger:    e.logger,
			})

			errc := make(chan error, 1)
			go func() { errc <- srv.ListenAndServe(cfg.Server.Addr) }()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}
			e.shutdown(srv)
			return <-errc
		},
	}
}

// openStore creates the database directory and opens the store.
func openStore(path string) (*store.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	return store.New(path)
}

// staticDir returns the configured web directory, or the first of web,
// ../web, ../../web and ~/.handsign/web that exists.
func staticDir(cfg config.Config) string {
	if cfg.Server.StaticDir != "" {
		return cfg.Server.StaticDir
	}

	candidates := []string{"web", "../web", "../../web"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, config.DataDirName, "web"))
	}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

func dashboardURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
