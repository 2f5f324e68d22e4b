package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/ayusman/camrover/internal/app"
	"github.com/ayusman/camrover/internal/capture"
	"github.com/ayusman/camrover/internal/config"
	"github.com/ayusman/camrover/internal/detector"
	"github.com/ayusman/camrover/internal/display"
	"github.com/ayusman/camrover/internal/link"
	"github.com/ayusman/camrover/internal/log"
	"github.com/ayusman/camrover/internal/server"
	"github.com/ayusman/camrover/internal/store"
	"github.com/ayusman/camrover/internal/tray"
)

func init() {
	// The display window and the tray both need the main thread.
	runtime.LockOSThread()
}

func main() {
	cfg := parseFlags(config.FromEnv(config.Default()))
	log.Init(cfg.LogLevel)

	if err := run(cfg); err != nil {
		log.Error("camrover failed", "err", err)
		os.Exit(1)
	}
}

func parseFlags(cfg config.Config) config.Config {
	flag.StringVar(&cfg.RoverIP, "rover", cfg.RoverIP, "rover IP address")
	flag.StringVar(&cfg.Source, "source", cfg.Source, `video source: device index, stream URL or "rover"`)
	flag.StringVar(&cfg.ModelDir, "models", cfg.ModelDir, "directory holding the YOLO files")
	flag.StringVar(&cfg.Weights, "weights", cfg.Weights, "YOLO weights file")
	flag.StringVar(&cfg.ModelConfig, "cfg", cfg.ModelConfig, "YOLO network config file")
	flag.StringVar(&cfg.Names, "names", cfg.Names, "class names file")
	flag.StringVar(&cfg.HandScript, "hand-script", cfg.HandScript, "path to mediapipe_service.py")
	flag.StringVar(&cfg.Target, "target", cfg.Target, "object to follow in auto control")
	flag.Float64Var(&cfg.Confidence, "confidence", cfg.Confidence, "detection confidence threshold")
	flag.Float64Var(&cfg.NMSThreshold, "nms", cfg.NMSThreshold, "non-maximum suppression IoU threshold")
	flag.IntVar(&cfg.ProcessEveryN, "every", cfg.ProcessEveryN, "run detection on every Nth frame")
	flag.DurationVar(&cfg.LinkTimeout, "link-timeout", cfg.LinkTimeout, "timeout for rover HTTP calls")
	flag.StringVar(&cfg.Listen, "listen", cfg.Listen, `HTTP API address ("" disables it)`)
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flag.BoolVar(&cfg.Window, "window", cfg.Window, "show the display window")
	flag.BoolVar(&cfg.Tray, "tray", cfg.Tray, "show the system tray menu")
	flag.Parse()

	if cfg.Tray {
		cfg.Window = false
	}
	return cfg
}

func run(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	st, err := store.Memory()
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer st.Close()
	log.Info("session started", "session", st.SessionID())

	yolo, err := detector.NewYOLO(
		cfg.ModelPath(cfg.Weights),
		cfg.ModelPath(cfg.ModelConfig),
		cfg.ModelPath(cfg.Names),
		image.Pt(cfg.DetectWidth, cfg.DetectHeight),
	)
	if err != nil {
		return modelError(err)
	}

	handCfg := detector.DefaultConfig()
	handCfg.Script = cfg.HandScript
	tracker, err := detector.NewMediaPipeTracker(handCfg)
	if err != nil {
		yolo.Close()
		return modelError(err)
	}

	spec, err := capture.ParseSpec(cfg.ResolvedSource())
	if err != nil {
		yolo.Close()
		tracker.Close()
		return fmt.Errorf("%w: %v", config.ErrConfig, err)
	}

	rover := link.New(cfg.ControlURL(), cfg.LinkTimeout, link.WithObserver(st.Commands().Observe))

	hub := display.NewHub()
	sinks := display.Multi{hub}
	var win *display.Window
	if cfg.Window {
		win = display.NewWindow("Camrover")
		sinks = append(sinks, win)
	}

	arb := app.New(app.Options{
		Config:   cfg,
		Source:   capture.NewSource(spec),
		Tracker:  tracker,
		Detector: yolo,
		Link:     rover,
		Sink:     sinks,
		Settings: st.Settings(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var srv *server.Server
	if cfg.Listen != "" {
		srv = server.New(server.Config{
			StaticDir:  findWebDir(),
			Controller: arb,
			Store:      st,
			Hub:        hub,
		})
		go func() {
			if err := srv.ListenAndServe(cfg.Listen); err != nil {
				log.Error("http server failed", "err", err)
			}
		}()
	}

	if win != nil {
		go forwardKeys(ctx, arb, win.Keys())
	}

	log.Info("rover link ready", "control", rover.Endpoint(), "source", spec.String())

	if cfg.Tray {
		t := tray.New(arb)
		t.OnQuit(stop)
		if srv != nil {
			t.OnOpen(func() { openBrowser(dashboardURL(cfg.Listen)) })
		}
		go func() {
			arb.Run(ctx)
			t.Quit()
		}()
		t.Run()
		stop()
		<-arb.Done()
	} else {
		arb.Run(ctx)
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("http server shutdown", "err", err)
		}
	}
	hub.Close()

	total, failed, err := st.Commands().Count()
	if err == nil {
		log.Info("session finished", "commands", total, "failed", failed)
	}
	return nil
}

// modelError marks a missing or unloadable model as a configuration failure.
func modelError(err error) error {
	if errors.Is(err, detector.ErrModelUnavailable) {
		return fmt.Errorf("%w: %v", config.ErrConfig, err)
	}
	return err
}

// forwardKeys turns window key presses into arbiter events.
func forwardKeys(ctx context.Context, arb *app.Arbiter, keys <-chan int) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-arb.Done():
			return
		case key := <-keys:
			ev, ok := app.KeyEvent(key)
			if !ok {
				continue
			}
			if err := arb.Post(ev); err != nil {
				log.Warn("key dropped", "key", key, "err", err)
			}
		}
	}
}

func dashboardURL(listen string) string {
	if len(listen) > 0 && listen[0] == ':' {
		return "http://localhost" + listen
	}
	return "http://" + listen
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Warn("failed to open browser", "url", url, "err", err)
	}
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.camrover/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".camrover", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
