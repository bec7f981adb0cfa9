package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sawtak/glovestudio/internal/app"
	"github.com/sawtak/glovestudio/internal/config"
	"github.com/sawtak/glovestudio/internal/feed"
	"github.com/sawtak/glovestudio/internal/hook"
	"github.com/sawtak/glovestudio/internal/pose"
	"github.com/sawtak/glovestudio/internal/preview"
	"github.com/sawtak/glovestudio/internal/server"
	"github.com/sawtak/glovestudio/internal/store"
	"github.com/sawtak/glovestudio/internal/tray"
)

func main() {
	configPath := flag.String("c", "", "path to config file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	withTray := flag.Bool("tray", false, "show the system tray menu")
	flag.Parse()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get home directory: %v\n", err)
		os.Exit(1)
	}
	dataDir := filepath.Join(homeDir, ".glovestudio")

	cfg, err := config.Load(*configPath, dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, dataDir, *withTray, logger); err != nil {
		logger.Fatal("glovestudio failed", zap.Error(err))
	}
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zcfg.Build()
}

func run(cfg config.Config, dataDir string, withTray bool, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	reg, err := pose.NewRegistry(cfg.Rig.PoseConfig())
	if err != nil {
		return fmt.Errorf("build rig: %w", err)
	}

	var src feed.Source
	if cfg.Feed.Kind != "" {
		fc := cfg.FeedConfig()
		fc.Logger = logger.Named("feed")
		if src, err = feed.New(fc); err != nil {
			return err
		}
	}

	hooks := hook.NewManager(cfg.Hooks.Dir, logger.Named("hooks"))
	if err := hooks.Discover(); err != nil {
		return fmt.Errorf("discover hooks: %w", err)
	}
	runner := hook.NewRunner(hooks, hook.NewExecutor(cfg.Hooks.Timeout), logger.Named("hooks"))
	defer runner.Wait()

	chains := preview.ChainsFor(reg)
	live := preview.NewRenderer(chains, 0, 0, "live")
	review := preview.NewRenderer(chains, 0, 0, "review")

	studio, err := app.New(app.Config{
		Registry:    reg,
		Source:      src,
		Uploader:    st,
		Hook:        runner,
		Mesh:        live,
		PreviewMesh: review,
		Submission:  cfg.Studio.Submission,
		Owner:       cfg.Studio.Owner,
		RenderFPS:   cfg.Studio.RenderFPS,
		PlaybackFPS: cfg.Studio.PlaybackFPS,
		QueueSize:   cfg.Studio.QueueSize,
		Logger:      logger.Named("studio"),
	})
	if err != nil {
		return err
	}
	if err := studio.Start(ctx); err != nil {
		return err
	}
	defer studio.Close()

	staticDir := cfg.Server.StaticDir
	if staticDir == "" {
		staticDir = findWebDir(dataDir)
	}
	if staticDir != "" {
		logger.Info("serving static files", zap.String("dir", staticDir))
	}

	srv := server.New(server.Config{
		StaticDir: staticDir,
		Studio:    studio,
		Store:     st,
		Owner:     cfg.Studio.Owner,
		Live:      live,
		Review:    review,
		Logger:    logger.Named("server"),
	})
	defer srv.Close()

	httpSrv := &http.Server{Addr: cfg.Server.Addr, Handler: srv}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", cfg.Server.Addr), zap.Int("hooks", len(hooks.List())))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			stop()
		}
		close(errCh)
	}()

	if withTray {
		t := tray.New()
		t.OnCalibrate(studio.Calibrate)
		t.OnOpenStudio(func() { openBrowser(studioURL(cfg.Server.Addr), logger) })
		t.OnQuit(stop)
		t.StatusFunc(studio.Describe)
		go func() {
			<-ctx.Done()
			t.Quit()
		}()
		// The tray must own the main goroutine.
		t.Run()
	}

	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		// Preview streams never finish on their own.
		logger.Warn("graceful shutdown incomplete", zap.Error(err))
		httpSrv.Close()
	}
	if err := <-errCh; err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// findWebDir searches for the studio web directory in common locations and
// returns "" if none exists.
func findWebDir(dataDir string) string {
	for _, p := range []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

func studioURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string, logger *zap.Logger) {
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
		logger.Warn("failed to open browser", zap.String("url", url), zap.Error(err))
	}
}
