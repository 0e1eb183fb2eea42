package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog/log"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"golang.org/x/sync/errgroup"

	"github.com/coreman2200/shadecore/internal/config"
	"github.com/coreman2200/shadecore/internal/engine"
	"github.com/coreman2200/shadecore/internal/gpu"
	"github.com/coreman2200/shadecore/internal/hotkey"
	"github.com/coreman2200/shadecore/internal/logging"
	"github.com/coreman2200/shadecore/internal/output"
	"github.com/coreman2200/shadecore/internal/render"
	"github.com/coreman2200/shadecore/internal/render/shaders/grad"
	"github.com/coreman2200/shadecore/internal/render/shaders/solid"
	"github.com/coreman2200/shadecore/internal/watch"
	"github.com/coreman2200/shadecore/internal/ws"
)

func main() {
	var (
		assetsDir = flag.String("assets", "", "assets directory (default: $SHADECORE_ASSETS, else ./assets or a parent's)")
		strict    = flag.Bool("strict", false, "reject unknown fields in config files")
		addr      = flag.String("addr", ":8080", "HTTP listen address for the control surface; empty disables it")
		fps       = flag.Int("fps", 60, "render loop frames per second")
		window    = flag.String("window", "1280x720", "preview window size WxH")
		toneMap   = flag.Bool("tonemap", false, "apply the filmic tone map (u_exposure, u_gamma)")
		logLevel  = flag.String("log-level", "info", "trace|debug|info|warn|error")
		logFile   = flag.String("log-file", "", "also append logs to this file")
		noColor   = flag.Bool("no-color", false, "plain console logs")
		noMIDI    = flag.Bool("no-midi", false, "do not open MIDI input")
		noKeys    = flag.Bool("no-keys", false, "do not read hotkeys from the terminal")
		noWatch   = flag.Bool("no-watch", false, "do not hot-reload config files")
	)
	flag.Parse()

	// ---- Logging ----
	run, closer, err := logging.Init(logging.Options{Level: *logLevel, File: *logFile, NoColor: *noColor})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer closer.Close()

	// ---- Assets ----
	assets, err := locateAssets(*assetsDir)
	if err != nil {
		log.Error().Err(err).Msg("assets directory not found")
		return
	}
	mode := config.Lenient
	if *strict {
		mode = config.Strict
	}
	log.Info().Str("tag", "CONFIG").Str("assets", assets.Dir).Bool("strict", *strict).
		Str("session", run.SessionID("run")).Msg("starting shadecore")

	// ---- Renderers ----
	reg := render.NewRegistry()
	reg.Register(grad.New("default"))
	reg.Register(solid.New("solid", render.Color{R: 1, G: 1, B: 1}))

	// ---- Control surface (frames, diagnostics) ----
	surface := ws.NewState(nil)

	opts := engine.Options{
		Assets:   assets,
		Mode:     mode,
		Device:   gpu.NewSoft(),
		Registry: reg,
		// Syphon and Spout bindings are supplied here by hosts that link them.
		Output:   output.Options{Publisher: surface},
		FPS:      *fps,
		ToneMap:  *toneMap,
		Run:      run,
		OnEvent:  surface.Emit,
	}
	if _, err := fmt.Sscanf(*window, "%dx%d", &opts.Window.X, &opts.Window.Y); err != nil {
		log.Warn().Str("window", *window).Msg("bad -window; using 1280x720")
		opts.Window = image.Point{}
	}
	if !*noMIDI {
		drv, err := rtmididrv.New()
		if err != nil {
			log.Warn().Err(err).Str("tag", "MIDI").Msg("MIDI backend unavailable; continuing without MIDI")
		} else {
			defer drv.Close()
			opts.MIDI = drv
		}
	}

	eng, err := engine.New(opts)
	if err != nil {
		log.Error().Err(err).Msg("engine init failed")
		return
	}
	surface.Attach(eng)

	// ---- Run ----
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	var changes <-chan struct{}
	if !*noWatch {
		w, err := watch.New(assets.Dir)
		if err != nil {
			log.Warn().Err(err).Str("tag", "HOT").Msg("watcher unavailable; hot reload disabled")
		} else {
			defer w.Close()
			changes = w.C
			g.Go(func() error { return w.Run(ctx) })
		}
	}

	if !*noKeys {
		term := &hotkey.Terminal{}
		defer term.Close()
		keys := make(chan string, 16)
		g.Go(func() error {
			if err := term.Run(ctx, keys); err != nil {
				log.Warn().Err(err).Str("tag", "INPUT").Msg("terminal hotkeys unavailable")
			}
			return nil
		})
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case k := <-keys:
					eng.Key(k)
				}
			}
		})
	}

	if *addr != "" {
		srv := &http.Server{
			Addr:         *addr,
			Handler:      withCORS(surface.Handler()),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		g.Go(func() error { return surface.RunDiag(ctx) })
		g.Go(func() error {
			log.Info().Str("addr", *addr).Msg("HTTP server starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return srv.Close()
		})
	}

	// The render loop owns the engine; when it returns everything else stops.
	g.Go(func() error {
		defer cancel()
		return eng.Run(ctx, changes)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("stopped with error")
	}
	log.Info().Msg("shutting down")
	if err := eng.Close(); err != nil {
		log.Warn().Err(err).Msg("shutdown incomplete")
	}
}

func locateAssets(flagDir string) (config.Assets, error) {
	if flagDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return config.Assets{}, err
		}
		return config.Discover(wd)
	}
	p, err := homedir.Expand(flagDir)
	if err != nil {
		return config.Assets{}, err
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return config.Assets{}, err
	}
	if st, err := os.Stat(abs); err != nil || !st.IsDir() {
		return config.Assets{}, &config.Error{Kind: config.AssetsNotFound, Path: abs, Msg: "not a directory"}
	}
	return config.Assets{Dir: abs}, nil
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		h.ServeHTTP(w, r)
	})
}
