package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/dimkroon/translate-subs/internal/auth"
	"github.com/dimkroon/translate-subs/internal/config"
	"github.com/dimkroon/translate-subs/internal/httpapi"
	"github.com/dimkroon/translate-subs/internal/jobs"
	"github.com/dimkroon/translate-subs/internal/persistence"
	"github.com/dimkroon/translate-subs/internal/service"
	"github.com/dimkroon/translate-subs/internal/subtitle"
	"github.com/dimkroon/translate-subs/internal/watcher"
	"github.com/dimkroon/translate-subs/pkg/log"
)

type scheduler interface {
	Schedule(ctx context.Context) error
}

type cronEngine interface {
	Start()
	Stop() context.Context
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

type fileWatcher interface {
	Start(ctx context.Context) error
	Stop() error
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("Failed to load .env: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := issueToken(os.Args[2:], os.Stdout); err != nil {
			log.Fatal("translate-subs token: %v", err)
		}
		return
	}

	if err := run(ctx); err != nil {
		log.Fatal("translate-subs: %v", err)
	}
}

// issueToken prints a bearer token for the HTTP API signed with
// API_JWT_SECRET.
func issueToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	subject := fs.String("subject", "operator", "token subject")
	ttl := fs.Duration("ttl", 30*24*time.Hour, "token lifetime, 0 for no expiry")
	if err := fs.Parse(args); err != nil {
		return err
	}

	tokens, err := auth.NewTokenService(os.Getenv("API_JWT_SECRET"))
	if err != nil {
		return fmt.Errorf("API_JWT_SECRET: %w", err)
	}
	token, err := tokens.Issue(*subject, *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

func run(ctx context.Context) error {
	settingsPath := config.RuntimeSettingsFilePath()
	var opts []config.Option
	if saved, err := config.LoadRuntimeSettingsFile(settingsPath); err == nil {
		opts = append(opts, config.WithRuntimeSettings(saved))
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	cfg, err := config.NewFromEnv(opts...)
	if err != nil {
		return err
	}
	level := log.ParseLevel(cfg.System.LogLevel)
	if cfg.System.LogFile != "" {
		closeLog, err := log.InitFileLogger(cfg.System.LogFile, level)
		if err != nil {
			return err
		}
		defer closeLog()
	} else {
		log.InitLogger(level)
	}

	settingsStore, err := config.NewRuntimeSettingsStore(settingsPath, cfg.RuntimeSettings())
	if err != nil {
		return err
	}

	store, err := persistence.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		return err
	}
	defer store.Close()

	queue := jobs.NewQueue(cfg.System.JobWorkers, store)
	engine := cron.New()
	svc := service.NewTransService(*cfg, engine, queue, service.WithCache(store))

	queue.Start(svc.Execute)
	defer queue.Stop()

	var fw fileWatcher
	if len(cfg.Media.WatchDirs) > 0 {
		w, err := watcher.New(cfg.Media.WatchDirs, subtitle.IsSubtitleFile, svc.HandleNewFile, watcher.DefaultSettle)
		if err != nil {
			return err
		}
		fw = w
	}

	apiOpts := []httpapi.Option{
		httpapi.WithRuntimeSettingsStore(settingsStore),
		httpapi.WithRuntimeSettingsApplier(svc.ApplyRuntimeSettings),
		httpapi.WithAllowedOrigins(cfg.System.CORSOrigins),
		httpapi.WithUI(cfg.System.UIStaticDir, cfg.System.UIStaticDir != ""),
	}
	if cfg.System.APISecret != "" {
		tokens, err := auth.NewTokenService(cfg.System.APISecret)
		if err != nil {
			return err
		}
		apiOpts = append(apiOpts, httpapi.WithTokenValidator(tokens))
	} else {
		log.Warn("API_JWT_SECRET is not set, the HTTP API is unauthenticated")
	}
	server := httpapi.NewServer(svc, queue, apiOpts...)

	return runWithComponents(ctx, cfg, svc, engine, server, fw)
}

// runWithComponents starts the schedule, the watcher and the HTTP server
// and blocks until ctx is done or the server fails.
func runWithComponents(ctx context.Context, cfg *config.Config, sched scheduler, engine cronEngine, server httpServer, fw fileWatcher) error {
	if err := sched.Schedule(ctx); err != nil {
		return err
	}
	engine.Start()
	defer func() {
		<-engine.Stop().Done()
	}()

	if fw != nil {
		go func() {
			if err := fw.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("File watcher stopped: %v", err)
			}
		}()
		defer fw.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP API listening on %s", cfg.System.HTTPAddr)
		errCh <- server.ListenAndServe(cfg.System.HTTPAddr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
