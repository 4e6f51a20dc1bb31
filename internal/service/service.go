package service

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"

	"github.com/dimkroon/translate-subs/internal/apperr"
	"github.com/dimkroon/translate-subs/internal/config"
	"github.com/dimkroon/translate-subs/internal/jobs"
	"github.com/dimkroon/translate-subs/internal/llm"
	"github.com/dimkroon/translate-subs/internal/pipeline"
	"github.com/dimkroon/translate-subs/internal/subtitle"
	"github.com/dimkroon/translate-subs/internal/translator"
	"github.com/dimkroon/translate-subs/pkg/file"
	"github.com/dimkroon/translate-subs/pkg/icron"
	"github.com/dimkroon/translate-subs/pkg/log"
	"github.com/robfig/cron/v3"
)

// CacheStore is the persistent unit translation cache.
type CacheStore interface {
	translator.Cache
	DeleteCacheBefore(ctx context.Context, before time.Time) (int64, error)
}

// TransService owns the job queue executor, the scheduled scan of the
// watch directories and runtime reconfiguration.
type TransService struct {
	mu              sync.RWMutex
	cfg             config.Config
	cronExpr        string
	cron            *cron.Cron
	scanEntry       cron.EntryID
	lastTriggerTime time.Time
	scheduleCtx     context.Context

	jobQueue  *jobs.Queue
	cache     CacheStore
	newClient func(cfg config.Config) (translator.Client, error)
	last      *FileTranslator

	group singleflight.Group
}

type Option func(*TransService)

// WithCache stores unit translations in cache and lets the schedule clean it.
func WithCache(cache CacheStore) Option {
	return func(s *TransService) {
		s.cache = cache
	}
}

// WithClientFactory replaces the LLM backed client.
func WithClientFactory(newClient func(cfg config.Config) (translator.Client, error)) Option {
	return func(s *TransService) {
		s.newClient = newClient
	}
}

func NewTransService(cfg config.Config, cron *cron.Cron, queue *jobs.Queue, opts ...Option) *TransService {
	s := &TransService{
		cfg:       cfg,
		cronExpr:  cfg.Translate.CronExpr,
		cron:      cron,
		jobQueue:  queue,
		newClient: newLLMClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newLLMClient(cfg config.Config) (translator.Client, error) {
	llmCfg := &llm.Config{
		APIKey:      cfg.LLM.APIKey,
		APIURL:      cfg.LLM.APIURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		AppName:     "translate-subs",
	}

	var (
		chat translator.ChatClient
		err  error
	)
	switch cfg.LLM.Provider {
	case config.ProviderGemini:
		chat, err = llm.NewGeminiClient(context.Background(), llmCfg)
	default:
		chat, err = llm.NewClient(llmCfg)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindConfig, "failed to create LLM client").WithContext("provider", cfg.LLM.Provider)
	}
	return translator.NewLLMClient(chat), nil
}

// backendName keys cached translations by provider and model.
func backendName(cfg config.Config) string {
	provider := cfg.LLM.Provider
	if provider == "" {
		provider = config.ProviderOpenAI
	}
	return provider + "/" + cfg.LLM.Model
}

// Config returns a copy of the current configuration.
func (s *TransService) Config() config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Schedule registers the watch directory scan and the daily cache cleanup.
func (s *TransService) Schedule(ctx context.Context) error {
	log.Info("Scheduling watch directory scan: %s", s.cronExpr)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.scheduleCtx = ctx
	id, err := s.cron.AddFunc(s.cronExpr, func() { s.trigger(ctx) })
	if err != nil {
		return apperr.Wrap(err, apperr.KindConfig, "invalid cron expression").WithContext("cron", s.cronExpr)
	}
	s.scanEntry = id

	if s.cache != nil {
		if _, err := s.cron.AddFunc("@daily", func() {
			if _, err := s.CleanupCache(ctx, DefaultCacheMaxAge); err != nil {
				log.Error("Cache cleanup failed: %v", err)
			}
		}); err != nil {
			return err
		}
	}
	return nil
}

// trigger runs one scan; overlapping triggers share the running scan.
func (s *TransService) trigger(ctx context.Context) {
	_, _, _ = s.group.Do("scan", func() (any, error) {
		n, err := s.ScanOnce(ctx)
		if err != nil {
			log.Error("Scan failed: %v", err)
		}
		return n, err
	})
}

// ScanOnce enqueues every subtitle file in the watch directories modified
// since the last scan and returns how many jobs were created.
func (s *TransService) ScanOnce(ctx context.Context) (int, error) {
	cfg := s.Config()
	since, err := s.startTime()
	if err != nil {
		return 0, err
	}
	now := time.Now()

	created := 0
	for _, dir := range cfg.Media.WatchDirs {
		if ctx.Err() != nil {
			return created, ctx.Err()
		}
		if _, err := os.Stat(dir); err != nil {
			log.Error("Watch directory %s is not available: %v", dir, err)
			continue
		}

		found, err := file.FindRecentAfter(dir, since, subtitle.IsSubtitleFile)
		if err != nil {
			log.Error("Failed to scan %s: %v", dir, err)
			continue
		}
		log.Info("Found %d subtitle files in %s modified after %v", len(found), dir, since)

		for _, path := range found {
			if isTranslationOutput(path, cfg.Translate.TargetLanguage) {
				continue
			}
			if _, ok, err := s.Enqueue(SourceCron, path, cfg.Translate.TargetLanguage); err != nil {
				log.Warn("Not enqueuing %s: %v", path, err)
			} else if ok {
				created++
			}
		}
	}

	s.mu.Lock()
	s.lastTriggerTime = now
	s.mu.Unlock()
	return created, nil
}

// isTranslationOutput reports whether path is a file this service wrote.
func isTranslationOutput(path string, target language.Tag) bool {
	return OutputPath(path, "", target) == path
}

// startTime is the last scan, or on the first scan the previous cron
// trigger, looking back at least a week.
func (s *TransService) startTime() (time.Time, error) {
	s.mu.RLock()
	last, expr := s.lastTriggerTime, s.cronExpr
	s.mu.RUnlock()

	if !last.IsZero() {
		return last, nil
	}

	info, err := icron.GetTriggerInfo(expr, time.Now())
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get cron schedule: %w", err)
	}
	weekAgo := time.Now().Add(-7 * 24 * time.Hour)
	if info.Last.IsZero() || info.Last.After(weekAgo) {
		return weekAgo, nil
	}
	return info.Last, nil
}

// Enqueue adds a translation job for path. Manual, cron and watcher
// requests for the same file and language share one job.
func (s *TransService) Enqueue(source string, path string, target language.Tag) (*jobs.TranslationJob, bool, error) {
	if !subtitle.IsSubtitleFile(path) {
		return nil, false, apperr.New(apperr.KindValidation, "unsupported subtitle format").WithContext("path", path)
	}
	if target == language.Und {
		target = s.Config().Translate.TargetLanguage
	}

	payload := jobs.JobPayload{SubtitleFile: path, TargetLanguage: target.String()}
	job, created := s.jobQueue.Enqueue(jobs.EnqueueRequest{
		Source:    source,
		DedupeKey: payload.DedupeKey(),
		Payload:   payload,
	})
	if created {
		log.Info("Enqueued %s job %s for %s", source, job.ID, path)
	}
	return job, created, nil
}

// HandleNewFile enqueues a subtitle file reported by the directory watcher.
func (s *TransService) HandleNewFile(ctx context.Context, path string) error {
	target := s.Config().Translate.TargetLanguage
	if isTranslationOutput(path, target) {
		log.Debug("Ignoring translation output %s", path)
		return nil
	}
	_, _, err := s.Enqueue(SourceWatch, path, target)
	return err
}

// Execute is the queue executor: it translates the job's file.
func (s *TransService) Execute(ctx context.Context, job *jobs.TranslationJob) (jobs.Outcome, error) {
	cfg := s.Config()

	settings := cfg.Settings()
	if job.Payload.TargetLanguage != "" {
		tag, err := language.Parse(job.Payload.TargetLanguage)
		if err != nil {
			return jobs.Outcome{}, apperr.ConfigurationError(fmt.Sprintf("invalid target language %q", job.Payload.TargetLanguage))
		}
		settings.TargetLanguage = tag
	}

	client, err := s.newClient(cfg)
	if err != nil {
		return jobs.Outcome{}, err
	}
	if s.cache != nil {
		client = translator.NewCachedClient(client, s.cache,
			translator.WithBackend(backendName(cfg)),
			translator.WithCallTimeout(cfg.Translate.Timeout()),
		)
	}

	ft := NewFileTranslator(TranslatorConfig{
		Settings:    settings,
		OutputDir:   cfg.Media.OutputDir,
		Concurrency: cfg.Translate.Concurrency,
		Timeout:     cfg.Translate.Timeout(),
		Backoff:     cfg.Translate.Backoff(),
		Model:       cfg.LLM.Model,
	}, client)

	s.mu.Lock()
	s.last = ft
	s.mu.Unlock()

	res, err := ft.Translate(ctx, job.Payload.SubtitleFile)
	if err != nil {
		if ctx.Err() == nil {
			apperr.Log(fmt.Errorf("job %s: %w", job.ID, err))
		}
		return jobs.Outcome{}, err
	}
	return jobs.Outcome{
		OutputFile:  res.OutputPath,
		FailedUnits: res.Metadata.FailedUnits,
		Skipped:     res.Skipped,
	}, nil
}

// Snapshot returns the cue window of the most recent job, or nil.
func (s *TransService) Snapshot() *pipeline.Snapshot {
	s.mu.RLock()
	ft := s.last
	s.mu.RUnlock()
	if ft == nil {
		return nil
	}
	return ft.Snapshot()
}

// ExportDiagnostics writes the latest snapshot under the diagnostics dir.
func (s *TransService) ExportDiagnostics() (string, error) {
	dir, err := ExportDiagnostics(s.Config().System.DiagnosticsDir, s.Snapshot())
	if err != nil {
		return "", err
	}
	log.Info("Diagnostics exported to %s", dir)
	return dir, nil
}

// CleanupCache removes unit translations unused for longer than maxAge.
func (s *TransService) CleanupCache(ctx context.Context, maxAge time.Duration) (int64, error) {
	if s.cache == nil {
		return 0, nil
	}
	removed, err := s.cache.DeleteCacheBefore(ctx, time.Now().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	log.Info("Removed %d cached translations older than %v", removed, maxAge)
	return removed, nil
}

// ApplyRuntimeSettings merges next into the configuration and reschedules
// the scan when the cron expression changed. Running jobs keep the
// configuration they started with.
func (s *TransService) ApplyRuntimeSettings(next config.RuntimeSettings) error {
	if err := next.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.cfg
	config.WithRuntimeSettings(next)(&cfg)
	if err := cfg.Settings().Validate(); err != nil {
		return err
	}

	if cfg.Translate.CronExpr != s.cronExpr && s.scanEntry != 0 {
		ctx := s.scheduleCtx
		id, err := s.cron.AddFunc(cfg.Translate.CronExpr, func() { s.trigger(ctx) })
		if err != nil {
			return apperr.Wrap(err, apperr.KindConfig, "invalid cron expression").WithContext("cron", cfg.Translate.CronExpr)
		}
		s.cron.Remove(s.scanEntry)
		s.scanEntry = id
		log.Info("Rescheduled watch directory scan: %s", cfg.Translate.CronExpr)
	}

	s.cfg = cfg
	s.cronExpr = cfg.Translate.CronExpr
	return nil
}
