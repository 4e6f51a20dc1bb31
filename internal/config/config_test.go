package config

import (
	"math"
	"testing"
	"time"

	"github.com/dimkroon/translate-subs/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestNewFromEnv_Defaults(t *testing.T) {
	t.Setenv("LLM_API_KEY", "test-key")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.System.HTTPAddr)
	assert.Equal(t, language.English, cfg.Translate.TargetLanguage)
	assert.Equal(t, 4, cfg.Translate.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Translate.Timeout())
	assert.Equal(t, 500*time.Millisecond, cfg.Translate.Backoff())
	assert.Equal(t, 1, cfg.System.JobWorkers)
	assert.Empty(t, cfg.Media.WatchDirs)
	assert.Equal(t, Settings{TargetLanguage: language.English}, cfg.Settings())
}

func TestNewFromEnv_Provider(t *testing.T) {
	t.Setenv("LLM_API_KEY", "test-key")

	cfg, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.LLM.APIURL)

	t.Setenv("LLM_PROVIDER", "Gemini")
	cfg, err = NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, cfg.LLM.Provider)
	assert.Equal(t, "https://generativelanguage.googleapis.com/", cfg.LLM.APIURL)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Model)

	t.Setenv("LLM_MODEL", "gemini-2.5-pro")
	cfg, err = NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.Model)
}

func TestNewFromEnv_FiltersAndWatchDirs(t *testing.T) {
	t.Setenv("LLM_API_KEY", "test-key")
	t.Setenv("FILTER_SOUND", "true")
	t.Setenv("FILTER_LYRICS", "1")
	t.Setenv("FILTER_COLOUR", "not-a-bool")
	t.Setenv("TARGET_LANGUAGE", "pt-BR")
	t.Setenv("WATCH_DIRS", " /media/a , ,/media/b")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	s := cfg.Settings()
	assert.True(t, s.FilterSound)
	assert.True(t, s.FilterLyrics)
	assert.False(t, s.FilterColour)
	assert.Equal(t, "pt-BR", s.TargetLanguage.String())
	assert.Equal(t, []string{"/media/a", "/media/b"}, cfg.Media.WatchDirs)
}

func TestNewFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing api key", env: map[string]string{"LLM_API_KEY": ""}},
		{name: "bad cron", env: map[string]string{"LLM_API_KEY": "k", "CRON_EXPR": "every day"}},
		{name: "zero concurrency", env: map[string]string{"LLM_API_KEY": "k", "TRANSLATE_CONCURRENCY": "0"}},
		{name: "negative min display", env: map[string]string{"LLM_API_KEY": "k", "MIN_DISPLAY_SECONDS": "-2"}},
		{name: "unknown provider", env: map[string]string{"LLM_API_KEY": "k", "LLM_PROVIDER": "deepl"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := NewFromEnv()
			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, apperr.KindConfig))
		})
	}
}

func TestSettings_Validate(t *testing.T) {
	valid := Settings{MinDisplaySeconds: 1.2, TargetLanguage: language.Dutch}
	require.NoError(t, valid.Validate())
	assert.Equal(t, 1200*time.Millisecond, valid.MinDisplay())

	for _, bad := range []Settings{
		{MinDisplaySeconds: -0.1, TargetLanguage: language.Dutch},
		{MinDisplaySeconds: math.NaN(), TargetLanguage: language.Dutch},
		{MinDisplaySeconds: math.Inf(1), TargetLanguage: language.Dutch},
		{MinDisplaySeconds: 0},
	} {
		err := bad.Validate()
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindConfig))
	}
}
