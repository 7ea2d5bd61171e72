package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	for _, key := range []string{"ENV", "PORT", "LLM_PROVIDER", "LLM_MODEL", "OBJECT_STORE", "SESSION_TTL_MINUTES", "ANALYSIS_TIMEOUT_SECONDS", "GEMINI_API_KEY", "API_KEY"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "gemini", cfg.LLMProvider)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLMModel)
	assert.Equal(t, "local", cfg.ObjectStoreType)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Zero(t, cfg.AnalysisTimeout)
	assert.Empty(t, cfg.GeminiAPIKey)
}

func TestLoadFallsBackToAPIKey(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("API_KEY", "legacy-key")

	cfg := Load()
	assert.Equal(t, "legacy-key", cfg.GeminiAPIKey)
}

func TestLoadReadsEnvFileWithoutOverriding(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PORT=9999\nS3_PREFIX=\"clips/\"\nLLM_PROVIDER=placeholder\n"), 0o600))
	t.Setenv("PORT", "7000")
	t.Setenv("S3_PREFIX", "")
	t.Setenv("LLM_PROVIDER", "")
	os.Unsetenv("S3_PREFIX")
	os.Unsetenv("LLM_PROVIDER")

	cfg := Load()
	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, "clips/", cfg.S3Prefix)
	assert.Equal(t, "placeholder", cfg.LLMProvider)
}

func TestLoadParsesDurations(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ANALYSIS_TIMEOUT_SECONDS", "90")
	t.Setenv("SESSION_TTL_MINUTES", "5")
	t.Setenv("GEMINI_TIMEOUT_SECONDS", "bogus")

	cfg := Load()
	assert.Equal(t, 90*time.Second, cfg.AnalysisTimeout)
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 120*time.Second, cfg.GeminiTimeout)
}

func TestSplitAndTrim(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitAndTrim(" a, ,b ,"))
	assert.Nil(t, splitAndTrim(""))
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent to testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
