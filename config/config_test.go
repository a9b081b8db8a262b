package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir 切换到dir，测试结束后恢复
func chdir(t *testing.T, dir string) {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("threshold", "50MB", "")
	fs.String("output-dir", "", "")
	fs.Int64("max-envelope-bytes", 16<<20, "")
	fs.String("report", "", "")
	fs.Bool("clean", false, "")
	fs.String("log-level", "info", "")
	fs.String("log-format", "text", "")
	fs.String("log-file", "", "")
	return fs
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "50MB", cfg.Split.Threshold)
	assert.Equal(t, "", cfg.Split.OutputDir)
	assert.Equal(t, int64(16<<20), cfg.Split.MaxEnvelopeBytes)
	assert.False(t, cfg.Split.Clean)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 100, cfg.Log.MaxSizeMB)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	content := `split:
  threshold: 10MB
  output_dir: /tmp/parts
  clean: true
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tmxsplit.yaml"), []byte(content), 0o644))

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "10MB", cfg.Split.Threshold)
	assert.Equal(t, "/tmp/parts", cfg.Split.OutputDir)
	assert.True(t, cfg.Split.Clean)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	// 显式指定的文件
	explicit := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(explicit, []byte("split:\n  threshold: 1GB\n"), 0o644))
	cfg, err = Load(explicit, nil)
	require.NoError(t, err)
	assert.Equal(t, "1GB", cfg.Split.Threshold)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	chdir(t, t.TempDir())

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("TMXSPLIT_SPLIT_THRESHOLD", "128KB")
	t.Setenv("TMXSPLIT_LOG_LEVEL", "warn")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "128KB", cfg.Split.Threshold)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	// godotenv直接写入进程环境，先登记恢复
	t.Setenv("TMXSPLIT_SPLIT_OUTPUT_DIR", "")
	require.NoError(t, os.Unsetenv("TMXSPLIT_SPLIT_OUTPUT_DIR"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TMXSPLIT_SPLIT_OUTPUT_DIR=from-dotenv\n"), 0o644))

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Split.OutputDir)
}

func TestLoadFlagOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("TMXSPLIT_SPLIT_THRESHOLD", "128KB")

	fs := newFlags()
	require.NoError(t, fs.Parse([]string{"--threshold", "2MB", "--clean", "--log-format", "json"}))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, "2MB", cfg.Split.Threshold)
	assert.True(t, cfg.Split.Clean)
	assert.Equal(t, "json", cfg.Log.Format)
	// 未设置的参数不覆盖默认值
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadInvalid(t *testing.T) {
	chdir(t, t.TempDir())

	t.Run("log level", func(t *testing.T) {
		t.Setenv("TMXSPLIT_LOG_LEVEL", "verbose")
		_, err := Load("", nil)
		assert.Error(t, err)
	})

	t.Run("envelope limit", func(t *testing.T) {
		t.Setenv("TMXSPLIT_SPLIT_MAX_ENVELOPE_BYTES", "100")
		_, err := Load("", nil)
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Split: SplitConfig{Threshold: "64KB", MaxEnvelopeBytes: 1 << 20},
		Log:   LogConfig{Level: "info", Format: "text"},
	}
	assert.NoError(t, cfg.Validate())

	cfg.Split.Threshold = ""
	assert.Error(t, cfg.Validate())

	cfg.Split.Threshold = "64KB"
	cfg.Log.Format = "xml"
	assert.Error(t, cfg.Validate())
}
