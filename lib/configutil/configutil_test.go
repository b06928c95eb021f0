package configutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Store struct {
		Url string `json:"url"`
	} `json:"store"`
	Port int `json:"port"`
	Cron string `json:"cron"`
}

func (c *testConfig) SetDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
}

func (c *testConfig) Validate() error {
	if c.Store.Url == "" {
		return errors.New("store.url is required")
	}
	return nil
}

func writeFile(t *testing.T, path, contents string) {
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "config.json5")
	writeFile(t, name, `{
		// comments and trailing commas are json5
		store: {url: "https://example.firebaseio.com"},
		cron: "5 */3 * * *",
	}`)
	writeFile(t, filepath.Join(dir, "config.local.json5"), `{port: 9000}`)

	cfg, err := ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, "https://example.firebaseio.com", cfg.Store.Url)
	require.Equal(t, "5 */3 * * *", cfg.Cron)
	require.Equal(t, 9000, cfg.Port)
}

func TestReadConfigDefaultsAndValidation(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "config.json5")

	writeFile(t, name, `{store: {url: "http://localhost:9000"}}`)
	cfg, err := ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Port)

	writeFile(t, name, `{port: 1}`)
	_, err = ReadConfig[testConfig](name)
	require.ErrorContains(t, err, "store.url is required")
}

func TestReadConfigNotFound(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.True(t, os.IsNotExist(err))
}

func TestReadRecursively(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	writeFile(t, filepath.Join(root, "telemetry.json5"), `{store: {url: "found"}}`)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(nested))
	t.Cleanup(func() { os.Chdir(wd) })

	cfg, err := ReadRecursively[testConfig]("telemetry.json5")
	require.NoError(t, err)
	require.Equal(t, "found", cfg.Store.Url)
}

func TestLocalPath(t *testing.T) {
	require.Equal(t, "dir/config.local.json5", LocalPath("dir/config.json5"))
}
