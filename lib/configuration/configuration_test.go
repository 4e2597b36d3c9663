package configuration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Server string `json:"server"`
	Port   int    `json:"port"`
}

func TestReadConfigMergesLocalOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")

	err := os.WriteFile(path, []byte(`{server: "smtp.example.com", port: 587}`), 0644)
	if err != nil {
		t.Fatal(err)
	}
	err = os.WriteFile(filepath.Join(dir, "config.local.json5"), []byte(`{port: 2525}`), 0644)
	if err != nil {
		t.Fatal(err)
	}

	config, err := ReadConfig[testConfig](path)
	require.NoError(t, err)
	require.Equal(t, "smtp.example.com", config.Server)
	require.Equal(t, 2525, config.Port)
}

func TestReadConfigLocalOnly(t *testing.T) {
	dir := t.TempDir()

	err := os.WriteFile(filepath.Join(dir, "config.local.json5"), []byte(`{server: "localhost"}`), 0644)
	if err != nil {
		t.Fatal(err)
	}

	config, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, "localhost", config.Server)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
