package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Prescription.Timeout)
	assert.Equal(t, 60*time.Second, cfg.Insurance.CertificateTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
}

func TestLoadMergesDefaultsUnderUserValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
insurance:
  timeout: 10s
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Insurance.Timeout)
	// Untouched fields keep defaults.
	assert.Equal(t, 60*time.Second, cfg.Insurance.CertificateTimeout)
	assert.Equal(t, "llava:13b", cfg.Ollama.VisionModel)
}

func TestLoadExpandsEnvironmentReferences(t *testing.T) {
	t.Setenv("TEST_MCP_URL", "http://mcp.internal:8002")
	path := writeConfig(t, `
insurance:
  url: "{{.TEST_MCP_URL}}"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://mcp.internal:8002", cfg.Insurance.URL)
}

func TestEnvOverridesWinOverYAML(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "http://ollama.cluster:11434")
	t.Setenv("PRESCRIPTION_ENGINE_URL", "http://rag.cluster:8081")
	path := writeConfig(t, `
ollama:
  host: "http://from-yaml:11434"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://ollama.cluster:11434", cfg.Ollama.Host)
	assert.Equal(t, "http://rag.cluster:8081", cfg.Prescription.URL)
}

func TestValidateRejectsNonPositiveTimeouts(t *testing.T) {
	path := writeConfig(t, `
prescription:
  timeout: -5s
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prescription.timeout")
}

func TestExpandEnvPreservesPlainDollar(t *testing.T) {
	t.Setenv("SOME_VAR", "value")
	in := []byte(`pattern: "^secret.*$"` + "\n" + `host: "{{.SOME_VAR}}"`)
	out := ExpandEnv(in)
	assert.Contains(t, string(out), "^secret.*$")
	assert.Contains(t, string(out), "value")
}
