package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `yaml:"name"`
	Limit int    `yaml:"limit"`
}

func (s *sample) Validate() error {
	if s.Limit < 0 {
		return errors.New("limit must not be negative")
	}
	return nil
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "from-env")
	s := sample{Limit: 3}
	require.NoError(t, Load(writeFile(t, "name: ${SAMPLE_NAME}\n"), &s))
	assert.Equal(t, "from-env", s.Name)
	assert.Equal(t, 3, s.Limit, "fields absent from the file keep their value")
}

func TestLoadValidates(t *testing.T) {
	var s sample
	err := Load(writeFile(t, "limit: -1\n"), &s)
	assert.ErrorContains(t, err, "config validation failed")
}

func TestLoadMissingFile(t *testing.T) {
	var s sample
	err := Load(filepath.Join(t.TempDir(), "absent.yaml"), &s)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadOrDefault(t *testing.T) {
	s := sample{Name: "default"}
	require.NoError(t, LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"), &s))
	assert.Equal(t, "default", s.Name)

	bad := sample{Limit: -5}
	assert.Error(t, LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"), &bad))

	assert.Error(t, LoadOrDefault(writeFile(t, "name: [unterminated\n"), &s))
}
