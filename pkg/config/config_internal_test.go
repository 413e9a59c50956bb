//
//  Copyright © Manetu Inc. All rights reserved.
//

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfigPath(t *testing.T) {
	t.Setenv(ConfigPathEnv, "/custom/config/path")
	assert.Equal(t, "/custom/config/path", getConfigPath())

	require.NoError(t, os.Unsetenv(ConfigPathEnv))
	assert.Equal(t, ConfigDefaultPath, getConfigPath())
}

func TestGetConfigFileName(t *testing.T) {
	t.Setenv(ConfigFileNameEnv, "custom-config-name")
	assert.Equal(t, "custom-config-name", getConfigFileName())

	require.NoError(t, os.Unsetenv(ConfigFileNameEnv))
	assert.Equal(t, ConfigDefaultFilename, getConfigFileName())
}

func TestParseDownwardAPIFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "labels")
	require.NoError(t, os.WriteFile(p, []byte("a=\"1\"\n\nb=2\n=orphan\nnoequals\n"), 0o600))

	values, err := parseDownwardAPIFile(p)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, values)

	values, err = parseDownwardAPIFile(filepath.Join(dir, "missing"))
	assert.NoError(t, err)
	assert.Nil(t, values)
}
