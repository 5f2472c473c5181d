package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	t.Setenv(PassedConfigEnv, "")
	dir := filepath.Join(t.TempDir(), "nested")

	cfg := testConfig()
	cfg.Token = AuthToken{Token: "access", RefreshToken: "refresh"}
	require.NoError(t, Save(dir, cfg))

	info, err := os.Stat(Path(dir))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg.URL, loaded.URL)
	assert.Equal(t, "access", loaded.Token.Token)
	assert.Equal(t, cfg.Projects, loaded.Projects)
	assert.Equal(t, cfg.Clusters["default"].Presets, loaded.Clusters["default"].Presets)
}

func TestLoad_NotLoggedIn(t *testing.T) {
	t.Setenv(PassedConfigEnv, "")
	_, err := Load(t.TempDir())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestLoad_MissingURL(t *testing.T) {
	t.Setenv(PassedConfigEnv, "")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(Path(dir), []byte("cluster_name: x\n"), 0o600))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url")
}

func TestLoad_PassedConfig(t *testing.T) {
	encoded, err := Encode(testConfig())
	require.NoError(t, err)
	t.Setenv(PassedConfigEnv, encoded)

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "default", cfg.ClusterName)
}

func TestFromPassed_Invalid(t *testing.T) {
	_, err := FromPassed("!!not base64!!")
	assert.Error(t, err)
}

func TestRemove(t *testing.T) {
	t.Setenv(PassedConfigEnv, "")
	dir := t.TempDir()
	require.NoError(t, Save(dir, testConfig()))

	require.NoError(t, Remove(dir))
	require.NoError(t, Remove(dir), "second remove is a no-op")

	_, err := Load(dir)
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestDefaultDir_Env(t *testing.T) {
	t.Setenv(DirEnv, "/tmp/apolo-test")
	assert.Equal(t, "/tmp/apolo-test", DefaultDir())
}

func TestLoadSettings(t *testing.T) {
	t.Setenv("APOLO_CLUSTER", "from-env")
	t.Setenv("APOLO_ORG", "env-org")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("cluster", "", "")
	flags.String("org", "", "")
	flags.String("color", ColorAuto, "")
	flags.CountP("verbose", "v", "")
	require.NoError(t, flags.Parse([]string{"--cluster", "from-flag", "-vv"}))

	s, err := LoadSettings(flags)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", s.Cluster, "flags win over env")
	assert.Equal(t, "env-org", s.Org)
	assert.Equal(t, 2, s.Verbose)
	assert.Equal(t, ColorAuto, s.Color)
}

func TestLoadSettings_InvalidColor(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("color", ColorAuto, "")
	require.NoError(t, flags.Parse([]string{"--color", "sometimes"}))

	_, err := LoadSettings(flags)
	assert.Error(t, err)
}
