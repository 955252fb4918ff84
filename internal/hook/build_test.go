package hook

import (
	"context"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mescon/arrfinalize/internal/config"
	"github.com/mescon/arrfinalize/internal/crypto"
	"github.com/mescon/arrfinalize/internal/domain"
	"github.com/mescon/arrfinalize/internal/logger"
	"github.com/mescon/arrfinalize/internal/testutil"
)

func configFor(t *testing.T, fake *testutil.FakeRadarr) *config.Config {
	t.Helper()
	u, err := url.Parse(fake.URL())
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	cfg := config.NewTestConfig()
	cfg.RadarrHost = u.Hostname()
	cfg.RadarrPort = port
	cfg.RadarrAPIKey = fake.APIKey
	cfg.FFprobePath = "/nonexistent/ffprobe"
	return cfg
}

func TestResolveAPIKey(t *testing.T) {
	cfg := config.NewTestConfig()
	key, err := ResolveAPIKey(cfg)
	require.NoError(t, err)
	assert.Equal(t, "test-api-key", key)

	encrypted, err := crypto.NewKeyManager("secret").Encrypt("abc123")
	require.NoError(t, err)
	cfg.RadarrAPIKey = encrypted
	cfg.EncryptionKey = "secret"
	key, err = ResolveAPIKey(cfg)
	require.NoError(t, err)
	assert.Equal(t, "abc123", key)

	cfg.EncryptionKey = ""
	_, err = ResolveAPIKey(cfg)
	assert.ErrorIs(t, err, crypto.ErrNoEncryptionKey)
}

func TestBuild_EndToEnd(t *testing.T) {
	fake := testutil.NewFakeRadarr("radarr-key")
	defer fake.Close()
	fake.AddMovie(12, testutil.MovieRecord("Heat", true, false))

	km := crypto.NewKeyManager("secret")
	encrypted, err := km.Encrypt("radarr-key")
	require.NoError(t, err)

	cfg := configFor(t, fake)
	cfg.RadarrAPIKey = encrypted
	cfg.EncryptionKey = "secret"

	dir := t.TempDir()
	media := testutil.WriteFile(t, dir, "Heat.mkv", "video")
	testutil.WriteFile(t, dir, "Heat.en.srt", "english")

	events := testutil.NewEventRecorder()
	runner, err := Build(cfg, logger.Discard(), events, testutil.NewMockClock())
	require.NoError(t, err)

	code := runner.Run(context.Background(), Env{EventType: "Download", FilePath: media, MovieID: "12"})

	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, []string{"RescanMovie", "RescanMovie", "RenameMovie"}, fake.Commands())
	puts := fake.Puts()
	require.Len(t, puts, 1)
	assert.Equal(t, true, puts[0]["monitored"])
	assert.Equal(t, []string{"Heat.en.srt", "Heat.mkv"}, testutil.ListDir(t, dir))

	_, ok := events.Find(domain.SidecarRestored)
	assert.True(t, ok)
}

func TestBuild_MissingAPIKeyStillSucceeds(t *testing.T) {
	fake := testutil.NewFakeRadarr("radarr-key")
	defer fake.Close()

	cfg := configFor(t, fake)
	cfg.RadarrAPIKey = ""
	media := testutil.WriteFile(t, t.TempDir(), "Heat.mkv", "video")

	runner, err := Build(cfg, logger.Discard(), nil, testutil.NewMockClock())
	require.NoError(t, err)

	code := runner.Run(context.Background(), Env{FilePath: media, MovieID: "12"})
	assert.Equal(t, ExitSuccess, code)
	assert.Empty(t, fake.Requests())
}

func TestBuild_UndecryptableKey(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.RadarrAPIKey = crypto.EncryptedPrefix + "garbage"
	cfg.EncryptionKey = "secret"

	_, err := Build(cfg, logger.Discard(), nil, nil)
	assert.Error(t, err)
}
