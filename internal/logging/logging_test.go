package logging_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"pagecraft/internal/logging"
)

func TestMake_WritesJSONAtLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	lg, err := logging.New().FromWriter(buf).Level("info").Make()
	require.NoError(t, err)
	defer lg.Close()

	lg.Debug().Msg("hidden")
	require.Equal(t, 0, buf.Len())

	lg.Info().Str("family", "menu:main").Msg("session committed")
	require.Contains(t, buf.String(), `"family":"menu:main"`)
	require.Contains(t, buf.String(), `"message":"session committed"`)
}

func TestMake_AppendsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagecraft.log")
	lg, err := logging.New().FromPath(path).Level("debug").Make()
	require.NoError(t, err)
	lg.Debug().Msg("first")
	require.NoError(t, lg.Close())

	lg, err = logging.New().FromPath(path).Make()
	require.NoError(t, err)
	lg.Warn().Msg("second")
	require.NoError(t, lg.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), "first")
	require.Contains(t, string(b), "second")
}

func TestParseLevel(t *testing.T) {
	lvl, err := logging.ParseLevel("WARNING")
	require.NoError(t, err)
	require.Equal(t, zerolog.WarnLevel, lvl)

	_, err = logging.ParseLevel("")
	require.Error(t, err)
	_, err = logging.ParseLevel("loud")
	require.Error(t, err)
}
