package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camcast.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
control_port: 4000
server:
  input: rpi
  start_delay: 250ms
viewer:
  output: raw
  width: 640
  height: 480
`), 0644))

	c, err := Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, 4000, c.ControlPort)
	require.Equal(t, "255.255.255.255", c.Broadcast)
	require.Equal(t, "rpi", c.Server.Input)
	require.Equal(t, 250*time.Millisecond, c.Server.StartDelay.Std())
	require.Equal(t, 50*time.Millisecond, c.Server.PollInterval.Std())
	require.Equal(t, "raw", c.Viewer.Output)
	require.Equal(t, 640, c.Viewer.Width)
	require.Equal(t, 5001, c.Viewer.BasePort)
	require.Equal(t, 3, c.Viewer.CloseRepeat)
	require.Equal(t, time.Second, c.Supervisor.GracePeriod.Std())
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yml")
	require.NoError(t, os.WriteFile(path, nil, 0644))
	c, err := Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, Default(), c)
}

func TestLoadRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"duration": "server:\n  start_delay: soon\n",
		"overlap":  "control_port: 5500\n",
		"range":    "viewer:\n  base_port: 7000\n  max_port: 6000\n",
	} {
		path := filepath.Join(dir, name+".yml")
		require.NoError(t, os.WriteFile(path, []byte(body), 0644))
		_, err := Load(path, nil)
		require.Error(t, err, name)
	}
	_, err := Load(filepath.Join(dir, "missing.yml"), nil)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadInitializesDefaultFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	var echo bytes.Buffer
	c, err := Load("", &echo)
	require.NoError(t, err)
	require.Equal(t, Default(), c)
	require.Contains(t, echo.String(), "control_port: 5000")
	require.Contains(t, echo.String(), "start_delay: 1s")

	written := filepath.Join(home, ".config", "camcast", "camcast.yml")
	reloaded, err := Load(written, nil)
	require.NoError(t, err)
	require.Equal(t, c, reloaded)
}

func TestNewLogger(t *testing.T) {
	var out bytes.Buffer
	logger, err := NewLogger("debug", &out)
	require.NoError(t, err)
	require.Equal(t, logrus.DebugLevel, logger.GetLevel())
	logger.WithField("port", 5001).Debug("hello")
	require.Contains(t, out.String(), "port=5001")

	_, err = NewLogger("chatty", nil)
	require.Error(t, err)
}
