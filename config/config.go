package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration written as "1s", "500ms" in yaml.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Config struct {
	// control channel port shared by every node
	ControlPort int `yaml:"control_port"`
	// where viewers send requests, usually the LAN broadcast address
	Broadcast  string           `yaml:"broadcast"`
	Server     ServerConfig     `yaml:"server"`
	Viewer     ViewerConfig     `yaml:"viewer"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
}

type ServerConfig struct {
	// rpi, usb, usb-h264 or stdin
	Input  string `yaml:"input"`
	Device string `yaml:"device,omitempty"`
	// SI bit rate, i.e. 800k, 1M
	Bitrate      string   `yaml:"bitrate"`
	StartDelay   Duration `yaml:"start_delay"`
	PollInterval Duration `yaml:"poll_interval"`
}

type ViewerConfig struct {
	// window or raw
	Output   string `yaml:"output"`
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
	BasePort int    `yaml:"base_port"`
	MaxPort  int    `yaml:"max_port"`
	// local address is picked from this subnet, any interface when empty
	Subnet          string   `yaml:"subnet,omitempty"`
	CloseRepeat     int      `yaml:"close_repeat"`
	MonitorInterval Duration `yaml:"monitor_interval"`
}

type SupervisorConfig struct {
	Shell       string   `yaml:"shell"`
	GracePeriod Duration `yaml:"grace_period"`
}

func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.ControlPort == 0 {
		c.ControlPort = 5000
	}
	if c.Broadcast == "" {
		c.Broadcast = "255.255.255.255"
	}
	if c.Server.Input == "" {
		c.Server.Input = "usb"
	}
	if c.Server.Device == "" {
		c.Server.Device = "/dev/video0"
	}
	if c.Server.Bitrate == "" {
		c.Server.Bitrate = "1M"
	}
	if c.Server.StartDelay == 0 {
		c.Server.StartDelay = Duration(time.Second)
	}
	if c.Server.PollInterval == 0 {
		c.Server.PollInterval = Duration(50 * time.Millisecond)
	}
	if c.Viewer.Output == "" {
		c.Viewer.Output = "window"
	}
	if c.Viewer.Width == 0 {
		c.Viewer.Width = 320
	}
	if c.Viewer.Height == 0 {
		c.Viewer.Height = 240
	}
	if c.Viewer.BasePort == 0 {
		c.Viewer.BasePort = 5001
	}
	if c.Viewer.MaxPort == 0 {
		c.Viewer.MaxPort = 7000
	}
	if c.Viewer.CloseRepeat == 0 {
		c.Viewer.CloseRepeat = 3
	}
	if c.Viewer.MonitorInterval == 0 {
		c.Viewer.MonitorInterval = Duration(500 * time.Millisecond)
	}
	if c.Supervisor.Shell == "" {
		c.Supervisor.Shell = "/bin/sh"
	}
	if c.Supervisor.GracePeriod == 0 {
		c.Supervisor.GracePeriod = Duration(time.Second)
	}
}

func (c *Config) Validate() error {
	if c.ControlPort < 1 || c.ControlPort > 65535 {
		return fmt.Errorf("control_port %d out of range", c.ControlPort)
	}
	if c.Viewer.BasePort < 1 || c.Viewer.MaxPort > 65535 || c.Viewer.BasePort > c.Viewer.MaxPort {
		return fmt.Errorf("invalid viewer port range %d-%d", c.Viewer.BasePort, c.Viewer.MaxPort)
	}
	if c.Viewer.BasePort <= c.ControlPort && c.ControlPort <= c.Viewer.MaxPort {
		return fmt.Errorf("viewer port range %d-%d overlaps control_port %d",
			c.Viewer.BasePort, c.Viewer.MaxPort, c.ControlPort)
	}
	if c.Viewer.Width <= 0 || c.Viewer.Height <= 0 {
		return fmt.Errorf("invalid viewer resolution %dx%d", c.Viewer.Width, c.Viewer.Height)
	}
	if c.Viewer.CloseRepeat < 1 {
		return errors.New("close_repeat must be at least 1")
	}
	return nil
}

// DefaultPath is $HOME/.config/camcast/camcast.yml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "camcast", "camcast.yml"), nil
}

// Load reads the config at path. With an empty path the default location
// is used, and created with default values if it does not exist yet; the
// written file is echoed to echo.
func Load(path string, echo io.Writer) (*Config, error) {
	if path != "" {
		return decodeFile(path)
	}
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	c, err := decodeFile(path)
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return c, err
	}
	c = Default()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	enc := yaml.NewEncoder(&teeWriter{f: f, echo: echo})
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	return c, enc.Close()
}

func decodeFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	c := &Config{}
	if err := yaml.NewDecoder(f).Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.applyDefaults()
	return c, c.Validate()
}

// teeWriter writes the generated config file and shows it to the user.
type teeWriter struct {
	f    *os.File
	echo io.Writer
}

func (w *teeWriter) Write(p []byte) (n int, err error) {
	if w.echo != nil {
		w.echo.Write(p)
	}
	return w.f.Write(p)
}
