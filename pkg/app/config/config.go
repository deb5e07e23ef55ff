package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/womat/debug"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v2"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the application configuration.
// Config defines the struct of global config and the struct of the configuration file
type Config struct {
	Peer      string          `yaml:"peer"`
	Port      int             `yaml:"port"`
	Gpio      GpioConfig      `yaml:"gpio"`
	Audio     AudioConfig     `yaml:"audio"`
	Ring      RingConfig      `yaml:"ring"`
	Flag      FlagConfig      `yaml:"-"`
	Debug     DebugConfig     `yaml:"debug"`
	Webserver WebserverConfig `yaml:"webserver"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	History   HistoryConfig   `yaml:"history"`
}

// FlagConfig defines the configured flags (parameters)
type FlagConfig struct {
	ConfigFile string
	LogLevel   string
	Peer       string
}

// GpioConfig defines the gpio line of the call switch.
type GpioConfig struct {
	Driver    string `yaml:"driver"`
	Chip      string `yaml:"chip"`
	Pin       int    `yaml:"pin"`
	Bias      string `yaml:"bias"`
	ActiveLow bool   `yaml:"activelow"`
}

// AudioConfig defines the pcm format and the commands of the audio devices.
// An empty headset or speaker command discards the audio.
type AudioConfig struct {
	Rate     int    `yaml:"rate"`
	Channels int    `yaml:"channels"`
	Chunk    int    `yaml:"chunk"`
	Capture  string `yaml:"capture"`
	Headset  string `yaml:"headset"`
	Speaker  string `yaml:"speaker"`
}

// RingConfig defines the timing of the control loop.
type RingConfig struct {
	ToneInt        int           `yaml:"tone"`
	Tone           time.Duration `yaml:"-"`
	RetransmitInt  int           `yaml:"retransmit"`
	Retransmit     time.Duration `yaml:"-"`
	NapInt         int           `yaml:"nap"`
	Nap            time.Duration `yaml:"-"`
	PollTimeoutInt int           `yaml:"polltimeout"`
	PollTimeout    time.Duration `yaml:"-"`
}

// WebserverConfig defines the struct of the webserver and webservice configuration and configuration file
type WebserverConfig struct {
	URL         string          `yaml:"url"`
	Webservices map[string]bool `yaml:"webservices"`
}

// MQTTConfig defines the struct of the mqtt client configuration and configuration file
type MQTTConfig struct {
	Connection string `yaml:"connection"`
	Topic      string `yaml:"topic"`
}

// HistoryConfig defines the call history database, an empty path keeps the history in memory.
type HistoryConfig struct {
	Path  string `yaml:"path"`
	Limit int    `yaml:"limit"`
}

// DebugConfig defines the struct of the debug configuration and configuration file
type DebugConfig struct {
	File       io.WriteCloser `yaml:"-"`
	Flag       int            `yaml:"-"`
	FlagString string         `yaml:"flag"`
	FileString string         `yaml:"file"`
	// MaxSize is the size in megabytes of a log file before it gets rotated.
	MaxSize    int `yaml:"maxsize"`
	MaxBackups int `yaml:"maxbackups"`
}

func NewConfig() *Config {
	return &Config{
		Port: 5060,
		Gpio: GpioConfig{
			Driver: "gpiod",
			Chip:   "gpiochip0",
			Pin:    17,
			Bias:   "pullup",
		},
		Audio: AudioConfig{
			Rate:     48000,
			Channels: 1,
			Chunk:    1920,
			Capture:  "arecord -q -t raw -f S16_LE -c 1 -r 48000",
			Headset:  "aplay -q -t raw -f S16_LE -c 1 -r 48000",
			Speaker:  "aplay -q -t raw -f S16_LE -c 1 -r 48000",
		},
		Ring: RingConfig{
			ToneInt:        4000,
			RetransmitInt:  100,
			NapInt:         100,
			PollTimeoutInt: 1,
		},
		Debug: DebugConfig{
			FileString: "stderr",
			FlagString: "standard",
			MaxSize:    10,
			MaxBackups: 3,
		},
		Webserver: WebserverConfig{
			URL: "http://0.0.0.0:4000",
			Webservices: map[string]bool{
				"version": true,
				"health":  true,
				"state":   true,
				"calls":   true,
			},
		},
		MQTT: MQTTConfig{
			Topic: "intercom/state",
		},
		History: HistoryConfig{
			Limit: 1000,
		},
	}
}

// LoadConfig reads the config file, applies the command line flags and checks the result.
func (c *Config) LoadConfig() error {
	if err := c.readConfigFile(); err != nil {
		return fmt.Errorf("error reading config file %q: %w", c.Flag.ConfigFile, err)
	}

	if c.Flag.LogLevel != "" {
		c.Debug.FlagString = c.Flag.LogLevel
	}
	if c.Flag.Peer != "" {
		c.Peer = c.Flag.Peer
	}

	c.Ring.Tone = time.Duration(c.Ring.ToneInt) * time.Millisecond
	c.Ring.Retransmit = time.Duration(c.Ring.RetransmitInt) * time.Millisecond
	c.Ring.Nap = time.Duration(c.Ring.NapInt) * time.Millisecond
	c.Ring.PollTimeout = time.Duration(c.Ring.PollTimeoutInt) * time.Millisecond

	if err := c.validate(); err != nil {
		return err
	}

	if err := c.setDebugConfig(); err != nil {
		return fmt.Errorf("unable to open debug file %q: %w", c.Debug.FileString, err)
	}

	return nil
}

// PeerAddress returns the address of the peer, the port defaults to the local port.
func (c *Config) PeerAddress() string {
	if _, _, err := net.SplitHostPort(c.Peer); err == nil {
		return c.Peer
	}
	return net.JoinHostPort(c.Peer, strconv.Itoa(c.Port))
}

func (c *Config) readConfigFile() error {
	file, err := os.Open(c.Flag.ConfigFile)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	decoder := yaml.NewDecoder(file)
	if err = decoder.Decode(c); err != nil {
		return err
	}

	return nil
}

func (c *Config) validate() error {
	switch {
	case c.Peer == "":
		return fmt.Errorf("%w: no peer defined", ErrInvalidConfig)
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("%w: port %d", ErrInvalidConfig, c.Port)
	case c.Audio.Rate <= 0 || c.Audio.Channels <= 0:
		return fmt.Errorf("%w: audio format %d Hz, %d channels", ErrInvalidConfig, c.Audio.Rate, c.Audio.Channels)
	case c.Audio.Chunk <= 0 || c.Audio.Chunk%(2*c.Audio.Channels) != 0:
		return fmt.Errorf("%w: audio chunk %d isn't a multiple of the frame size", ErrInvalidConfig, c.Audio.Chunk)
	case c.Ring.Tone <= 0 || c.Ring.Retransmit <= 0 || c.Ring.PollTimeout <= 0:
		return fmt.Errorf("%w: ring timing must be positive", ErrInvalidConfig)
	case c.Ring.Nap < 0:
		return fmt.Errorf("%w: nap %v", ErrInvalidConfig, c.Ring.Nap)
	}

	switch c.Debug.FlagString {
	case "trace", "full", "debug", "standard":
	default:
		return fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.Debug.FlagString)
	}

	return nil
}

func (c *Config) setDebugConfig() (err error) {
	// defines Debug section of global.Config
	switch c.Debug.FlagString {
	case "trace", "full":
		c.Debug.Flag = debug.Full
	case "debug":
		c.Debug.Flag = debug.Warning | debug.Info | debug.Error | debug.Fatal | debug.Debug
	case "standard":
		c.Debug.Flag = debug.Standard
	}

	switch c.Debug.FileString {
	case "stderr":
		c.Debug.File = os.Stderr
	case "stdout":
		c.Debug.File = os.Stdout
	default:
		f, err := os.OpenFile(c.Debug.FileString, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		_ = f.Close()

		c.Debug.File = &lumberjack.Logger{
			Filename:   c.Debug.FileString,
			MaxSize:    c.Debug.MaxSize,
			MaxBackups: c.Debug.MaxBackups,
		}
	}

	return
}
