// Package config loads the daemon settings. Values come from the defaults,
// then the YAML file given with --config, then the command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dumacp/go-downlink/internal/nmea/sentence"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

//Config is the complete daemon configuration.
type Config struct {
	Device      string        `yaml:"device"`
	Baud        int           `yaml:"baud"`
	ReadTimeout time.Duration `yaml:"readTimeout"`
	BufferSize  int           `yaml:"bufferSize"`
	MaxLine     int           `yaml:"maxLine"`
	Overflow    string        `yaml:"overflow"` // resync, truncate
	Strip       string        `yaml:"strip"`    // bytes removed from every line

	TCPAddr      string        `yaml:"tcpAddr"`
	TCPPool      int           `yaml:"tcpPool"`
	TCPQueue     int           `yaml:"tcpQueue"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`

	UDPAddr      string        `yaml:"udpAddr"`
	PeerTimeout  time.Duration `yaml:"peerTimeout"`
	PingInterval time.Duration `yaml:"pingInterval"`
	UDPQueue     int           `yaml:"udpQueue"`

	RateWindow     time.Duration `yaml:"rateWindow"`
	BadFrameWindow time.Duration `yaml:"badFrameWindow"`

	MQTT        bool   `yaml:"mqtt"`
	MQTTBroker  string `yaml:"mqttBroker"`
	MetricsAddr string `yaml:"metricsAddr"`

	Debug  bool `yaml:"debug"`
	LogStd bool `yaml:"logStd"`

	File string `yaml:"-"`
}

//Default returns the settings used when no file or flag overrides them.
func Default() *Config {
	return &Config{
		Device:         "/dev/ttyUSB0",
		Baud:           115200,
		ReadTimeout:    time.Second,
		BufferSize:     sentence.DefaultBufferSize,
		MaxLine:        sentence.DefaultMaxLine,
		Overflow:       sentence.OverflowResync.String(),
		Strip:          " ",
		TCPAddr:        ":12346",
		TCPPool:        4,
		TCPQueue:       64,
		WriteTimeout:   500 * time.Millisecond,
		UDPAddr:        ":12367",
		PeerTimeout:    5 * time.Second,
		PingInterval:   time.Second,
		UDPQueue:       256,
		RateWindow:     time.Second,
		BadFrameWindow: 10 * time.Minute,
		MQTTBroker:     "tcp://127.0.0.1:1883",
	}
}

//BindFlags registers a flag for every setting, using the current values
//as defaults.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.File, "config", c.File, "YAML configuration file")
	fs.StringVar(&c.Device, "device", c.Device, "byte source: serial device, file, named pipe or - for stdin")
	fs.IntVar(&c.Baud, "baud", c.Baud, "baud rate of a serial device")
	fs.DurationVar(&c.ReadTimeout, "readTimeout", c.ReadTimeout, "read timeout of a serial device")
	fs.IntVar(&c.BufferSize, "bufferSize", c.BufferSize, "bytes per read from the source")
	fs.IntVar(&c.MaxLine, "maxLine", c.MaxLine, "maximum line length")
	fs.StringVar(&c.Overflow, "overflow", c.Overflow, "policy for lines longer than maxLine: resync or truncate")
	fs.StringVar(&c.Strip, "strip", c.Strip, "bytes removed from every line")
	fs.StringVar(&c.TCPAddr, "tcpAddr", c.TCPAddr, "TCP listen address")
	fs.IntVar(&c.TCPPool, "tcpPool", c.TCPPool, "maximum TCP subscribers")
	fs.IntVar(&c.TCPQueue, "tcpQueue", c.TCPQueue, "lines buffered per TCP subscriber")
	fs.DurationVar(&c.WriteTimeout, "writeTimeout", c.WriteTimeout, "write deadline per line")
	fs.StringVar(&c.UDPAddr, "udpAddr", c.UDPAddr, "UDP listen address, empty disables UDP")
	fs.DurationVar(&c.PeerTimeout, "peerTimeout", c.PeerTimeout, "UDP peer liveness timeout")
	fs.DurationVar(&c.PingInterval, "pingInterval", c.PingInterval, "UDP keep-alive interval")
	fs.IntVar(&c.UDPQueue, "udpQueue", c.UDPQueue, "lines waiting for the UDP sender")
	fs.DurationVar(&c.RateWindow, "rateWindow", c.RateWindow, "refresh rate sampling window")
	fs.DurationVar(&c.BadFrameWindow, "badFrameWindow", c.BadFrameWindow, "bad frame report window")
	fs.BoolVar(&c.MQTT, "mqtt", c.MQTT, "send records and rates to the MQTT broker")
	fs.StringVar(&c.MQTTBroker, "mqttBroker", c.MQTTBroker, "MQTT broker URL")
	fs.StringVar(&c.MetricsAddr, "metricsAddr", c.MetricsAddr, "prometheus listen address, empty disables metrics")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "debug")
	fs.BoolVar(&c.LogStd, "logStd", c.LogStd, "logs in stderr")
}

//Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	c := Default()
	if err := c.load(path); err != nil {
		return nil, err
	}
	return c, c.Validate()
}

func (c *Config) load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

//Parse binds the flags to a default Config, parses args and, when
//--config is given, loads the file under the flags set on the command
//line.
func Parse(fs *pflag.FlagSet, args []string) (*Config, error) {
	c := Default()
	c.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if c.File == "" {
		return c, c.Validate()
	}
	set := make(map[string]string)
	fs.Visit(func(f *pflag.Flag) {
		set[f.Name] = f.Value.String()
	})
	if err := c.load(c.File); err != nil {
		return nil, err
	}
	for name, value := range set {
		if err := fs.Set(name, value); err != nil {
			return nil, fmt.Errorf("flag --%s: %w", name, err)
		}
	}
	return c, c.Validate()
}

func (c *Config) Validate() error {
	var errs []error
	if c.Device == "" {
		errs = append(errs, errors.New("device is required"))
	}
	if c.Baud <= 0 {
		errs = append(errs, fmt.Errorf("invalid baud %d", c.Baud))
	}
	if c.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("invalid bufferSize %d", c.BufferSize))
	}
	if c.MaxLine <= 0 {
		errs = append(errs, fmt.Errorf("invalid maxLine %d", c.MaxLine))
	}
	if _, err := sentence.ParseOverflow(c.Overflow); err != nil {
		errs = append(errs, err)
	}
	if c.TCPAddr == "" && c.UDPAddr == "" {
		errs = append(errs, errors.New("tcpAddr and udpAddr are both empty"))
	}
	if c.TCPPool <= 0 {
		errs = append(errs, fmt.Errorf("invalid tcpPool %d", c.TCPPool))
	}
	if c.TCPQueue <= 0 || c.UDPQueue <= 0 {
		errs = append(errs, errors.New("queue sizes must be positive"))
	}
	for name, d := range map[string]time.Duration{
		"writeTimeout":   c.WriteTimeout,
		"peerTimeout":    c.PeerTimeout,
		"pingInterval":   c.PingInterval,
		"rateWindow":     c.RateWindow,
		"badFrameWindow": c.BadFrameWindow,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("invalid %s %s", name, d))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
