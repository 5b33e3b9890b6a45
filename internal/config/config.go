package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/jessevdk/go-flags"

	"git2.jad.ru/MeterRS485/rfc2217-client/internal/comport"
)

// Config of the bridge tool. Every option can also be set from the
// environment.
type Config struct {
	Host string `short:"H" long:"host" env:"RFC2217_HOST" description:"access server host"`
	Port int    `short:"p" long:"port" env:"RFC2217_PORT" default:"23" description:"access server TCP port"`

	Baud     uint32 `short:"b" long:"baud" env:"BAUD" default:"115200" description:"baud rate"`
	DataBits uint8  `long:"data-bits" env:"DATA_BITS" default:"8" description:"data bits (5-8)"`
	Parity   string `long:"parity" env:"PARITY" description:"none, odd, even, mark or space (default: none for 8 data bits, even otherwise)"`
	StopBits uint8  `long:"stop-bits" env:"STOP_BITS" default:"1" description:"stop bits (1 or 2)"`

	Device string `short:"d" long:"device" env:"DEVICE" description:"local serial device to bridge to; a pty is created when empty"`

	APIPort string `long:"api-port" env:"API_PORT" description:"status API port, disabled when empty"`
	WebUser string `long:"web-user" env:"WEB_USER" description:"API user for parameter changes"`
	WebPass string `long:"web-pass" env:"WEB_PASS" description:"API password for parameter changes"`

	KeepAlive   time.Duration `long:"keepalive" env:"KEEPALIVE" default:"30s" description:"TCP keepalive idle time, 0 disables"`
	InitTimeout time.Duration `long:"init-timeout" env:"INIT_TIMEOUT" default:"5s" description:"COM-PORT-OPTION negotiation timeout"`
	DialTimeout time.Duration `long:"dial-timeout" env:"DIAL_TIMEOUT" default:"10s" description:"TCP connect timeout"`
	IdleTimeout time.Duration `long:"idle-timeout" env:"IDLE_TIMEOUT" default:"30s" description:"send telnet NOP after this much silence, 0 disables"`

	ProxyHeader uint8 `long:"proxy-header" env:"PROXY_HEADER" default:"0" description:"send a PROXY protocol header (1 or 2), 0 disables"`
	TextMode    bool  `long:"text-mode" env:"TEXT_MODE" description:"normalize NVT line endings until BINARY is negotiated"`

	Debug     bool `long:"debug" env:"DEBUG" description:"debug logging"`
	DebugHTTP bool `long:"debug-http" env:"DEBUG_HTTP" description:"log every API request"`
}

// Load parses command line arguments (without the program name) on top of
// environment variables and defaults.
func Load(args []string) (*Config, error) {
	var cfg Config

	parser := flags.NewParser(&cfg, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "rfc2217bridge"

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsHelp reports whether err is the help request produced by --help.
func IsHelp(err error) bool {
	var ferr *flags.Error
	return errors.As(err, &ferr) && ferr.Type == flags.ErrHelp
}

func (c *Config) validate() error {
	if c.Host == "" {
		return errors.New("host is required (--host or RFC2217_HOST)")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.ProxyHeader > 2 {
		return fmt.Errorf("invalid PROXY protocol version %d", c.ProxyHeader)
	}
	if _, err := c.ModemParameters(); err != nil {
		return err
	}
	return nil
}

// ModemParameters returns the configured serial settings with defaults
// applied.
func (c *Config) ModemParameters() (comport.Parameters, error) {
	parity, err := comport.ParseParity(c.Parity)
	if err != nil {
		return comport.Parameters{}, err
	}

	p := comport.Parameters{
		Baud:     c.Baud,
		DataBits: c.DataBits,
		Parity:   parity,
		StopBits: c.StopBits,
	}.WithDefaults()

	return p, p.Validate()
}

// Address returns host:port of the access server.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
