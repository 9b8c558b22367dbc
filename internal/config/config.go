// Package config loads piawg settings from an optional YAML file, the
// environment (and a .env file) and validates them.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"piawg/internal/pia"
	"piawg/internal/transport"
)

const (
	DefaultAPIAddr = "127.0.0.1:8080"
	maxPort        = 65535
)

type Settings struct {
	TokenURL      string        `yaml:"token_url"`
	ServerListURL string        `yaml:"serverlist_url"`
	GatewayPort   int           `yaml:"gateway_port"`
	DataDir       string        `yaml:"data_dir"`
	Transport     string        `yaml:"transport"`
	CurlPath      string        `yaml:"curl_path"`
	HTTPTimeout   time.Duration `yaml:"http_timeout"`
	APIAddr       string        `yaml:"api_addr"`
	APISecret     string        `yaml:"api_secret"`
}

func Defaults() Settings {
	return Settings{
		TokenURL:      pia.DefaultTokenURL,
		ServerListURL: pia.DefaultServerListURL,
		GatewayPort:   pia.DefaultGatewayPort,
		DataDir:       defaultDataDir(),
		Transport:     transport.KindHTTP,
		CurlPath:      "curl",
		HTTPTimeout:   transport.DefaultTimeout,
		APIAddr:       DefaultAPIAddr,
	}
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".piawg"
	}
	return filepath.Join(dir, "piawg")
}

// Load builds settings from defaults, then the YAML file at path (skipped
// when path is empty), then the environment. A .env file in the working
// directory is read first when present.
func Load(path string) (Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Settings{}, fmt.Errorf("load .env: %w", err)
	}

	s := Defaults()
	if path != "" {
		var err error
		if s, err = LoadFile(path, s); err != nil {
			return Settings{}, err
		}
	}
	s, err := ApplyEnv(s, os.Getenv)
	if err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// LoadFile overlays the YAML file at path onto base. Unknown keys are
// rejected.
func LoadFile(path string, base Settings) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	s := base
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return Settings{}, fmt.Errorf("parse config: %w", err)
	}
	return s, nil
}

// ApplyEnv overlays PIA_* variables read through getenv onto base.
func ApplyEnv(base Settings, getenv func(string) string) (Settings, error) {
	s := base
	str := func(name string, dst *string) {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			*dst = v
		}
	}
	str("PIA_TOKEN_URL", &s.TokenURL)
	str("PIA_SERVERLIST_URL", &s.ServerListURL)
	str("PIA_DATA_DIR", &s.DataDir)
	str("PIA_TRANSPORT", &s.Transport)
	str("PIA_CURL_PATH", &s.CurlPath)
	str("PIA_API_ADDR", &s.APIAddr)
	str("PIA_API_SECRET", &s.APISecret)

	var errs []string
	if v := strings.TrimSpace(getenv("PIA_GATEWAY_PORT")); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, "PIA_GATEWAY_PORT must be a number")
		} else {
			s.GatewayPort = p
		}
	}
	if v := strings.TrimSpace(getenv("PIA_HTTP_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, "PIA_HTTP_TIMEOUT must be a duration such as 30s")
		} else {
			s.HTTPTimeout = d
		}
	}
	if len(errs) > 0 {
		return Settings{}, errors.New(strings.Join(errs, "; "))
	}
	return s, nil
}

func (s Settings) Validate() error {
	var errs []string

	if !absoluteURL(s.TokenURL) {
		errs = append(errs, "token_url must be an absolute URL")
	}
	if !absoluteURL(s.ServerListURL) {
		errs = append(errs, "serverlist_url must be an absolute URL")
	}
	if s.GatewayPort <= 0 || s.GatewayPort > maxPort {
		errs = append(errs, "gateway_port must be 1-65535")
	}
	if strings.TrimSpace(s.DataDir) == "" {
		errs = append(errs, "data_dir is required")
	}
	if s.Transport != transport.KindHTTP && s.Transport != transport.KindCurl {
		errs = append(errs, fmt.Sprintf("transport must be %q or %q", transport.KindHTTP, transport.KindCurl))
	}
	if s.HTTPTimeout < 0 {
		errs = append(errs, "http_timeout must be >= 0")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func absoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func (s Settings) Endpoints() pia.Endpoints {
	return pia.Endpoints{
		TokenURL:      s.TokenURL,
		ServerListURL: s.ServerListURL,
		GatewayPort:   s.GatewayPort,
	}
}

// PrefsPath is the sqlite database holding remembered choices.
func (s Settings) PrefsPath() string {
	return filepath.Join(s.DataDir, "prefs.db")
}
