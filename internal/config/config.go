package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/hamed0406/jenkinsprobe/internal/probe"
	"github.com/hamed0406/jenkinsprobe/internal/scanner"
)

// Config drives the scan API server. The CLI takes flags instead.
type Config struct {
	Addr           string        // API bind address, e.g. "127.0.0.1:7080"
	LogDir         string        // logs directory
	Debug          bool          // log every probe
	ProbePort      int           // port probed on every host
	ProbePath      string        // unauthenticated configuration page
	ProbeTimeout   time.Duration // per-probe timeout
	MaxConcurrent  int           // in-flight probe cap
	PublicAPIKeys  []string
	AdminAPIKeys   []string
	PublicRPM      int // per-client requests per minute; 0 disables
	PublicBurst    int
	CORSOrigins    []string // empty allows any origin
	TrustedProxies []string // peers whose X-Forwarded-For is honored
}

func FromEnv() Config {
	addr := os.Getenv("API_ADDR")
	if addr == "" {
		addr = "127.0.0.1:7080"
	}

	logDir := os.Getenv("LOG_DIR")
	if logDir == "" {
		logDir = "logs"
	}

	path := os.Getenv("PROBE_PATH")
	if path == "" {
		path = probe.DefaultPath
	}

	debug, _ := strconv.ParseBool(os.Getenv("DEBUG"))

	return Config{
		Addr:           addr,
		LogDir:         logDir,
		Debug:          debug,
		ProbePort:      intEnv("PROBE_PORT", probe.DefaultPort, 1),
		ProbePath:      path,
		ProbeTimeout:   time.Duration(intEnv("HTTP_TIMEOUT_MS", int(probe.DefaultTimeout/time.Millisecond), 1)) * time.Millisecond,
		MaxConcurrent:  intEnv("MAX_CONCURRENT_CHECKS", scanner.DefaultConcurrency, 1),
		PublicAPIKeys:  listEnv("PUBLIC_API_KEYS"),
		AdminAPIKeys:   listEnv("ADMIN_API_KEYS"),
		PublicRPM:      intEnv("PUBLIC_RPM", 120, 0),
		PublicBurst:    intEnv("PUBLIC_BURST", 30, 1),
		CORSOrigins:    listEnv("CORS_ORIGINS"),
		TrustedProxies: listEnv("TRUSTED_PROXIES"),
	}
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var err error
	if c.ProbePort < 1 || c.ProbePort > 65535 {
		err = multierr.Append(err, fmt.Errorf("PROBE_PORT %d out of range", c.ProbePort))
	}
	if !strings.HasPrefix(c.ProbePath, "/") {
		err = multierr.Append(err, fmt.Errorf("PROBE_PATH %q must start with /", c.ProbePath))
	}
	if len(c.AdminAPIKeys) == 0 {
		err = multierr.Append(err, errors.New("ADMIN_API_KEYS is empty (scan route is open to anyone)"))
	}
	if len(c.PublicAPIKeys) == 0 {
		err = multierr.Append(err, errors.New("PUBLIC_API_KEYS is empty (report routes are open to anyone)"))
	}
	return err
}

// intEnv falls back to def when the variable is unset, malformed or below floor.
func intEnv(key string, def, floor int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < floor {
		return def
	}
	return n
}

func listEnv(key string) []string {
	var out []string
	for _, k := range strings.Split(os.Getenv(key), ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}
