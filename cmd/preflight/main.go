// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/multierr"

	"github.com/hamed0406/jenkinsprobe/internal/config"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg := config.FromEnv()
	for _, err := range multierr.Errors(cfg.Validate()) {
		// Missing keys only weaken the API; bad probe settings break every scan.
		if strings.Contains(err.Error(), "API_KEYS") {
			warn(err.Error())
			continue
		}
		fail(err.Error())
	}

	for name, v := range map[string]string{"ADMIN_API_KEYS": os.Getenv("ADMIN_API_KEYS"), "PUBLIC_API_KEYS": os.Getenv("PUBLIC_API_KEYS")} {
		if strings.Contains(v, " ") {
			warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
		}
	}

	ok("API_ADDR=" + cfg.Addr)
	ok(fmt.Sprintf("probe target http://<host>:%d%s, timeout %s, %d in flight",
		cfg.ProbePort, cfg.ProbePath, cfg.ProbeTimeout, cfg.MaxConcurrent))
	if cfg.PublicRPM == 0 {
		warn("PUBLIC_RPM=0; API rate limiting disabled.")
	}

	ok("preflight passed")
}
