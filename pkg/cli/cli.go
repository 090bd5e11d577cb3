// Package cli parses command line arguments for the ticktree binary.
package cli

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the parsed command line settings.
type Config struct {
	Command  string // "test" or "demo"
	LogLevel string // debug, info, warn, error
	Headless bool   // demo runs without opening a window
	Ticks    int    // demo tick budget, 0 means unlimited
	ShowHelp bool
}

// Usage is printed for -help and for unknown commands.
const Usage = `usage: ticktree [flags] <command>

commands:
  test    run the built-in end-to-end scenario suite
  demo    run the agent playground

flags:
  -l, -log-level   log level: debug, info, warn, error (default info)
  -headless        run the demo without a window
  -n, -ticks       stop the demo after this many ticks (0 = unlimited)
  -h, -help        show this help
`

// ParseArgs parses args (without the program name) into a Config.
// Environment variables LOG_LEVEL and HEADLESS provide defaults; flags
// take precedence.
func ParseArgs(args []string) (*Config, error) {
	fs := flag.NewFlagSet("ticktree", flag.ContinueOnError)

	config := &Config{}

	fs.StringVar(&config.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	fs.StringVar(&config.LogLevel, "l", "info", "log level (shorthand)")
	fs.BoolVar(&config.Headless, "headless", false, "run the demo without a window")
	fs.IntVar(&config.Ticks, "ticks", 0, "demo tick budget (0 = unlimited)")
	fs.IntVar(&config.Ticks, "n", 0, "demo tick budget (shorthand)")
	fs.BoolVar(&config.ShowHelp, "help", false, "show help")
	fs.BoolVar(&config.ShowHelp, "h", false, "show help (shorthand)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Environment fallbacks; command line flags win.
	if !config.Headless {
		if headlessEnv := os.Getenv("HEADLESS"); headlessEnv != "" {
			config.Headless = headlessEnv == "1" || strings.ToLower(headlessEnv) == "true"
		}
	}
	if config.LogLevel == "info" {
		if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
			config.LogLevel = strings.ToLower(logLevelEnv)
		}
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[config.LogLevel] {
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.LogLevel)
	}

	if config.Ticks < 0 {
		return nil, fmt.Errorf("ticks must be non-negative, got %s", strconv.Itoa(config.Ticks))
	}

	if fs.NArg() > 0 {
		config.Command = fs.Arg(0)
	}

	return config, nil
}
