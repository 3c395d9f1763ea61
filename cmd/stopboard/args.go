package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"stopboard.app/internal/appconf"
)

var errHelp = errors.New("help requested")

type cliConfig struct {
	appconf.Config
	showVersion bool
}

// ParseAPIKeys splits a comma separated key list, trimming each entry.
func ParseAPIKeys(apiKeysFlag string) []string {
	if apiKeysFlag == "" {
		return []string{}
	}
	keys := strings.Split(apiKeysFlag, ",")
	for i, key := range keys {
		keys[i] = strings.TrimSpace(key)
	}
	return keys
}

// ParseArgs builds the runtime configuration. Values come from the defaults,
// then the --config file, then any flag set explicitly on the command line.
func ParseArgs(args []string) (cliConfig, error) {
	var (
		configPath     string
		port           int
		env            string
		verbose        bool
		rateLimit      int
		dataPath       string
		assetsDir      string
		adminKeys      string
		feedEndpoint   string
		stopID         string
		refreshSeconds int
		maxArrivals    int
		gatewayEnabled bool
		gatewayURL     string
		showVersion    bool
	)

	defaults := appconf.DefaultConfig()
	fs := pflag.NewFlagSet("stopboard", pflag.ContinueOnError)
	fs.StringVarP(&configPath, "config", "c", "", "path to a JSON, YAML or TOML config file")
	fs.IntVar(&port, "port", defaults.Port, "API server port")
	fs.StringVar(&env, "env", defaults.Env.String(), "environment (development|test|production)")
	fs.BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	fs.IntVar(&rateLimit, "rate-limit", defaults.RateLimit, "requests per second per client (0 blocks, negative disables)")
	fs.StringVar(&dataPath, "data-path", defaults.DataPath, "SQLite file holding the board settings, or :memory:")
	fs.StringVar(&assetsDir, "assets-dir", "", "directory served under /assets/")
	fs.StringVar(&adminKeys, "admin-keys", "", "comma separated keys allowed to change board settings")
	fs.StringVar(&feedEndpoint, "feed-endpoint", defaults.Board.FeedEndpoint, "default stop-monitoring endpoint")
	fs.StringVar(&stopID, "stop-id", defaults.Board.StopID, "default stop code")
	fs.IntVar(&refreshSeconds, "refresh-seconds", defaults.Board.RefreshSeconds, "default refresh cadence in seconds")
	fs.IntVar(&maxArrivals, "max-arrivals", defaults.Board.MaxDisplayedArrivals, "default number of arrivals shown per route")
	fs.BoolVar(&gatewayEnabled, "gateway", defaults.Gateway.Enabled, "serve the built-in stop-monitoring gateway")
	fs.StringVar(&gatewayURL, "gateway-upstream", defaults.Gateway.UpstreamURL, "SIRI stop-monitoring URL the gateway proxies to")
	fs.BoolVar(&showVersion, "version", false, "print the version and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return cliConfig{}, errHelp
		}
		return cliConfig{}, err
	}
	if fs.NArg() > 0 {
		return cliConfig{}, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	cfg := defaults
	if configPath != "" {
		fileCfg, err := appconf.LoadFromFile(configPath)
		if err != nil {
			return cliConfig{}, err
		}
		cfg = fileCfg.ToAppConfig()
	}

	if fs.Changed("port") {
		cfg.Port = port
	}
	if fs.Changed("env") {
		cfg.Env = appconf.EnvFlagToEnvironment(env)
	}
	if fs.Changed("verbose") {
		cfg.Verbose = verbose
	}
	if fs.Changed("rate-limit") {
		cfg.RateLimit = rateLimit
	}
	if fs.Changed("data-path") {
		cfg.DataPath = dataPath
	}
	if fs.Changed("assets-dir") {
		cfg.AssetsDir = assetsDir
	}
	if fs.Changed("admin-keys") {
		cfg.AdminKeys = ParseAPIKeys(adminKeys)
	}
	if fs.Changed("feed-endpoint") {
		cfg.Board.FeedEndpoint = feedEndpoint
	}
	if fs.Changed("stop-id") {
		cfg.Board.StopID = stopID
	}
	if fs.Changed("refresh-seconds") {
		cfg.Board.RefreshSeconds = refreshSeconds
	}
	if fs.Changed("max-arrivals") {
		cfg.Board.MaxDisplayedArrivals = maxArrivals
	}
	if fs.Changed("gateway") {
		cfg.Gateway.Enabled = gatewayEnabled
	}
	if fs.Changed("gateway-upstream") {
		cfg.Gateway.UpstreamURL = gatewayURL
	}

	for _, key := range cfg.AdminKeys {
		if key == "" {
			return cliConfig{}, errors.New("admin keys must not be empty")
		}
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return cliConfig{}, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.AssetsDir != "" {
		if info, err := os.Stat(cfg.AssetsDir); err != nil || !info.IsDir() {
			return cliConfig{}, fmt.Errorf("assets dir %q is not a directory", cfg.AssetsDir)
		}
	}

	return cliConfig{Config: cfg, showVersion: showVersion}, nil
}
