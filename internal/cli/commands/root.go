// Copyright 2025 CacheKit Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"cachekit/internal/config"
	"cachekit/internal/engine"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagRoot    string
	flagLogging string
)

// SetVersion sets the version info for --version flag
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

// getVersionString returns the version string with build info
func getVersionString() string {
	buildDate := formatBuildDate(date)
	if strings.HasSuffix(version, "-dev") {
		// Dev build: include epoch and commit for troubleshooting
		return fmt.Sprintf("%s (%s, epoch: %s, commit: %s)", version, buildDate, date, commit)
	}
	// Prod build: version with date
	return fmt.Sprintf("%s (%s)", version, buildDate)
}

// formatBuildDate converts epoch timestamp to readable date
func formatBuildDate(epoch string) string {
	ts, err := strconv.ParseInt(epoch, 10, 64)
	if err != nil {
		return epoch
	}
	return time.Unix(ts, 0).Format("2006-01-02")
}

var rootCmd = &cobra.Command{
	Use:   "cachekit",
	Short: "Persistent content-addressable cache for JSON payloads",
	Long: `CacheKit stores expensive-to-recompute JSON payloads under their content
hash and keeps a metadata index for retention, LRU pruning, staleness-based
refresh, and source-change invalidation.`,
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		configureLogging()
		return nil
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate("cachekit version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", "", "cache root directory (default $CACHEKIT_ROOT or ~/.cachekit)")
	rootCmd.PersistentFlags().StringVar(&flagLogging, "logging", "", "logging level: none, error, warn, info, debug, trace")

	// Logging stays off until explicitly enabled.
	logrus.SetOutput(io.Discard)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// cacheRoot returns the effective cache root for this invocation.
func cacheRoot() string {
	if flagRoot != "" {
		return flagRoot
	}
	return config.DefaultRoot()
}

// loadConfig reads the engine config from the cache root, letting the
// --logging flag override the configured level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cacheRoot())
	if err != nil {
		return nil, err
	}
	if flagLogging != "" {
		cfg.Logging = flagLogging
	}
	return cfg, nil
}

// newEngine builds the engine for the configured root.
func newEngine() (*engine.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	applyLogLevel(cfg.LogLevel())
	return engine.New(cacheRoot(), cfg)
}

func configureLogging() {
	if flagLogging != "" {
		applyLogLevel(strings.ToLower(flagLogging))
	}
}

func applyLogLevel(level string) {
	if level == "" || level == "none" {
		logrus.SetOutput(io.Discard)
		return
	}
	logrus.SetOutput(rootCmd.ErrOrStderr())
	switch level {
	case "trace":
		logrus.SetLevel(logrus.TraceLevel)
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
}
