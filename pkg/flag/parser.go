// Copyright 2025 Alibaba Group Holding Ltd.
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

package flag

import (
	"errors"
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lanvault/lanvault/pkg/log"
)

const (
	configFileEnv       = "LANVAULT_CONFIG"
	uploadDirEnv        = "LANVAULT_UPLOAD_DIR"
	shareDirEnv         = "LANVAULT_SHARE_DIR"
	hostEnv             = "LANVAULT_HOST"
	uploadPortEnv       = "LANVAULT_UPLOAD_PORT"
	browsePortEnv       = "LANVAULT_BROWSE_PORT"
	logLevelEnv         = "LANVAULT_LOG_LEVEL"
	sessionTTLEnv       = "LANVAULT_SESSION_TTL"
	maxChunkBytesEnv    = "LANVAULT_MAX_CHUNK_BYTES"
	activityIntervalEnv = "LANVAULT_ACTIVITY_INTERVAL"
	hideEnv             = "LANVAULT_HIDE"
	qrEnv               = "LANVAULT_QR"
	gracefulShutdownEnv = "LANVAULT_API_GRACE_SHUTDOWN"
)

// InitFlags resolves settings from defaults, the optional config file,
// environment variables and command-line flags, later sources winning.
func InitFlags() {
	if err := load(flag.CommandLine, os.Args[1:], os.Getenv); err != nil {
		stdlog.Panicf("Invalid configuration: %v", err)
	}

	log.Info("Upload dir is: %q, port %d", UploadDir, UploadPort)
	log.Info("Share dir is: %q, port %d", ShareDir, BrowsePort)
}

func setDefaults() {
	ConfigFile = ""
	UploadDir = "uploads"
	ShareDir = ""
	Host = "0.0.0.0"
	UploadPort = 8000
	BrowsePort = 8001
	ServerLogLevel = 6
	SessionTTL = 30 * time.Minute
	MaxChunkBytes = 128 << 20
	ActivityInterval = 200 * time.Millisecond
	Hide = nil
	ShowQR = true
	ApiGracefulShutdownTimeout = 3 * time.Second
}

func load(fs *flag.FlagSet, args []string, getenv func(string) string) error {
	setDefaults()

	// The config file has to be known before the other flags are parsed.
	ConfigFile = getenv(configFileEnv)
	if path := configPathFromArgs(args); path != "" {
		ConfigFile = path
	}
	if ConfigFile != "" {
		if err := loadConfigFile(ConfigFile); err != nil {
			return err
		}
	}

	if err := loadEnv(getenv); err != nil {
		return err
	}

	hide := &patternList{values: Hide}
	fs.StringVar(&ConfigFile, "config", ConfigFile, "YAML config file (env "+configFileEnv+")")
	fs.StringVar(&UploadDir, "upload-dir", UploadDir, "Directory receiving uploads; empty disables the upload service")
	fs.StringVar(&ShareDir, "share-dir", ShareDir, "Directory shared read-only; empty disables the browse service")
	fs.StringVar(&Host, "host", Host, "Listen address for both services")
	fs.IntVar(&UploadPort, "upload-port", UploadPort, "Upload service port")
	fs.IntVar(&BrowsePort, "browse-port", BrowsePort, "Browse service port")
	fs.IntVar(&ServerLogLevel, "log-level", ServerLogLevel, "Server log level (0=LevelEmergency, 1=LevelAlert, 2=LevelCritical, 3=LevelError, 4=LevelWarning, 5=LevelNotice, 6=LevelInformational, 7=LevelDebug, default: 6)")
	fs.DurationVar(&SessionTTL, "session-ttl", SessionTTL, "Idle time after which an unfinished upload is discarded; 0 keeps it forever")
	fs.Int64Var(&MaxChunkBytes, "max-chunk-bytes", MaxChunkBytes, "Maximum request size of one upload chunk")
	fs.DurationVar(&ActivityInterval, "activity-interval", ActivityInterval, "How often the activity feed is printed")
	fs.Var(hide, "hide", "Comma separated doublestar patterns hidden from listings (repeatable)")
	fs.BoolVar(&ShowQR, "qr", ShowQR, "Print the access URL as a QR code on start")
	fs.DurationVar(&ApiGracefulShutdownTimeout, "graceful-shutdown-timeout", ApiGracefulShutdownTimeout, "API graceful shutdown timeout duration (default: 3s)")

	// Parse flags - these will override environment variables if provided
	if err := fs.Parse(args); err != nil {
		return err
	}
	Hide = hide.values

	return validate()
}

func loadEnv(getenv func(string) string) error {
	if v := getenv(uploadDirEnv); v != "" {
		UploadDir = v
	}
	if v := getenv(shareDirEnv); v != "" {
		ShareDir = v
	}
	if v := getenv(hostEnv); v != "" {
		Host = v
	}
	if v := getenv(hideEnv); v != "" {
		Hide = splitPatterns(v)
	}

	var errs []error
	parseInt := func(key string, dst *int) {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	parseDuration := func(key string, dst *time.Duration) {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	parseInt(uploadPortEnv, &UploadPort)
	parseInt(browsePortEnv, &BrowsePort)
	parseInt(logLevelEnv, &ServerLogLevel)
	parseDuration(sessionTTLEnv, &SessionTTL)
	parseDuration(activityIntervalEnv, &ActivityInterval)
	parseDuration(gracefulShutdownEnv, &ApiGracefulShutdownTimeout)

	if v := getenv(maxChunkBytesEnv); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", maxChunkBytesEnv, err))
		} else {
			MaxChunkBytes = n
		}
	}
	if v := getenv(qrEnv); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", qrEnv, err))
		} else {
			ShowQR = b
		}
	}
	return errors.Join(errs...)
}

func validate() error {
	var errs []error
	if UploadDir == "" && ShareDir == "" {
		errs = append(errs, errors.New("nothing to serve: set upload-dir or share-dir"))
	}
	for name, port := range map[string]int{"upload-port": UploadPort, "browse-port": BrowsePort} {
		if port < 1 || port > 65535 {
			errs = append(errs, fmt.Errorf("%s %d out of range", name, port))
		}
	}
	if UploadDir != "" && ShareDir != "" && UploadPort == BrowsePort {
		errs = append(errs, fmt.Errorf("upload-port and browse-port are both %d", UploadPort))
	}
	if MaxChunkBytes <= 0 {
		errs = append(errs, errors.New("max-chunk-bytes must be positive"))
	}
	if ActivityInterval <= 0 {
		errs = append(errs, errors.New("activity-interval must be positive"))
	}
	if SessionTTL < 0 {
		errs = append(errs, errors.New("session-ttl must not be negative"))
	}
	return errors.Join(errs...)
}

// configPathFromArgs finds -config/--config ahead of the real flag parse.
func configPathFromArgs(args []string) string {
	for i, arg := range args {
		if arg == "--" {
			break
		}
		name := strings.TrimLeft(arg, "-")
		if name == arg {
			continue
		}
		if v, ok := strings.CutPrefix(name, "config="); ok {
			return v
		}
		if name == "config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// patternList is a flag.Value collecting comma separated patterns. The first
// Set replaces values inherited from the config file or environment.
type patternList struct {
	values []string
	set    bool
}

func (p *patternList) String() string {
	if p == nil {
		return ""
	}
	return strings.Join(p.values, ",")
}

func (p *patternList) Set(v string) error {
	if !p.set {
		p.values = nil
		p.set = true
	}
	p.values = append(p.values, splitPatterns(v)...)
	return nil
}

func splitPatterns(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
