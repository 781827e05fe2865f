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
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the YAML config file. Pointer fields distinguish
// "absent" from a zero value.
type fileConfig struct {
	UploadDir        *string  `yaml:"upload_dir"`
	ShareDir         *string  `yaml:"share_dir"`
	Host             *string  `yaml:"host"`
	UploadPort       *int     `yaml:"upload_port"`
	BrowsePort       *int     `yaml:"browse_port"`
	LogLevel         *int     `yaml:"log_level"`
	SessionTTL       *string  `yaml:"session_ttl"`
	MaxChunkBytes    *int64   `yaml:"max_chunk_bytes"`
	ActivityInterval *string  `yaml:"activity_interval"`
	Hide             []string `yaml:"hide"`
	QR               *bool    `yaml:"qr"`
	GracefulShutdown *string  `yaml:"graceful_shutdown_timeout"`
}

// loadConfigFile applies the YAML file at path over the current values.
func loadConfigFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&UploadDir, cfg.UploadDir)
	setString(&ShareDir, cfg.ShareDir)
	setString(&Host, cfg.Host)
	setInt(&UploadPort, cfg.UploadPort)
	setInt(&BrowsePort, cfg.BrowsePort)
	setInt(&ServerLogLevel, cfg.LogLevel)
	if cfg.MaxChunkBytes != nil {
		MaxChunkBytes = *cfg.MaxChunkBytes
	}
	if cfg.Hide != nil {
		Hide = cfg.Hide
	}
	if cfg.QR != nil {
		ShowQR = *cfg.QR
	}

	return errors.Join(
		setDuration(&SessionTTL, cfg.SessionTTL, "session_ttl"),
		setDuration(&ActivityInterval, cfg.ActivityInterval, "activity_interval"),
		setDuration(&ApiGracefulShutdownTimeout, cfg.GracefulShutdown, "graceful_shutdown_timeout"),
	)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string, key string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, *v, err)
	}
	*dst = d
	return nil
}
