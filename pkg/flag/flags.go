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

import "time"

var (
	// ConfigFile is an optional YAML file read before env and flags.
	ConfigFile string

	// UploadDir receives reassembled uploads. Empty disables the upload service.
	UploadDir string

	// ShareDir is served read-only by the browse service. Empty disables it.
	ShareDir string

	// Host is the listen address for both services.
	Host string

	// UploadPort and BrowsePort are the listener ports.
	UploadPort int
	BrowsePort int

	// ServerLogLevel controls the server log verbosity.
	ServerLogLevel int

	// SessionTTL is how long an idle upload keeps its name reserved.
	SessionTTL time.Duration

	// MaxChunkBytes caps the request body of a single chunk.
	MaxChunkBytes int64

	// ActivityInterval is the drain period of the activity feed.
	ActivityInterval time.Duration

	// Hide lists doublestar patterns excluded from listings and archives.
	Hide []string

	// ShowQR prints the access URL as a terminal QR code on start.
	ShowQR bool

	// ApiGracefulShutdownTimeout bounds how long shutdown waits for requests.
	ApiGracefulShutdownTimeout time.Duration
)
