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

package controller

import (
	"github.com/lanvault/lanvault/pkg/activity"
	"github.com/lanvault/lanvault/pkg/browse"
	"github.com/lanvault/lanvault/pkg/upload"
)

// Services carries the long-lived dependencies of one HTTP surface. Fields
// that belong to the other surface stay nil.
type Services struct {
	// Name labels request metrics: "upload" or "browse".
	Name      string
	AccessURL string
	Activity  *activity.Log

	Reassembler   *upload.Reassembler
	Store         *upload.Store
	MaxChunkBytes int64
	// ChunkSize is the slice size used by the embedded upload page.
	ChunkSize int64

	Browser *browse.Browser
}

// RootDir is the directory whose disk usage /metrics reports.
func (s *Services) RootDir() string {
	switch {
	case s == nil:
		return ""
	case s.Store != nil:
		return s.Store.Dir()
	case s.Browser != nil:
		return s.Browser.Root().Dir()
	default:
		return ""
	}
}
