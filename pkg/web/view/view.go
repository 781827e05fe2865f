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

// Package view holds the embedded HTML pages of both services.
package view

import (
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"
)

//go:embed templates/*.html
var templates embed.FS

// Page names.
const (
	UploadPage = "upload.html"
	BrowsePage = "browse.html"
)

// Load parses the embedded templates.
func Load() *template.Template {
	return template.Must(template.New("").Funcs(template.FuncMap{
		"escapePath": EscapePath,
		"humanSize":  HumanSize,
		"deref":      deref,
	}).ParseFS(templates, "templates/*.html"))
}

// EscapePath percent-encodes each segment of a slash path, keeping the
// slashes, so names with "#", "?" or "%" survive a round trip.
func EscapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// HumanSize renders a byte count with a binary unit.
func HumanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
