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

package glob

import (
	"fmt"
	"path"
	"strings"

	globutil "github.com/bmatcuk/doublestar/v4"
)

// Matcher decides whether a slash-separated relative path is hidden by any
// of a set of doublestar patterns. A nil Matcher hides nothing.
type Matcher struct {
	patterns []string
}

// NewMatcher validates every pattern up front so Match never sees a bad one.
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !globutil.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", p, globutil.ErrBadPattern)
		}
		m.patterns = append(m.patterns, p)
	}
	return m, nil
}

// MustMatcher is NewMatcher for patterns known at compile time.
func MustMatcher(patterns ...string) *Matcher {
	m, err := NewMatcher(patterns)
	if err != nil {
		panic(err)
	}
	return m
}

// Patterns returns a copy of the configured patterns.
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.patterns...)
}

// Match reports whether rel, or its base name, matches one of the patterns.
// Matching the base name lets "*.part" hide files at any depth.
func (m *Matcher) Match(rel string) bool {
	if m == nil || len(m.patterns) == 0 {
		return false
	}
	rel = strings.TrimPrefix(rel, "/")
	base := path.Base(rel)
	for _, p := range m.patterns {
		if ok, _ := globutil.Match(p, rel); ok {
			return true
		}
		if base != rel {
			if ok, _ := globutil.Match(p, base); ok {
				return true
			}
		}
	}
	return false
}
