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

package upload

import (
	"fmt"
	"strings"
)

// PartSuffix marks in-flight uploads in the upload directory.
const PartSuffix = ".part"

// maxNameLen leaves room for PartSuffix within a 255-byte file name.
const maxNameLen = 255 - len(PartSuffix)

var separatorReplacer = strings.NewReplacer("/", "_", "\\", "_")

// SanitizeName flattens a client-supplied file name into a single path
// element: both separators become underscores. Names that are empty, ".",
// "..", too long, contain NUL or end in PartSuffix are rejected.
func SanitizeName(name string) (string, error) {
	if strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: contains NUL", ErrInvalidName)
	}
	safe := separatorReplacer.Replace(name)
	switch {
	case safe == "", safe == ".", safe == "..":
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	case len(safe) > maxNameLen:
		return "", fmt.Errorf("%w: longer than %d bytes", ErrInvalidName, maxNameLen)
	case strings.HasSuffix(safe, PartSuffix):
		return "", fmt.Errorf("%w: %s suffix is reserved", ErrInvalidName, PartSuffix)
	}
	return safe, nil
}
