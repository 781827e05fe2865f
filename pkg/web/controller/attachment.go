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
	"mime"
	"net/http"
	"os"
	"strconv"
	"strings"
)

// serveAttachment streams f with Range and conditional request support and
// returns the number of body bytes written.
func (c *basicController) serveAttachment(f *os.File, info os.FileInfo, name string) int64 {
	c.ctx.Header("Content-Type", "application/octet-stream")
	c.ctx.Header("Content-Disposition", attachmentHeader(name))

	http.ServeContent(c.ctx.Writer, c.ctx.Request, name, info.ModTime(), f)

	if n := c.ctx.Writer.Size(); n > 0 {
		return int64(n)
	}
	return 0
}

// attachmentHeader builds a Content-Disposition value; non-ASCII names are
// encoded per RFC 2231.
func attachmentHeader(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

// deliveredTail reports whether a response handed out the last byte of a
// file of the given size: a full 200, or a single range ending at the final
// byte. Multi-range responses never count.
func deliveredTail(status int, header http.Header, size int64) bool {
	switch status {
	case http.StatusOK:
		return true
	case http.StatusPartialContent:
		spec, ok := strings.CutPrefix(header.Get("Content-Range"), "bytes ")
		if !ok {
			return false
		}
		span, _, ok := strings.Cut(spec, "/")
		if !ok {
			return false
		}
		_, last, ok := strings.Cut(span, "-")
		if !ok {
			return false
		}
		end, err := strconv.ParseInt(last, 10, 64)
		return err == nil && end == size-1
	default:
		return false
	}
}
