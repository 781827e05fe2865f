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
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/lanvault/lanvault/pkg/activity"
	"github.com/lanvault/lanvault/pkg/browse"
	"github.com/lanvault/lanvault/pkg/pathguard"
	"github.com/lanvault/lanvault/pkg/upload"
	"github.com/lanvault/lanvault/pkg/util/glob"
)

func newUploadServices(t *testing.T) *Services {
	t.Helper()

	root, err := pathguard.New(t.TempDir())
	require.NoError(t, err)

	feed := activity.New()
	reassembler, err := upload.New(upload.Options{
		Dir:        root.Dir(),
		SessionTTL: time.Minute,
		Activity:   feed,
	})
	require.NoError(t, err)

	return &Services{
		Name:          "upload",
		AccessURL:     "http://192.168.1.20:8000",
		Activity:      feed,
		Reassembler:   reassembler,
		Store:         upload.NewStore(root, nil, feed),
		MaxChunkBytes: 1 << 20,
		ChunkSize:     1 << 20,
	}
}

func newBrowseServices(t *testing.T, hide ...string) *Services {
	t.Helper()

	root, err := pathguard.New(t.TempDir())
	require.NoError(t, err)

	feed := activity.New()
	return &Services{
		Name:      "browse",
		AccessURL: "http://192.168.1.20:8001",
		Activity:  feed,
		Browser: browse.New(browse.Options{
			Root:     root,
			Hide:     glob.MustMatcher(hide...),
			Activity: feed,
		}),
	}
}

func writeTestFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

// chunkForm builds a multipart body; a nil data skips the file part.
func chunkForm(t *testing.T, fields map[string]string, data []byte) ([]byte, string) {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if data != nil {
		part, err := w.CreateFormFile("file", "blob")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body.Bytes(), w.FormDataContentType()
}

func newChunkContext(t *testing.T, fields map[string]string, data []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	body, contentType := chunkForm(t, fields, data)
	ctx, w := newTestContext(http.MethodPost, "/upload_chunk", body)
	ctx.Request.Header.Set("Content-Type", contentType)
	return ctx, w
}

func messages(feed *activity.Log) []string {
	var out []string
	for _, e := range feed.Drain() {
		out = append(out, e.Message)
	}
	return out
}
