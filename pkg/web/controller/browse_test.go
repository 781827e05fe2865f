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
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanvault/lanvault/pkg/web/model"
)

func browseJSON(t *testing.T, svc *Services, subpath string) (int, model.DirectoryListing) {
	t.Helper()
	ctx, w := newTestContext(http.MethodGet, "/browse?format=json", nil)
	ctx.Params = gin.Params{{Key: "subpath", Value: subpath}}
	NewBrowseController(ctx, svc).Browse()

	var listing model.DirectoryListing
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	}
	return w.Code, listing
}

func TestBrowseListsDirectories(t *testing.T) {
	svc := newBrowseServices(t, ".git")
	dir := svc.Browser.Root().Dir()
	writeTestFile(t, dir, "docs/a.txt", "alpha")
	writeTestFile(t, dir, "docs/b.txt", "beta")
	writeTestFile(t, dir, "readme.md", "# hi")
	writeTestFile(t, dir, ".git/HEAD", "ref")

	status, root := browseJSON(t, svc, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "", root.Current)
	assert.Nil(t, root.Parent)
	require.Len(t, root.Entries, 2)
	assert.Equal(t, "docs", root.Entries[0].Name)
	assert.True(t, root.Entries[0].IsDir)
	assert.Equal(t, "readme.md", root.Entries[1].Name)

	status, docs := browseJSON(t, svc, "/docs")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "docs", docs.Current)
	require.NotNil(t, docs.Parent)
	assert.Equal(t, "", *docs.Parent)
	require.Len(t, docs.Entries, 2)
	assert.Equal(t, "docs/a.txt", docs.Entries[0].Path)
	assert.EqualValues(t, 5, docs.Entries[0].Size)

	assert.Empty(t, messages(svc.Activity))
}

func TestBrowseErrors(t *testing.T) {
	svc := newBrowseServices(t)
	writeTestFile(t, svc.Browser.Root().Dir(), "readme.md", "# hi")

	tests := []struct {
		subpath string
		status  int
	}{
		{"/../etc", http.StatusForbidden},
		{"/missing", http.StatusNotFound},
		{"/readme.md", http.StatusNotFound},
	}
	for _, tt := range tests {
		status, _ := browseJSON(t, svc, tt.subpath)
		assert.Equal(t, tt.status, status, tt.subpath)
	}
}

func TestBrowseDownloadFile(t *testing.T) {
	svc := newBrowseServices(t)
	writeTestFile(t, svc.Browser.Root().Dir(), "docs/a.txt", "alpha")

	ctx, w := newTestContext(http.MethodGet, "/download/file/docs/a.txt", nil)
	ctx.Params = gin.Params{{Key: "path", Value: "/docs/a.txt"}}
	NewBrowseController(ctx, svc).DownloadFile()

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alpha", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "a.txt")
	assert.Equal(t, []string{"Downloaded file: docs/a.txt"}, messages(svc.Activity))

	ctx, w = newTestContext(http.MethodGet, "/download/file/docs", nil)
	ctx.Params = gin.Params{{Key: "path", Value: "/docs"}}
	NewBrowseController(ctx, svc).DownloadFile()
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, messages(svc.Activity))
}

func TestBrowseDownloadFolder(t *testing.T) {
	svc := newBrowseServices(t)
	dir := svc.Browser.Root().Dir()
	writeTestFile(t, dir, "docs/a.txt", "alpha")
	writeTestFile(t, dir, "docs/sub/b.txt", "beta")

	ctx, w := newTestContext(http.MethodGet, "/download/folder/docs", nil)
	ctx.Params = gin.Params{{Key: "path", Value: "/docs"}}
	NewBrowseController(ctx, svc).DownloadFolder()

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "docs.zip")

	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	require.NoError(t, err)
	contents := map[string]string{}
	var names []string
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		contents[f.Name] = string(data)
		names = append(names, f.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"a.txt", "sub/b.txt"}, names)
	assert.Equal(t, "beta", contents["sub/b.txt"])
	assert.Equal(t, []string{"Downloaded folder: docs"}, messages(svc.Activity))
}

func TestBrowseDownloadFolderValidatesFirst(t *testing.T) {
	svc := newBrowseServices(t)

	ctx, w := newTestContext(http.MethodGet, "/download/folder/nope", nil)
	ctx.Params = gin.Params{{Key: "path", Value: "/nope"}}
	NewBrowseController(ctx, svc).DownloadFolder()
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotEqual(t, "application/zip", w.Header().Get("Content-Type"))

	ctx, w = newTestContext(http.MethodGet, "/download/folder", nil)
	ctx.Params = gin.Params{{Key: "path", Value: "/../.."}}
	NewBrowseController(ctx, svc).DownloadFolder()
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, messages(svc.Activity))
}

func TestBrowseDownloadFileRangeLogsOnlyFinalRange(t *testing.T) {
	svc := newBrowseServices(t)
	writeTestFile(t, svc.Browser.Root().Dir(), "docs/a.txt", "alpha")

	download := func(rangeHeader string) *httptest.ResponseRecorder {
		ctx, w := newTestContext(http.MethodGet, "/download/file/docs/a.txt", nil)
		ctx.Params = gin.Params{{Key: "path", Value: "/docs/a.txt"}}
		ctx.Request.Header.Set("Range", rangeHeader)
		NewBrowseController(ctx, svc).DownloadFile()
		return w
	}

	w := download("bytes=0-2")
	require.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "alp", w.Body.String())
	assert.Empty(t, messages(svc.Activity))

	w = download("bytes=0-0,4-4")
	require.Equal(t, http.StatusPartialContent, w.Code)
	assert.Empty(t, messages(svc.Activity))

	w = download("bytes=3-")
	require.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "ha", w.Body.String())
	assert.Equal(t, []string{"Downloaded file: docs/a.txt"}, messages(svc.Activity))
}

func TestDeliveredTail(t *testing.T) {
	tests := []struct {
		status       int
		contentRange string
		size         int64
		want         bool
	}{
		{http.StatusOK, "", 5, true},
		{http.StatusOK, "", 0, true},
		{http.StatusPartialContent, "bytes 0-2/5", 5, false},
		{http.StatusPartialContent, "bytes 3-4/5", 5, true},
		{http.StatusPartialContent, "", 5, false},
		{http.StatusPartialContent, "bytes */5", 5, false},
		{http.StatusNotModified, "", 5, false},
	}
	for _, tt := range tests {
		header := http.Header{}
		if tt.contentRange != "" {
			header.Set("Content-Range", tt.contentRange)
		}
		assert.Equal(t, tt.want, deliveredTail(tt.status, header, tt.size), "%d %q", tt.status, tt.contentRange)
	}
}

// resetWriter fails every body write, as a client that hung up would.
type resetWriter struct {
	*httptest.ResponseRecorder
}

func (w resetWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset by peer")
}

func TestBrowseDownloadFolderAbortsBrokenStream(t *testing.T) {
	svc := newBrowseServices(t)
	writeTestFile(t, svc.Browser.Root().Dir(), "docs/a.txt", "alpha")

	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(resetWriter{rec})
	ctx.Request = httptest.NewRequest(http.MethodGet, "/download/folder/docs", nil)
	ctx.Params = gin.Params{{Key: "path", Value: "/docs"}}

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		NewBrowseController(ctx, svc).DownloadFolder()
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, messages(svc.Activity))
}

func TestBrowseDownloadFolderErrorBeforeFirstByte(t *testing.T) {
	svc := newBrowseServices(t)
	writeTestFile(t, svc.Browser.Root().Dir(), "docs/a.txt", "alpha")

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	ctx, w := newTestContext(http.MethodGet, "/download/folder/docs", nil)
	ctx.Request = ctx.Request.WithContext(cancelled)
	ctx.Params = gin.Params{{Key: "path", Value: "/docs"}}

	assert.NotPanics(t, func() { NewBrowseController(ctx, svc).DownloadFolder() })
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.Empty(t, w.Header().Get("Content-Disposition"))
	assert.Empty(t, messages(svc.Activity))
}
