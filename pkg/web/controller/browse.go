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
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lanvault/lanvault/pkg/browse"
	"github.com/lanvault/lanvault/pkg/log"
	"github.com/lanvault/lanvault/pkg/web/model"
	"github.com/lanvault/lanvault/pkg/web/view"
)

// BrowseController serves the read-only directory surface.
type BrowseController struct {
	*basicController
	svc *Services
}

func NewBrowseController(ctx *gin.Context, svc *Services) *BrowseController {
	return &BrowseController{basicController: newBasicController(ctx), svc: svc}
}

// pathParam returns the wildcard parameter key without its leading slash.
// Gin routes on the already decoded URL path, so no further unescaping
// happens here.
func (c *BrowseController) pathParam(key string) string {
	return strings.TrimPrefix(c.ctx.Param(key), "/")
}

// Browse lists one directory.
func (c *BrowseController) Browse() {
	listing, err := c.svc.Browser.List(c.pathParam("subpath"))
	if err != nil {
		c.handleError(err)
		return
	}

	resp := model.DirectoryListing{
		Current: listing.Current,
		Parent:  listing.Parent,
		Entries: make([]model.FileInfo, 0, len(listing.Entries)),
	}
	for _, e := range listing.Entries {
		resp.Entries = append(resp.Entries, toFileInfo(e))
	}

	if c.wantsJSON() {
		c.RespondSuccess(resp)
		return
	}
	c.ctx.HTML(http.StatusOK, view.BrowsePage, resp)
}

// DownloadFile sends one file as an attachment.
func (c *BrowseController) DownloadFile() {
	f, info, p, err := c.svc.Browser.OpenFile(c.pathParam("path"))
	if err != nil {
		c.handleError(err)
		return
	}
	defer f.Close()

	n := c.serveAttachment(f, info, p.Base())
	if deliveredTail(c.ctx.Writer.Status(), c.ctx.Writer.Header(), info.Size()) {
		c.svc.Browser.FileSent(p, n)
	}
}

// DownloadFolder streams a directory as a zip archive. The target is
// validated before any header is written. A failure after the first byte
// went out aborts the connection so the client sees a broken transfer.
func (c *BrowseController) DownloadFolder() {
	dir, err := c.svc.Browser.ResolveDir(c.pathParam("path"))
	if err != nil {
		c.handleError(err)
		return
	}

	c.ctx.Header("Content-Type", "application/zip")
	c.ctx.Header("Content-Disposition", attachmentHeader(browse.ZipName(dir)))
	c.ctx.Status(http.StatusOK)

	if _, err := c.svc.Browser.StreamZip(c.ctx.Request.Context(), dir, c.ctx.Writer); err != nil {
		if !c.ctx.Writer.Written() {
			h := c.ctx.Writer.Header()
			h.Del("Content-Type")
			h.Del("Content-Disposition")
			c.handleError(err)
			return
		}
		log.Warn("folder download of %q ended early: %v", dir.Rel(), err)
		panic(http.ErrAbortHandler)
	}
}

func toFileInfo(e browse.Entry) model.FileInfo {
	return model.FileInfo{
		Name:       e.Name,
		Path:       e.Path,
		IsDir:      e.IsDir,
		Size:       e.Size,
		ModifiedAt: e.ModTime,
	}
}
