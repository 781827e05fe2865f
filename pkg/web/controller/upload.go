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
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lanvault/lanvault/pkg/log"
	"github.com/lanvault/lanvault/pkg/metrics"
	"github.com/lanvault/lanvault/pkg/upload"
	"github.com/lanvault/lanvault/pkg/web/model"
	"github.com/lanvault/lanvault/pkg/web/view"
)

// multipartOverhead is the allowance for boundaries and the metadata fields
// on top of the chunk body itself.
const multipartOverhead = 64 << 10

// UploadController serves the upload surface.
type UploadController struct {
	*basicController
	svc *Services
}

func NewUploadController(ctx *gin.Context, svc *Services) *UploadController {
	return &UploadController{basicController: newBasicController(ctx), svc: svc}
}

// Index lists the saved files as HTML, or JSON when asked for.
func (c *UploadController) Index() {
	files, err := c.svc.Store.List()
	if err != nil {
		c.handleError(err)
		return
	}

	resp := model.SavedFilesResponse{Files: make([]model.FileInfo, 0, len(files))}
	for _, f := range files {
		resp.Files = append(resp.Files, model.FileInfo{Name: f.Name, Path: f.Name, Size: f.Size, ModifiedAt: f.ModifiedAt})
	}

	if c.wantsJSON() {
		c.RespondSuccess(resp)
		return
	}
	c.ctx.HTML(http.StatusOK, view.UploadPage, gin.H{
		"Files":     resp.Files,
		"ChunkSize": c.svc.ChunkSize,
	})
}

// UploadChunk appends one multipart chunk and answers "OK" once it is on
// disk.
func (c *UploadController) UploadChunk() {
	if c.svc.MaxChunkBytes > 0 {
		c.ctx.Request.Body = http.MaxBytesReader(c.ctx.Writer, c.ctx.Request.Body, c.svc.MaxChunkBytes+multipartOverhead)
	}

	form, err := c.ctx.MultipartForm()
	if err != nil || form == nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.RespondError(
				http.StatusRequestEntityTooLarge,
				model.ErrorCodeRequestTooLarge,
				fmt.Sprintf("chunk exceeds %d bytes", c.svc.MaxChunkBytes),
			)
			return
		}
		c.RespondError(
			http.StatusBadRequest,
			model.ErrorCodeInvalidFile,
			"multipart form is empty",
		)
		return
	}

	request, err := parseChunkRequest(form)
	if err != nil {
		c.RespondError(http.StatusBadRequest, model.ErrorCodeInvalidRequest, err.Error())
		return
	}

	fileParts := form.File["file"]
	if len(fileParts) == 0 {
		c.RespondError(
			http.StatusBadRequest,
			model.ErrorCodeInvalidFile,
			"file is missing",
		)
		return
	}
	data, err := fileParts[0].Open()
	if err != nil {
		c.handleError(fmt.Errorf("open chunk body: %w", err))
		return
	}
	defer data.Close()

	_, err = c.svc.Reassembler.Append(c.ctx.Request.Context(), upload.Chunk{
		Filename: request.Filename,
		Index:    request.Index,
		Total:    request.Total,
		Data:     data,
		Size:     request.Size,
		SHA256:   request.SHA256,
	})
	if err != nil {
		c.handleError(err)
		return
	}

	c.ctx.String(http.StatusOK, "OK")
}

// ChunkStatus reports the progress of an unfinished upload.
func (c *UploadController) ChunkStatus() {
	filename := c.ctx.Query("filename")
	if filename == "" {
		c.RespondError(
			http.StatusBadRequest,
			model.ErrorCodeMissingQuery,
			"missing query parameter 'filename'",
		)
		return
	}

	progress, err := c.svc.Reassembler.Status(filename)
	if err != nil {
		c.handleError(err)
		return
	}
	c.RespondSuccess(model.UploadStatus{
		Filename:  progress.Name,
		NextIndex: progress.Next,
		Total:     progress.Total,
		Received:  progress.Received,
		UpdatedAt: progress.UpdatedAt,
	})
}

// DownloadFile sends a saved file as an attachment.
func (c *UploadController) DownloadFile() {
	name := strings.TrimPrefix(c.ctx.Param("name"), "/")

	f, info, err := c.svc.Store.Open(name)
	if err != nil {
		c.handleError(err)
		return
	}
	defer f.Close()

	n := c.serveAttachment(f, info, info.Name())
	if deliveredTail(c.ctx.Writer.Status(), c.ctx.Writer.Header(), info.Size()) {
		metrics.RecordDownload(metrics.KindSaved, n, true)
	}
}

// DeleteFile removes a saved file and sends the browser back to the list.
// Deleting a missing file is not an error.
func (c *UploadController) DeleteFile() {
	name := strings.TrimPrefix(c.ctx.Param("name"), "/")

	deleted, err := c.svc.Store.Delete(name)
	if err != nil {
		c.handleError(err)
		return
	}
	if !deleted {
		log.Debug("delete of %q was a no-op", name)
	}
	c.ctx.Redirect(http.StatusFound, "/")
}

// parseChunkRequest reads and validates the metadata fields of a chunk.
func parseChunkRequest(form *multipart.Form) (*model.ChunkUploadRequest, error) {
	value := func(key string) (string, bool) {
		values := form.Value[key]
		if len(values) == 0 {
			return "", false
		}
		return values[0], true
	}
	integer := func(key string) (int, error) {
		raw, ok := value(key)
		if !ok {
			return 0, fmt.Errorf("missing form field '%s'", key)
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return 0, fmt.Errorf("form field '%s' is not an integer", key)
		}
		return n, nil
	}

	request := &model.ChunkUploadRequest{Size: -1}
	filename, ok := value("filename")
	if !ok {
		return nil, errors.New("missing form field 'filename'")
	}
	request.Filename = filename

	var err error
	if request.Index, err = integer("index"); err != nil {
		return nil, err
	}
	if request.Total, err = integer("total"); err != nil {
		return nil, err
	}
	if raw, ok := value("size"); ok && strings.TrimSpace(raw) != "" {
		size, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, errors.New("form field 'size' is not an integer")
		}
		request.Size = size
	}
	if raw, ok := value("sha256"); ok {
		request.SHA256 = strings.TrimSpace(raw)
	}

	if err := request.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chunk metadata: %w", err)
	}
	return request, nil
}
