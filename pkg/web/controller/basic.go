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
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lanvault/lanvault/pkg/log"
	"github.com/lanvault/lanvault/pkg/pathguard"
	"github.com/lanvault/lanvault/pkg/upload"
	"github.com/lanvault/lanvault/pkg/web/model"
)

type basicController struct {
	ctx *gin.Context
}

func newBasicController(ctx *gin.Context) *basicController {
	return &basicController{ctx: ctx}
}

func (c *basicController) RespondError(status int, code model.ErrorCode, message ...string) {
	resp := model.ErrorResponse{
		Code:    code,
		Message: "",
	}
	if len(message) > 0 {
		resp.Message = message[0]
	}
	c.ctx.JSON(status, resp)
}

func (c *basicController) RespondSuccess(data any) {
	if data == nil {
		c.ctx.Status(http.StatusOK)
		return
	}
	c.ctx.JSON(http.StatusOK, data)
}

func (c *basicController) QueryInt64(query string, defaultValue int64) int64 {
	val, err := strconv.ParseInt(query, 10, 64)
	if err != nil {
		return defaultValue
	}
	return val
}

// wantsJSON reports whether a listing should be rendered as JSON rather than
// HTML, via ?format=json or the Accept header.
func (c *basicController) wantsJSON() bool {
	if c.ctx.Query("format") == "json" {
		return true
	}
	return c.ctx.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON
}

// handleError maps domain errors to HTTP statuses. Messages never carry
// absolute paths; unexpected errors are only detailed in the server log.
func (c *basicController) handleError(err error) {
	switch {
	case errors.Is(err, pathguard.ErrForbidden):
		c.RespondError(http.StatusForbidden, model.ErrorCodeForbidden, "path is outside the shared directory")
	case errors.Is(err, pathguard.ErrNotFound):
		c.RespondError(http.StatusNotFound, model.ErrorCodeFileNotFound, "file not found")
	case errors.Is(err, upload.ErrNoSession):
		c.RespondError(http.StatusNotFound, model.ErrorCodeSessionNotFound, err.Error())
	case errors.Is(err, upload.ErrInvalidName):
		c.RespondError(http.StatusBadRequest, model.ErrorCodeInvalidFileName, err.Error())
	case errors.Is(err, upload.ErrInvalidChunk):
		c.RespondError(http.StatusBadRequest, model.ErrorCodeInvalidRequest, err.Error())
	case errors.Is(err, upload.ErrOutOfOrder):
		c.RespondError(http.StatusConflict, model.ErrorCodeChunkOutOfOrder, err.Error())
	case errors.Is(err, upload.ErrBusy):
		c.RespondError(http.StatusConflict, model.ErrorCodeUploadBusy, err.Error())
	case errors.Is(err, upload.ErrIntegrity):
		c.RespondError(http.StatusUnprocessableEntity, model.ErrorCodeIntegrity, err.Error())
	default:
		log.Error("%s %s failed: %v", c.ctx.Request.Method, c.ctx.Request.URL.Path, err)
		c.RespondError(http.StatusInternalServerError, model.ErrorCodeRuntimeError, "internal error, see server log")
	}
}
