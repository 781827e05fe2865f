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

	"github.com/gin-gonic/gin"

	"github.com/lanvault/lanvault/pkg/netinfo"
	"github.com/lanvault/lanvault/pkg/web/model"
)

const (
	defaultQRSize = 256
	minQRSize     = 64
	maxQRSize     = 1024
)

// PingHandler is used by health checks.
func PingHandler(ctx *gin.Context) {
	ctx.String(http.StatusOK, "pong")
}

// CommonController serves endpoints shared by both services.
type CommonController struct {
	*basicController
	svc *Services
}

func NewCommonController(ctx *gin.Context, svc *Services) *CommonController {
	return &CommonController{basicController: newBasicController(ctx), svc: svc}
}

// QRCode renders the service access URL as a PNG QR code.
func (c *CommonController) QRCode() {
	if c.svc.AccessURL == "" {
		c.RespondError(http.StatusNotFound, model.ErrorCodeFileNotFound, "access url is not known yet")
		return
	}

	size := c.QueryInt64(c.ctx.Query("size"), defaultQRSize)
	size = min(max(size, minQRSize), maxQRSize)

	png, err := netinfo.QRPNG(c.svc.AccessURL, int(size))
	if err != nil {
		c.handleError(err)
		return
	}
	c.ctx.Header("Cache-Control", "no-cache")
	c.ctx.Data(http.StatusOK, "image/png", png)
}
