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

package model

// ErrorCode classifies an API error for clients.
type ErrorCode string

const (
	ErrorCodeInvalidRequest  ErrorCode = "INVALID_REQUEST"
	ErrorCodeMissingQuery    ErrorCode = "MISSING_QUERY"
	ErrorCodeInvalidFile     ErrorCode = "INVALID_FILE"
	ErrorCodeInvalidFileName ErrorCode = "INVALID_FILE_NAME"
	ErrorCodeFileNotFound    ErrorCode = "FILE_NOT_FOUND"
	ErrorCodeForbidden       ErrorCode = "FORBIDDEN_PATH"
	ErrorCodeChunkOutOfOrder ErrorCode = "CHUNK_OUT_OF_ORDER"
	ErrorCodeUploadBusy      ErrorCode = "UPLOAD_BUSY"
	ErrorCodeIntegrity       ErrorCode = "INTEGRITY_MISMATCH"
	ErrorCodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	ErrorCodeRequestTooLarge ErrorCode = "REQUEST_TOO_LARGE"
	ErrorCodeRuntimeError    ErrorCode = "RUNTIME_ERROR"
	ErrorCodeUnknown         ErrorCode = "UNKNOWN"
)

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}
