// Copyright 2024 Sorint.lab
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied
// See the License for the specific language governing permissions and
// limitations under the License.

package util

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/sorintlab/errors"
)

func HTTPResponse(w http.ResponseWriter, code int, res any) error {
	w.Header().Set("Content-Type", "application/json")

	if res != nil {
		resj, err := json.Marshal(res)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return errors.WithStack(err)
		}
		w.WriteHeader(code)
		_, err = w.Write(resj)
		return errors.WithStack(err)
	}

	w.WriteHeader(code)
	return nil
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func ErrorResponseFromError(err error) *ErrorResponse {
	if err == nil {
		return nil
	}

	if derr, ok := AsAPIError(err); ok {
		return &ErrorResponse{Code: string(derr.Code), Message: derr.Message}
	}

	// on generic error return an error response without any code
	return &ErrorResponse{}
}

func statusFromKind(kind ErrorKind) int {
	switch kind {
	case ErrBadRequest:
		return http.StatusBadRequest
	case ErrNotExist:
		return http.StatusNotFound
	case ErrForbidden:
		return http.StatusForbidden
	case ErrUnauthorized:
		return http.StatusUnauthorized
	}

	return http.StatusInternalServerError
}

func kindFromStatus(status int) ErrorKind {
	switch status {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusNotFound:
		return ErrNotExist
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusUnauthorized:
		return ErrUnauthorized
	}

	return ErrInternal
}

// HTTPError writes the error response. It returns false when err is nil.
func HTTPError(w http.ResponseWriter, err error) bool {
	if err == nil {
		return false
	}

	response := ErrorResponseFromError(err)
	resj, merr := json.Marshal(response)
	if merr != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return true
	}

	code := http.StatusInternalServerError
	if derr, ok := AsAPIError(err); ok {
		code = statusFromKind(derr.Kind)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(resj)

	return true
}

func ErrFromRemote(resp *http.Response) error {
	if resp == nil {
		return nil
	}
	if resp.StatusCode/100 == 2 {
		return nil
	}

	response := &ErrorResponse{}

	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WithStack(err)
	}

	// Re-populate error response body so it can be parsed by the caller if needed
	resp.Body = io.NopCloser(bytes.NewBuffer(data))

	if err := json.Unmarshal(data, &response); err != nil {
		return errors.Errorf("unknown api error (status: %d)", resp.StatusCode)
	}

	return NewRemoteError(kindFromStatus(resp.StatusCode), response.Code, response.Message)
}
