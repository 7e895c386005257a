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

package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"gotest.tools/v3/assert"

	"agola.io/accounts/internal/services/accounts/common"
	"agola.io/accounts/internal/testutil"
	"agola.io/accounts/internal/util"
	apierrors "agola.io/accounts/services/accounts/api/errors"
)

type okHandler struct {
	ctx context.Context
}

func (h *okHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.ctx = r.Context()
	w.WriteHeader(http.StatusOK)
}

func doRequest(h http.Handler, ctx context.Context, header http.Header) *http.Response {
	r := httptest.NewRequest("GET", "/", nil).WithContext(ctx)
	for k, v := range header {
		r.Header[k] = v
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	return w.Result()
}

func assertErrorResponse(t *testing.T, resp *http.Response, status int, code util.ErrorCode) {
	t.Helper()

	assert.Equal(t, resp.StatusCode, status)
	err := util.ErrFromRemote(resp)
	rerr, ok := util.AsRemoteError(err)
	assert.Assert(t, ok)
	assert.Equal(t, rerr.Code, string(code))
}

func TestEmailVerificationRequired(t *testing.T) {
	t.Parallel()

	log := testutil.NewLogger(t)

	next := &okHandler{}
	h := NewEmailVerificationRequired(log)(next)

	resp := doRequest(h, context.Background(), nil)
	assertErrorResponse(t, resp, http.StatusForbidden, apierrors.ErrorCodeEmailVerificationRequired)

	ctx := context.WithValue(context.Background(), common.ContextKeyEmailVerified, false)
	resp = doRequest(h, ctx, nil)
	assertErrorResponse(t, resp, http.StatusForbidden, apierrors.ErrorCodeEmailVerificationRequired)

	ctx = context.WithValue(context.Background(), common.ContextKeyEmailVerified, true)
	resp = doRequest(h, ctx, nil)
	assert.Equal(t, resp.StatusCode, http.StatusOK)
}

func TestOTPVerificationRequired(t *testing.T) {
	t.Parallel()

	log := testutil.NewLogger(t)

	next := &okHandler{}
	h := NewOTPVerificationRequired(log)(next)

	resp := doRequest(h, context.Background(), nil)
	assertErrorResponse(t, resp, http.StatusForbidden, apierrors.ErrorCodeOTPVerificationRequired)

	ctx := context.WithValue(context.Background(), common.ContextKeyOTPDeviceID, "deviceid")
	resp = doRequest(h, ctx, nil)
	assert.Equal(t, resp.StatusCode, http.StatusOK)
}

func TestAdminTokenAuthChecker(t *testing.T) {
	t.Parallel()

	log := testutil.NewLogger(t)

	tests := []struct {
		name       string
		adminToken string
		required   bool
		header     http.Header
		status     int
		admin      bool
	}{
		{
			name:       "valid token",
			adminToken: "secret",
			required:   true,
			header:     http.Header{"Authorization": []string{"token secret"}},
			status:     http.StatusOK,
			admin:      true,
		},
		{
			name:       "wrong token",
			adminToken: "secret",
			required:   false,
			header:     http.Header{"Authorization": []string{"token wrong"}},
			status:     http.StatusUnauthorized,
		},
		{
			name:       "missing token required",
			adminToken: "secret",
			required:   true,
			status:     http.StatusUnauthorized,
		},
		{
			name:       "missing token optional",
			adminToken: "secret",
			required:   false,
			status:     http.StatusOK,
		},
		{
			name:     "admin api disabled",
			required: true,
			header:   http.Header{"Authorization": []string{"token "}},
			status:   http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			next := &okHandler{}
			h := NewAuthChecker(log, nil, WithAdminTokenChecker(tt.adminToken), WithRequired(tt.required))(next)

			resp := doRequest(h, context.Background(), tt.header)
			assert.Equal(t, resp.StatusCode, tt.status)

			if tt.status == http.StatusOK {
				assert.Equal(t, common.IsUserAdmin(next.ctx), tt.admin)
				assert.Equal(t, common.IsUserLogged(next.ctx), false)
			}
		})
	}
}
