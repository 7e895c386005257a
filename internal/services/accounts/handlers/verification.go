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
	"net/http"

	"github.com/rs/zerolog"
	"github.com/sorintlab/errors"

	"agola.io/accounts/internal/services/accounts/common"
	serrors "agola.io/accounts/internal/services/errors"
	"agola.io/accounts/internal/util"
)

// EmailVerificationRequired rejects the requests of logged users without a
// verified email.
type EmailVerificationRequired struct {
	log  zerolog.Logger
	next http.Handler
}

func NewEmailVerificationRequired(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return &EmailVerificationRequired{log, h}
	}
}

func (h *EmailVerificationRequired) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !common.IsEmailVerified(ctx) {
		err := util.NewAPIError(util.ErrForbidden, errors.Errorf("Email verification required."), serrors.EmailVerificationRequired())
		util.HTTPError(w, err)
		h.log.Err(err).Send()
		return
	}

	h.next.ServeHTTP(w, r)
}

// OTPVerificationRequired rejects the requests of sessions not verified with
// an otp token.
type OTPVerificationRequired struct {
	log  zerolog.Logger
	next http.Handler
}

func NewOTPVerificationRequired(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return &OTPVerificationRequired{log, h}
	}
}

func (h *OTPVerificationRequired) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !common.IsOTPVerified(ctx) {
		err := util.NewAPIError(util.ErrForbidden, errors.Errorf("OTP verification required."), serrors.OTPVerificationRequired())
		util.HTTPError(w, err)
		h.log.Err(err).Send()
		return
	}

	h.next.ServeHTTP(w, r)
}
