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

package api

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/sorintlab/errors"

	"agola.io/accounts/internal/services/accounts/action"
	"agola.io/accounts/internal/services/accounts/common"
	scommon "agola.io/accounts/internal/services/common"
	"agola.io/accounts/internal/util"
	apitypes "agola.io/accounts/services/accounts/api/types"
)

type CSRFHandler struct {
	log zerolog.Logger
}

func NewCSRFHandler(log zerolog.Logger) *CSRFHandler {
	return &CSRFHandler{log: log}
}

// ServeHTTP returns no content, the csrf token header is set by the csrf
// middlewares.
func (h *CSRFHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := util.HTTPResponse(w, http.StatusNoContent, nil); err != nil {
		h.log.Err(err).Send()
	}
}

type LoginHandler struct {
	log             zerolog.Logger
	ah              *action.ActionHandler
	sc              *scommon.CookieSigningData
	unsecureCookies bool
}

func NewLoginHandler(log zerolog.Logger, ah *action.ActionHandler, sc *scommon.CookieSigningData, unsecureCookies bool) *LoginHandler {
	return &LoginHandler{log: log, ah: ah, sc: sc, unsecureCookies: unsecureCookies}
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	res, err := h.do(w, r)
	if util.HTTPError(w, err) {
		h.log.Err(err).Send()
		return
	}

	if err := util.HTTPResponse(w, http.StatusOK, res); err != nil {
		h.log.Err(err).Send()
	}
}

func (h *LoginHandler) do(w http.ResponseWriter, r *http.Request) (*apitypes.LoginResponse, error) {
	ctx := r.Context()

	var req apitypes.LoginRequest
	if err := decodeRequest(r, &req); err != nil {
		return nil, errors.WithStack(err)
	}

	user, err := h.ah.Login(ctx, req.Phone, req.Password)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	// a new session is never otp verified
	if err := setAuthCookies(w, h.sc, h.unsecureCookies, user, ""); err != nil {
		return nil, errors.WithStack(err)
	}

	h.log.Info().Msgf("user %s logged in", user.ID)

	return &apitypes.LoginResponse{User: createUserResponse(user)}, nil
}

type LogoutHandler struct {
	log             zerolog.Logger
	unsecureCookies bool
}

func NewLogoutHandler(log zerolog.Logger, unsecureCookies bool) *LogoutHandler {
	return &LogoutHandler{log: log, unsecureCookies: unsecureCookies}
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	deleteAuthCookies(w, h.unsecureCookies)

	if err := util.HTTPResponse(w, http.StatusNoContent, nil); err != nil {
		h.log.Err(err).Send()
	}
}

type ChangePasswordHandler struct {
	log             zerolog.Logger
	ah              *action.ActionHandler
	sc              *scommon.CookieSigningData
	unsecureCookies bool
}

func NewChangePasswordHandler(log zerolog.Logger, ah *action.ActionHandler, sc *scommon.CookieSigningData, unsecureCookies bool) *ChangePasswordHandler {
	return &ChangePasswordHandler{log: log, ah: ah, sc: sc, unsecureCookies: unsecureCookies}
}

func (h *ChangePasswordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	res, err := h.do(w, r)
	if util.HTTPError(w, err) {
		h.log.Err(err).Send()
		return
	}

	if err := util.HTTPResponse(w, http.StatusOK, res); err != nil {
		h.log.Err(err).Send()
	}
}

func (h *ChangePasswordHandler) do(w http.ResponseWriter, r *http.Request) (*apitypes.UserResponse, error) {
	ctx := r.Context()

	userID, err := currentUserID(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var req apitypes.ChangePasswordRequest
	if err := decodeRequest(r, &req); err != nil {
		return nil, errors.WithStack(err)
	}

	user, err := h.ah.ChangePassword(ctx, &action.ChangePasswordRequest{
		UserID:       userID,
		OldPassword:  req.OldPassword,
		NewPassword1: req.NewPassword1,
		NewPassword2: req.NewPassword2,
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	// keep the current session valid, the other sessions have a stale
	// password hash
	if err := setAuthCookies(w, h.sc, h.unsecureCookies, user, common.CurrentOTPDeviceID(ctx)); err != nil {
		return nil, errors.WithStack(err)
	}

	return createUserResponse(user), nil
}

type ResetPasswordHandler struct {
	log zerolog.Logger
	ah  *action.ActionHandler
}

func NewResetPasswordHandler(log zerolog.Logger, ah *action.ActionHandler) *ResetPasswordHandler {
	return &ResetPasswordHandler{log: log, ah: ah}
}

func (h *ResetPasswordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := h.do(r)
	if util.HTTPError(w, err) {
		h.log.Err(err).Send()
		return
	}

	if err := util.HTTPResponse(w, http.StatusAccepted, &apitypes.MessageResponse{Message: "password reset email sent"}); err != nil {
		h.log.Err(err).Send()
	}
}

func (h *ResetPasswordHandler) do(r *http.Request) error {
	var req apitypes.ResetPasswordRequest
	if err := decodeRequest(r, &req); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(h.ah.ResetPassword(r.Context(), req.Email))
}

type ConfirmPasswordResetHandler struct {
	log zerolog.Logger
	ah  *action.ActionHandler
}

func NewConfirmPasswordResetHandler(log zerolog.Logger, ah *action.ActionHandler) *ConfirmPasswordResetHandler {
	return &ConfirmPasswordResetHandler{log: log, ah: ah}
}

func (h *ConfirmPasswordResetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := h.do(r)
	if util.HTTPError(w, err) {
		h.log.Err(err).Send()
		return
	}

	if err := util.HTTPResponse(w, http.StatusOK, &apitypes.MessageResponse{Message: "password has been reset"}); err != nil {
		h.log.Err(err).Send()
	}
}

func (h *ConfirmPasswordResetHandler) do(r *http.Request) error {
	var req apitypes.ConfirmPasswordResetRequest
	if err := decodeRequest(r, &req); err != nil {
		return errors.WithStack(err)
	}

	err := h.ah.ConfirmPasswordReset(r.Context(), &action.ConfirmPasswordResetRequest{
		UIDB64:       req.UIDB64,
		Token:        req.Token,
		NewPassword1: req.NewPassword1,
		NewPassword2: req.NewPassword2,
	})

	return errors.WithStack(err)
}
