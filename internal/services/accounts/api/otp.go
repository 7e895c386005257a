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
	scommon "agola.io/accounts/internal/services/common"
	"agola.io/accounts/internal/util"
	apitypes "agola.io/accounts/services/accounts/api/types"
)

type EmailDevicesHandler struct {
	log zerolog.Logger
	ah  *action.ActionHandler
}

func NewEmailDevicesHandler(log zerolog.Logger, ah *action.ActionHandler) *EmailDevicesHandler {
	return &EmailDevicesHandler{log: log, ah: ah}
}

func (h *EmailDevicesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	res, err := h.do(r)
	if util.HTTPError(w, err) {
		h.log.Err(err).Send()
		return
	}

	if err := util.HTTPResponse(w, http.StatusOK, res); err != nil {
		h.log.Err(err).Send()
	}
}

func (h *EmailDevicesHandler) do(r *http.Request) ([]*apitypes.EmailDeviceResponse, error) {
	userID, err := currentUserID(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	devices, err := h.ah.GetUserEmailDevices(r.Context(), userID)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	res := make([]*apitypes.EmailDeviceResponse, len(devices))
	for i, d := range devices {
		res[i] = createEmailDeviceResponse(d)
	}

	return res, nil
}

// otpResponse writes the otp form response: 202 when a token was sent, 200
// with new session cookies bound to the verified device otherwise.
func otpResponse(w http.ResponseWriter, sc *scommon.CookieSigningData, unsecureCookies bool, ares *action.VerifyOTPResponse) (int, *apitypes.VerifyOTPResponse, error) {
	res := &apitypes.VerifyOTPResponse{User: createUserResponse(ares.User)}

	if ares.Device == nil {
		res.ChallengeMessage = ares.ChallengeMessage
		return http.StatusAccepted, res, nil
	}

	if err := setAuthCookies(w, sc, unsecureCookies, ares.User, ares.Device.ID); err != nil {
		return 0, nil, errors.WithStack(err)
	}
	res.Device = createEmailDeviceResponse(ares.Device)

	return http.StatusOK, res, nil
}

type VerifyOTPHandler struct {
	log             zerolog.Logger
	ah              *action.ActionHandler
	sc              *scommon.CookieSigningData
	unsecureCookies bool
}

func NewVerifyOTPHandler(log zerolog.Logger, ah *action.ActionHandler, sc *scommon.CookieSigningData, unsecureCookies bool) *VerifyOTPHandler {
	return &VerifyOTPHandler{log: log, ah: ah, sc: sc, unsecureCookies: unsecureCookies}
}

func (h *VerifyOTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	code, res, err := h.do(w, r)
	if util.HTTPError(w, err) {
		h.log.Err(err).Send()
		return
	}

	if err := util.HTTPResponse(w, code, res); err != nil {
		h.log.Err(err).Send()
	}
}

func (h *VerifyOTPHandler) do(w http.ResponseWriter, r *http.Request) (int, *apitypes.VerifyOTPResponse, error) {
	userID, err := currentUserID(r)
	if err != nil {
		return 0, nil, errors.WithStack(err)
	}

	var req apitypes.VerifyOTPRequest
	if err := decodeRequest(r, &req); err != nil {
		return 0, nil, errors.WithStack(err)
	}

	ares, err := h.ah.VerifyOTP(r.Context(), &action.VerifyOTPRequest{
		UserID:    userID,
		DeviceID:  req.DeviceID,
		Token:     req.Token,
		Challenge: req.Challenge,
	})
	if err != nil {
		return 0, nil, errors.WithStack(err)
	}

	return otpResponse(w, h.sc, h.unsecureCookies, ares)
}

type ChangeEmailHandler struct {
	log             zerolog.Logger
	ah              *action.ActionHandler
	sc              *scommon.CookieSigningData
	unsecureCookies bool
}

func NewChangeEmailHandler(log zerolog.Logger, ah *action.ActionHandler, sc *scommon.CookieSigningData, unsecureCookies bool) *ChangeEmailHandler {
	return &ChangeEmailHandler{log: log, ah: ah, sc: sc, unsecureCookies: unsecureCookies}
}

func (h *ChangeEmailHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	code, res, err := h.do(w, r)
	if util.HTTPError(w, err) {
		h.log.Err(err).Send()
		return
	}

	if err := util.HTTPResponse(w, code, res); err != nil {
		h.log.Err(err).Send()
	}
}

func (h *ChangeEmailHandler) do(w http.ResponseWriter, r *http.Request) (int, *apitypes.VerifyOTPResponse, error) {
	userID, err := currentUserID(r)
	if err != nil {
		return 0, nil, errors.WithStack(err)
	}

	var req apitypes.ChangeEmailRequest
	if err := decodeRequest(r, &req); err != nil {
		return 0, nil, errors.WithStack(err)
	}

	ares, err := h.ah.ChangeEmail(r.Context(), &action.ChangeEmailRequest{
		UserID:    userID,
		DeviceID:  req.DeviceID,
		NewEmail:  req.NewEmail,
		Token:     req.Token,
		Challenge: req.Challenge,
	})
	if err != nil {
		return 0, nil, errors.WithStack(err)
	}

	return otpResponse(w, h.sc, h.unsecureCookies, ares)
}
