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

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/sorintlab/errors"

	"agola.io/accounts/internal/services/accounts/action"
	"agola.io/accounts/internal/util"
	apitypes "agola.io/accounts/services/accounts/api/types"
)

type CreateUserHandler struct {
	log zerolog.Logger
	ah  *action.ActionHandler
}

func NewCreateUserHandler(log zerolog.Logger, ah *action.ActionHandler) *CreateUserHandler {
	return &CreateUserHandler{log: log, ah: ah}
}

func (h *CreateUserHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	res, err := h.do(r)
	if util.HTTPError(w, err) {
		h.log.Err(err).Send()
		return
	}

	if err := util.HTTPResponse(w, http.StatusCreated, res); err != nil {
		h.log.Err(err).Send()
	}
}

func (h *CreateUserHandler) do(r *http.Request) (*apitypes.UserResponse, error) {
	ctx := r.Context()

	var req apitypes.CreateUserRequest
	if err := decodeRequest(r, &req); err != nil {
		return nil, errors.WithStack(err)
	}

	creq := &action.CreateUserRequest{
		Phone:     req.Phone,
		Email:     req.Email,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Gender:    req.Gender,
		Password1: req.Password1,
		Password2: req.Password2,
	}

	user, err := h.ah.CreateUser(ctx, creq)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return createUserResponse(user), nil
}

type ResendPhoneTokenHandler struct {
	log zerolog.Logger
	ah  *action.ActionHandler
}

func NewResendPhoneTokenHandler(log zerolog.Logger, ah *action.ActionHandler) *ResendPhoneTokenHandler {
	return &ResendPhoneTokenHandler{log: log, ah: ah}
}

func (h *ResendPhoneTokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := mux.Vars(r)["userid"]

	msg, err := h.ah.ResendPhoneToken(ctx, userID)
	if util.HTTPError(w, err) {
		h.log.Err(err).Send()
		return
	}

	if err := util.HTTPResponse(w, http.StatusOK, &apitypes.MessageResponse{Message: msg}); err != nil {
		h.log.Err(err).Send()
	}
}

type VerifyPhoneHandler struct {
	log zerolog.Logger
	ah  *action.ActionHandler
}

func NewVerifyPhoneHandler(log zerolog.Logger, ah *action.ActionHandler) *VerifyPhoneHandler {
	return &VerifyPhoneHandler{log: log, ah: ah}
}

func (h *VerifyPhoneHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	res, err := h.do(r)
	if util.HTTPError(w, err) {
		h.log.Err(err).Send()
		return
	}

	if err := util.HTTPResponse(w, http.StatusOK, res); err != nil {
		h.log.Err(err).Send()
	}
}

func (h *VerifyPhoneHandler) do(r *http.Request) (*apitypes.MessageResponse, error) {
	ctx := r.Context()
	userID := mux.Vars(r)["userid"]

	var req apitypes.VerifyPhoneRequest
	if err := decodeRequest(r, &req); err != nil {
		return nil, errors.WithStack(err)
	}

	res, err := h.ah.VerifyPhone(ctx, userID, req.Code)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if res.PhoneChanged {
		return &apitypes.MessageResponse{Message: "phone number is changed"}, nil
	}
	return &apitypes.MessageResponse{Message: "phone number is verified"}, nil
}

type UserHandler struct {
	log zerolog.Logger
	ah  *action.ActionHandler
}

func NewUserHandler(log zerolog.Logger, ah *action.ActionHandler) *UserHandler {
	return &UserHandler{log: log, ah: ah}
}

func (h *UserHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := mux.Vars(r)["userid"]

	user, err := h.ah.GetUser(ctx, userID)
	if util.HTTPError(w, err) {
		h.log.Err(err).Send()
		return
	}

	if err := util.HTTPResponse(w, http.StatusOK, createUserResponse(user)); err != nil {
		h.log.Err(err).Send()
	}
}

type UpdateUserHandler struct {
	log zerolog.Logger
	ah  *action.ActionHandler
}

func NewUpdateUserHandler(log zerolog.Logger, ah *action.ActionHandler) *UpdateUserHandler {
	return &UpdateUserHandler{log: log, ah: ah}
}

func (h *UpdateUserHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	res, err := h.do(r)
	if util.HTTPError(w, err) {
		h.log.Err(err).Send()
		return
	}

	if err := util.HTTPResponse(w, http.StatusOK, res); err != nil {
		h.log.Err(err).Send()
	}
}

func (h *UpdateUserHandler) do(r *http.Request) (*apitypes.UserResponse, error) {
	ctx := r.Context()
	userID := mux.Vars(r)["userid"]

	curUserID, err := currentUserID(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var req apitypes.UpdateUserRequest
	if err := decodeRequest(r, &req); err != nil {
		return nil, errors.WithStack(err)
	}

	user, err := h.ah.UpdateUser(ctx, &action.UpdateUserRequest{
		UserID:    userID,
		CurUserID: curUserID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Gender:    req.Gender,
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return createUserResponse(user), nil
}

type CurrentUserHandler struct {
	log zerolog.Logger
	ah  *action.ActionHandler
}

func NewCurrentUserHandler(log zerolog.Logger, ah *action.ActionHandler) *CurrentUserHandler {
	return &CurrentUserHandler{log: log, ah: ah}
}

func (h *CurrentUserHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := currentUserID(r)
	if util.HTTPError(w, err) {
		h.log.Err(err).Send()
		return
	}

	user, err := h.ah.GetUser(ctx, userID)
	if util.HTTPError(w, err) {
		h.log.Err(err).Send()
		return
	}

	if err := util.HTTPResponse(w, http.StatusOK, createUserResponse(user)); err != nil {
		h.log.Err(err).Send()
	}
}

type ChangePhoneHandler struct {
	log zerolog.Logger
	ah  *action.ActionHandler
}

func NewChangePhoneHandler(log zerolog.Logger, ah *action.ActionHandler) *ChangePhoneHandler {
	return &ChangePhoneHandler{log: log, ah: ah}
}

func (h *ChangePhoneHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	res, err := h.do(r)
	if util.HTTPError(w, err) {
		h.log.Err(err).Send()
		return
	}

	if err := util.HTTPResponse(w, http.StatusOK, res); err != nil {
		h.log.Err(err).Send()
	}
}

func (h *ChangePhoneHandler) do(r *http.Request) (*apitypes.UserResponse, error) {
	ctx := r.Context()

	userID, err := currentUserID(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var req apitypes.ChangePhoneRequest
	if err := decodeRequest(r, &req); err != nil {
		return nil, errors.WithStack(err)
	}

	user, err := h.ah.ChangePhone(ctx, userID, req.Phone)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return createUserResponse(user), nil
}

type DeleteCurrentUserHandler struct {
	log             zerolog.Logger
	ah              *action.ActionHandler
	unsecureCookies bool
}

func NewDeleteCurrentUserHandler(log zerolog.Logger, ah *action.ActionHandler, unsecureCookies bool) *DeleteCurrentUserHandler {
	return &DeleteCurrentUserHandler{log: log, ah: ah, unsecureCookies: unsecureCookies}
}

func (h *DeleteCurrentUserHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := h.do(w, r)
	if util.HTTPError(w, err) {
		h.log.Err(err).Send()
		return
	}

	if err := util.HTTPResponse(w, http.StatusNoContent, nil); err != nil {
		h.log.Err(err).Send()
	}
}

func (h *DeleteCurrentUserHandler) do(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	userID, err := currentUserID(r)
	if err != nil {
		return errors.WithStack(err)
	}

	var req apitypes.DeleteCurrentUserRequest
	if err := decodeRequest(r, &req); err != nil {
		return errors.WithStack(err)
	}

	if err := h.ah.DeleteCurrentUser(ctx, userID, req.Password); err != nil {
		return errors.WithStack(err)
	}

	deleteAuthCookies(w, h.unsecureCookies)

	return nil
}
