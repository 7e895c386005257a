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
	"net/url"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/sorintlab/errors"

	"agola.io/accounts/internal/services/accounts/action"
	"agola.io/accounts/internal/services/accounts/common"
	"agola.io/accounts/internal/util"
	apitypes "agola.io/accounts/services/accounts/api/types"
)

func checkAdmin(r *http.Request) error {
	if !common.IsUserAdmin(r.Context()) {
		return util.NewAPIError(util.ErrForbidden, errors.Errorf("user not admin"))
	}
	return nil
}

type AdminUsersHandler struct {
	log zerolog.Logger
	ah  *action.ActionHandler
}

func NewAdminUsersHandler(log zerolog.Logger, ah *action.ActionHandler) *AdminUsersHandler {
	return &AdminUsersHandler{log: log, ah: ah}
}

func (h *AdminUsersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	res, err := h.do(w, r)
	if util.HTTPError(w, err) {
		h.log.Err(err).Send()
		return
	}

	if err := util.HTTPResponse(w, http.StatusOK, res); err != nil {
		h.log.Err(err).Send()
	}
}

func (h *AdminUsersHandler) do(w http.ResponseWriter, r *http.Request) ([]*apitypes.UserResponse, error) {
	if err := checkAdmin(r); err != nil {
		return nil, errors.WithStack(err)
	}

	ropts, err := parseRequestOptions(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	ares, err := h.ah.GetUsers(r.Context(), &action.GetUsersRequest{
		StartPhone: r.URL.Query().Get("start"),
		Limit:      ropts.Limit,
		Asc:        ropts.Asc,
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	users := make([]*apitypes.UserResponse, len(ares.Users))
	for i, u := range ares.Users {
		users[i] = createUserResponse(u)
	}

	addHasMoreHeader(w, ares.HasMore)

	return users, nil
}

type AdminCreateUserHandler struct {
	log zerolog.Logger
	ah  *action.ActionHandler
}

func NewAdminCreateUserHandler(log zerolog.Logger, ah *action.ActionHandler) *AdminCreateUserHandler {
	return &AdminCreateUserHandler{log: log, ah: ah}
}

func (h *AdminCreateUserHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	res, err := h.do(r)
	if util.HTTPError(w, err) {
		h.log.Err(err).Send()
		return
	}

	if err := util.HTTPResponse(w, http.StatusCreated, res); err != nil {
		h.log.Err(err).Send()
	}
}

func (h *AdminCreateUserHandler) do(r *http.Request) (*apitypes.UserResponse, error) {
	if err := checkAdmin(r); err != nil {
		return nil, errors.WithStack(err)
	}

	var req apitypes.AdminCreateUserRequest
	if err := decodeRequest(r, &req); err != nil {
		return nil, errors.WithStack(err)
	}

	user, err := h.ah.AdminCreateUser(r.Context(), &action.AdminCreateUserRequest{
		Phone:     req.Phone,
		Email:     req.Email,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return createUserResponse(user), nil
}

type AdminDeleteUserHandler struct {
	log zerolog.Logger
	ah  *action.ActionHandler
}

func NewAdminDeleteUserHandler(log zerolog.Logger, ah *action.ActionHandler) *AdminDeleteUserHandler {
	return &AdminDeleteUserHandler{log: log, ah: ah}
}

func (h *AdminDeleteUserHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := h.do(r)
	if util.HTTPError(w, err) {
		h.log.Err(err).Send()
		return
	}

	if err := util.HTTPResponse(w, http.StatusNoContent, nil); err != nil {
		h.log.Err(err).Send()
	}
}

func (h *AdminDeleteUserHandler) do(r *http.Request) error {
	if err := checkAdmin(r); err != nil {
		return errors.WithStack(err)
	}

	userRef, err := url.PathUnescape(mux.Vars(r)["userref"])
	if err != nil {
		return util.NewAPIError(util.ErrBadRequest, errors.Wrapf(err, "cannot unescape user ref"))
	}

	return errors.WithStack(h.ah.AdminDeleteUser(r.Context(), userRef))
}
