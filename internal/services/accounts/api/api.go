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
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sorintlab/errors"

	"agola.io/accounts/internal/services/accounts/common"
	scommon "agola.io/accounts/internal/services/common"
	"agola.io/accounts/internal/util"
	apitypes "agola.io/accounts/services/accounts/api/types"
	"agola.io/accounts/services/accounts/types"
)

const (
	accountsHasMoreHeader = "X-Accounts-HasMore"
)

func decodeRequest(r *http.Request, req any) error {
	d := json.NewDecoder(r.Body)
	if err := d.Decode(req); err != nil {
		return util.NewAPIError(util.ErrBadRequest, errors.Wrapf(err, "failed to decode request"))
	}

	return nil
}

func addHasMoreHeader(w http.ResponseWriter, hasMore bool) {
	w.Header().Add(accountsHasMoreHeader, strconv.FormatBool(hasMore))
}

type requestOptions struct {
	Limit int
	Asc   bool
}

func parseRequestOptions(r *http.Request) (*requestOptions, error) {
	query := r.URL.Query()

	limit := 0
	limitS := query.Get("limit")
	if limitS != "" {
		var err error
		limit, err = strconv.Atoi(limitS)
		if err != nil {
			return nil, util.NewAPIError(util.ErrBadRequest, errors.Wrapf(err, "cannot parse limit"))
		}
	}
	if limit < 0 {
		return nil, util.NewAPIError(util.ErrBadRequest, errors.Errorf("limit must be greater or equal than 0"))
	}

	_, asc := query["asc"]

	return &requestOptions{
		Limit: limit,
		Asc:   asc,
	}, nil
}

func currentUserID(r *http.Request) (string, error) {
	userID := common.CurrentUserID(r.Context())
	if userID == "" {
		return "", util.NewAPIError(util.ErrUnauthorized, errors.Errorf("user not authenticated"))
	}

	return userID, nil
}

// setAuthCookies issues new session cookies for the user.
func setAuthCookies(w http.ResponseWriter, sc *scommon.CookieSigningData, unsecureCookies bool, user *types.User, otpDeviceID string) error {
	cookie, secondaryCookie, err := common.GenerateAuthCookies(user.ID, otpDeviceID, common.SessionHash(sc, user.PasswordHash), sc, unsecureCookies)
	if err != nil {
		return errors.WithStack(err)
	}

	http.SetCookie(w, cookie)
	http.SetCookie(w, secondaryCookie)

	return nil
}

func deleteAuthCookies(w http.ResponseWriter, unsecureCookies bool) {
	for _, cookie := range common.DeleteAuthCookies(unsecureCookies) {
		http.SetCookie(w, cookie)
	}
}

func createUserResponse(u *types.User) *apitypes.UserResponse {
	return &apitypes.UserResponse{
		ID:            u.ID,
		Phone:         u.Phone,
		PhoneTemp:     u.PhoneTemp,
		Email:         u.Email,
		EmailTemp:     u.EmailTemp,
		EmailVerified: u.EmailVerified,
		Username:      u.Username,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Gender:        string(u.Gender),
		IsActive:      u.IsActive,
		LastLogin:     u.LastLogin,
	}
}

func createEmailDeviceResponse(d *types.EmailDevice) *apitypes.EmailDeviceResponse {
	return &apitypes.EmailDeviceResponse{
		ID:   d.ID,
		Name: d.Name,
	}
}
