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

package action

import (
	"context"

	"github.com/sorintlab/errors"

	"agola.io/accounts/internal/services/accounts/password"
	serrors "agola.io/accounts/internal/services/errors"
	"agola.io/accounts/internal/sqlg/sql"
	"agola.io/accounts/internal/util"
	"agola.io/accounts/services/accounts/types"
)

const (
	DefaultUsersLimit = 25
	MaxUsersLimit     = 200
)

type GetUsersRequest struct {
	// StartPhone lists the users after this phone number
	StartPhone string
	Limit      int
	Asc        bool
}

type GetUsersResponse struct {
	Users   []*types.User
	HasMore bool
}

func (h *ActionHandler) GetUsers(ctx context.Context, req *GetUsersRequest) (*GetUsersResponse, error) {
	h.log.Debug().Msgf("get users request: %s", util.Dump(req))

	limit := req.Limit
	if limit == 0 {
		limit = DefaultUsersLimit
	}
	if limit < 0 || limit > MaxUsersLimit {
		return nil, util.NewAPIError(util.ErrBadRequest, errors.Errorf("limit must be between 0 and %d", MaxUsersLimit))
	}

	var users []*types.User
	err := h.d.Do(ctx, func(tx *sql.Tx) error {
		var err error
		// fetch one more user to know if there're more users
		users, err = h.d.GetUsers(tx, req.StartPhone, limit+1, req.Asc)
		return errors.WithStack(err)
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	res := &GetUsersResponse{Users: users}
	if len(users) > limit {
		res.Users = users[:limit]
		res.HasMore = true
	}

	return res, nil
}

type AdminCreateUserRequest struct {
	Phone     string
	Email     string
	Username  *string
	FirstName string
	LastName  string
	Password  string
}

// AdminCreateUser creates an already active user with its email device. The
// password validators aren't applied.
func (h *ActionHandler) AdminCreateUser(ctx context.Context, req *AdminCreateUserRequest) (*types.User, error) {
	v, err := h.validateUser(req.Phone, req.Email, req.Username, req.FirstName, req.LastName, "")
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if req.Password == "" {
		return nil, util.NewAPIError(util.ErrBadRequest, errors.Errorf("password required"), serrors.InvalidPassword())
	}

	passwordHash, err := password.Hash(req.Password)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var user *types.User
	err = h.d.Do(ctx, func(tx *sql.Tx) error {
		if err := h.checkUserUniqueness(tx, v.phone, v.email, v.username); err != nil {
			return errors.WithStack(err)
		}

		user = types.NewUser(tx)
		user.Phone = v.phone
		user.Email = v.email
		user.Username = v.username
		user.FirstName = v.firstName
		user.LastName = v.lastName
		user.Gender = v.gender
		user.PasswordHash = passwordHash
		user.IsActive = true

		if err := h.d.InsertUser(tx, user); err != nil {
			return errors.WithStack(err)
		}

		device := types.NewEmailDevice(tx)
		device.UserID = user.ID
		device.Name = user.Email

		return errors.WithStack(h.d.InsertEmailDevice(tx, device))
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	h.log.Info().Msgf("user %s created, ID: %s", user.Phone, user.ID)

	return user, nil
}

// AdminDeleteUser deletes a user referenced by its ID or its phone number.
func (h *ActionHandler) AdminDeleteUser(ctx context.Context, userRef string) error {
	err := h.d.Do(ctx, func(tx *sql.Tx) error {
		user, err := h.d.GetUserByID(tx, userRef)
		if err != nil {
			return errors.WithStack(err)
		}
		if user == nil {
			if phone, perr := util.NormalizePhone(userRef, h.phoneRegion); perr == nil {
				user, err = h.d.GetUserByPhone(tx, phone)
				if err != nil {
					return errors.WithStack(err)
				}
			}
		}
		if user == nil {
			return util.NewAPIError(util.ErrNotExist, errors.Errorf("user %q doesn't exist", userRef), serrors.UserDoesNotExist())
		}

		if err := h.d.DeleteUserEmailDevices(tx, user.ID); err != nil {
			return errors.WithStack(err)
		}

		return errors.WithStack(h.d.DeleteUser(tx, user.ID))
	})

	return errors.WithStack(err)
}
