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
	invalidLoginMsg    = "Please enter a correct phone number and password. Note that both fields may be case-sensitive."
	inactiveAccountMsg = "Your account is inactive. Please activate it first."
)

func invalidLoginError(err error) error {
	return util.NewAPIError(util.ErrUnauthorized, err, util.WithAPIErrorMsg(invalidLoginMsg), serrors.InvalidLogin())
}

// Login checks the user credentials and updates the user last login time.
func (h *ActionHandler) Login(ctx context.Context, phone, pass string) (*types.User, error) {
	p, err := util.NormalizePhone(phone, h.phoneRegion)
	if err != nil {
		return nil, invalidLoginError(err)
	}

	var user *types.User
	err = h.d.Do(ctx, func(tx *sql.Tx) error {
		var err error
		user, err = h.d.GetUserByPhone(tx, p)
		if err != nil {
			return errors.WithStack(err)
		}
		if user == nil {
			return invalidLoginError(errors.Errorf("user with phone %q doesn't exist", p))
		}
		// the account state is reported before checking the password
		if !user.IsActive {
			return util.NewAPIError(util.ErrForbidden, errors.Errorf("user %q is inactive", user.ID), util.WithAPIErrorMsg(inactiveAccountMsg), serrors.InactiveAccount())
		}
		if !password.Check(user.PasswordHash, pass) {
			return invalidLoginError(errors.Errorf("wrong password for user %q", user.ID))
		}

		now := h.now()
		user.LastLogin = &now

		return errors.WithStack(h.d.UpdateUser(tx, user))
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return user, nil
}
