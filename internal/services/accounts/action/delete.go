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
)

// DeleteCurrentUser deletes the user and its email devices after checking
// the user password.
func (h *ActionHandler) DeleteCurrentUser(ctx context.Context, userID, pass string) error {
	err := h.d.Do(ctx, func(tx *sql.Tx) error {
		user, err := h.getUser(tx, userID)
		if err != nil {
			return errors.WithStack(err)
		}
		if !password.Check(user.PasswordHash, pass) {
			return util.NewAPIError(util.ErrBadRequest, errors.Errorf("Incorrect Password!"), serrors.IncorrectPassword())
		}

		if err := h.d.DeleteUserEmailDevices(tx, user.ID); err != nil {
			return errors.WithStack(err)
		}

		return errors.WithStack(h.d.DeleteUser(tx, user.ID))
	})

	return errors.WithStack(err)
}
