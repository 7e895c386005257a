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
	"fmt"

	"github.com/sorintlab/errors"

	serrors "agola.io/accounts/internal/services/errors"
	"agola.io/accounts/internal/sms"
	"agola.io/accounts/internal/sqlg/sql"
	"agola.io/accounts/internal/util"
	"agola.io/accounts/services/accounts/types"
)

func (h *ActionHandler) sendPhoneToken(ctx context.Context, phone string) error {
	status, err := h.sms.SendToken(ctx, phone)
	if err != nil {
		h.log.Err(err).Msgf("failed to send verification token to %q", phone)
	}
	if status != sms.StatusPending {
		return util.NewAPIError(util.ErrBadRequest, errors.Errorf("failed to send verification code to %s, status: %s", phone, status), serrors.SMSSendFailed())
	}

	return nil
}

func (h *ActionHandler) getUser(tx *sql.Tx, userID string) (*types.User, error) {
	user, err := h.d.GetUserByID(tx, userID)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if user == nil {
		return nil, util.NewAPIError(util.ErrNotExist, errors.Errorf("user %q doesn't exist", userID), serrors.UserDoesNotExist())
	}

	return user, nil
}

// ResendPhoneToken sends a new verification token to the phone number
// waiting for verification.
func (h *ActionHandler) ResendPhoneToken(ctx context.Context, userID string) (string, error) {
	var phone string
	err := h.d.Do(ctx, func(tx *sql.Tx) error {
		user, err := h.getUser(tx, userID)
		if err != nil {
			return errors.WithStack(err)
		}
		phone = user.VerificationPhone()

		return nil
	})
	if err != nil {
		return "", errors.WithStack(err)
	}

	if err := h.sendPhoneToken(ctx, phone); err != nil {
		return "", errors.WithStack(err)
	}

	return fmt.Sprintf("sent another confirmation code to %s", phone), nil
}

type VerifyPhoneResult struct {
	User *types.User
	// PhoneChanged is true when a phone number change was verified, false
	// when the account was activated
	PhoneChanged bool
}

// VerifyPhone checks the token sent to the phone number waiting for
// verification. A verified new phone number replaces the current one,
// otherwise the account is activated and its email device created.
func (h *ActionHandler) VerifyPhone(ctx context.Context, userID, code string) (*VerifyPhoneResult, error) {
	var phone string
	err := h.d.Do(ctx, func(tx *sql.Tx) error {
		user, err := h.getUser(tx, userID)
		if err != nil {
			return errors.WithStack(err)
		}
		phone = user.VerificationPhone()

		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	status, err := h.sms.CheckToken(ctx, phone, code)
	if err != nil {
		h.log.Err(err).Msgf("failed to check verification token for %q", phone)
	}
	if status != sms.StatusApproved {
		return nil, util.NewAPIError(util.ErrBadRequest, errors.Errorf("phone %s verification failed, status: %s", phone, status), util.WithAPIErrorMsg("Invalid verification code."), serrors.SMSCheckFailed())
	}

	res := &VerifyPhoneResult{}
	err = h.d.Do(ctx, func(tx *sql.Tx) error {
		user, err := h.getUser(tx, userID)
		if err != nil {
			return errors.WithStack(err)
		}
		if user.VerificationPhone() != phone {
			return util.NewAPIError(util.ErrBadRequest, errors.Errorf("phone number to verify changed"), serrors.SMSCheckFailed())
		}

		if user.PhoneTemp != nil {
			u, err := h.d.GetUserByPhone(tx, *user.PhoneTemp)
			if err != nil {
				return errors.WithStack(err)
			}
			if u != nil {
				return util.NewAPIError(util.ErrBadRequest, errors.Errorf("A user with this number already exists!"), serrors.PhoneAlreadyExists())
			}

			user.Phone = *user.PhoneTemp
			user.PhoneTemp = nil
			if err := h.d.UpdateUser(tx, user); err != nil {
				return errors.WithStack(err)
			}

			res.User = user
			res.PhoneChanged = true
			return nil
		}

		user.IsActive = true
		if err := h.d.UpdateUser(tx, user); err != nil {
			return errors.WithStack(err)
		}

		devices, err := h.d.GetUserEmailDevices(tx, user.ID)
		if err != nil {
			return errors.WithStack(err)
		}
		if len(devices) == 0 {
			device := types.NewEmailDevice(tx)
			device.UserID = user.ID
			device.Name = user.Email
			if err := h.d.InsertEmailDevice(tx, device); err != nil {
				return errors.WithStack(err)
			}
		}

		res.User = user
		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return res, nil
}

// ChangePhone sends a verification token to the new phone number and saves
// it as the phone number waiting for verification.
func (h *ActionHandler) ChangePhone(ctx context.Context, userID, newPhone string) (*types.User, error) {
	phone, err := h.normalizePhone(newPhone)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	checkPhone := func(tx *sql.Tx) (*types.User, error) {
		user, err := h.getUser(tx, userID)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if user.Phone == phone {
			return nil, util.NewAPIError(util.ErrBadRequest, errors.Errorf("You are already using this number!"), serrors.PhoneUnchanged())
		}
		u, err := h.d.GetUserByPhone(tx, phone)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if u != nil {
			return nil, util.NewAPIError(util.ErrBadRequest, errors.Errorf("A user with this number already exists!"), serrors.PhoneAlreadyExists())
		}

		return user, nil
	}

	err = h.d.Do(ctx, func(tx *sql.Tx) error {
		_, err := checkPhone(tx)
		return errors.WithStack(err)
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := h.sendPhoneToken(ctx, phone); err != nil {
		return nil, errors.WithStack(err)
	}

	var user *types.User
	err = h.d.Do(ctx, func(tx *sql.Tx) error {
		var err error
		user, err = checkPhone(tx)
		if err != nil {
			return errors.WithStack(err)
		}

		user.PhoneTemp = &phone
		return errors.WithStack(h.d.UpdateUser(tx, user))
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return user, nil
}
