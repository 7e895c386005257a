// Copyright 2019 Sorint.lab
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
	"unicode/utf8"

	"github.com/sorintlab/errors"

	"agola.io/accounts/internal/services/accounts/password"
	serrors "agola.io/accounts/internal/services/errors"
	"agola.io/accounts/internal/sqlg/sql"
	"agola.io/accounts/internal/util"
	"agola.io/accounts/services/accounts/types"
)

func validateName(field, name string) error {
	if utf8.RuneCountInString(name) > util.MaxNameLength {
		return util.NewAPIError(util.ErrBadRequest, errors.Errorf("%s must have at most %d characters", field, util.MaxNameLength), serrors.InvalidName())
	}
	return nil
}

func (h *ActionHandler) normalizePhone(phone string) (string, error) {
	p, err := util.NormalizePhone(phone, h.phoneRegion)
	if err != nil {
		return "", util.NewAPIError(util.ErrBadRequest, err, util.WithAPIErrorMsg("Enter a valid phone number."), serrors.InvalidPhone())
	}
	return p, nil
}

func normalizeEmail(email string) (string, error) {
	e, err := util.NormalizeEmail(email)
	if err != nil {
		return "", util.NewAPIError(util.ErrBadRequest, err, util.WithAPIErrorMsg("Enter a valid email address."), serrors.InvalidEmail())
	}
	return e, nil
}

func parseGender(gender string) (types.Gender, error) {
	if gender == "" {
		return types.GenderNone, nil
	}
	g, ok := types.ParseGender(gender)
	if !ok {
		return "", util.NewAPIError(util.ErrBadRequest, errors.Errorf("invalid gender %q", gender), serrors.InvalidGender())
	}
	return g, nil
}

func validateUsername(username *string) error {
	if username == nil {
		return nil
	}
	if !util.ValidateUsername(*username) {
		return util.NewAPIError(util.ErrBadRequest, errors.Errorf("invalid user name %q", *username), util.WithAPIErrorMsg("Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."), serrors.InvalidUserName())
	}
	return nil
}

func passwordAttributes(username *string, firstName, lastName, email string) []password.UserAttribute {
	return []password.UserAttribute{
		{Name: "username", Value: util.Deref(username)},
		{Name: "first name", Value: firstName},
		{Name: "last name", Value: lastName},
		{Name: "email address", Value: email},
	}
}

func validateNewPassword(password1, password2 string, attrs []password.UserAttribute) error {
	if password1 != password2 {
		return util.NewAPIError(util.ErrBadRequest, errors.Errorf("The two password fields didn't match."), serrors.PasswordMismatch())
	}
	if err := password.Validate(password1, attrs); err != nil {
		return util.NewAPIError(util.ErrBadRequest, err, serrors.InvalidPassword())
	}
	return nil
}

// emailExists reports whether a user, other than excludeUserID, owns the
// email address. Emails are compared case insensitively.
func (h *ActionHandler) emailExists(tx *sql.Tx, email, excludeUserID string) (bool, error) {
	users, err := h.d.GetUsersByEmailInsensitive(tx, email)
	if err != nil {
		return false, errors.WithStack(err)
	}
	for _, u := range users {
		if u.ID != excludeUserID {
			return true, nil
		}
	}

	return false, nil
}

func (h *ActionHandler) checkUserUniqueness(tx *sql.Tx, phone, email string, username *string) error {
	u, err := h.d.GetUserByPhone(tx, phone)
	if err != nil {
		return errors.WithStack(err)
	}
	if u != nil {
		return util.NewAPIError(util.ErrBadRequest, errors.Errorf("A user with this number already exists!"), serrors.PhoneAlreadyExists())
	}

	exists, err := h.emailExists(tx, email, "")
	if err != nil {
		return errors.WithStack(err)
	}
	if exists {
		return util.NewAPIError(util.ErrBadRequest, errors.Errorf("User with this Email address already exists."), serrors.EmailAlreadyExists())
	}

	if username != nil {
		u, err := h.d.GetUserByUsername(tx, *username)
		if err != nil {
			return errors.WithStack(err)
		}
		if u != nil {
			return util.NewAPIError(util.ErrBadRequest, errors.Errorf("A user with that username already exists."), serrors.UserNameAlreadyExists())
		}
	}

	return nil
}

type CreateUserRequest struct {
	Phone     string
	Email     string
	Username  *string
	FirstName string
	LastName  string
	Gender    string
	Password1 string
	Password2 string
}

type validatedUser struct {
	phone     string
	email     string
	username  *string
	firstName string
	lastName  string
	gender    types.Gender
}

func (h *ActionHandler) validateUser(phone, email string, username *string, firstName, lastName, gender string) (*validatedUser, error) {
	var err error
	v := &validatedUser{firstName: firstName, lastName: lastName}

	if err := validateName("first name", firstName); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := validateName("last name", lastName); err != nil {
		return nil, errors.WithStack(err)
	}
	if v.phone, err = h.normalizePhone(phone); err != nil {
		return nil, errors.WithStack(err)
	}
	if v.email, err = normalizeEmail(email); err != nil {
		return nil, errors.WithStack(err)
	}
	if username != nil && *username != "" {
		if err := validateUsername(username); err != nil {
			return nil, errors.WithStack(err)
		}
		v.username = username
	}
	if v.gender, err = parseGender(gender); err != nil {
		return nil, errors.WithStack(err)
	}

	return v, nil
}

// CreateUser registers a new inactive user. The user is saved only if the
// phone verification token was sent, it will be activated by VerifyPhone.
func (h *ActionHandler) CreateUser(ctx context.Context, req *CreateUserRequest) (*types.User, error) {
	v, err := h.validateUser(req.Phone, req.Email, req.Username, req.FirstName, req.LastName, req.Gender)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if err := validateNewPassword(req.Password1, req.Password2, passwordAttributes(v.username, v.firstName, v.lastName, v.email)); err != nil {
		return nil, errors.WithStack(err)
	}

	err = h.d.Do(ctx, func(tx *sql.Tx) error {
		return errors.WithStack(h.checkUserUniqueness(tx, v.phone, v.email, v.username))
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	passwordHash, err := password.Hash(req.Password1)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := h.sendPhoneToken(ctx, v.phone); err != nil {
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
		user.IsActive = false

		return errors.WithStack(h.d.InsertUser(tx, user))
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return user, nil
}

func (h *ActionHandler) GetUser(ctx context.Context, userID string) (*types.User, error) {
	var user *types.User
	err := h.d.Do(ctx, func(tx *sql.Tx) error {
		var err error
		user, err = h.d.GetUserByID(tx, userID)
		return errors.WithStack(err)
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if user == nil {
		return nil, util.NewAPIError(util.ErrNotExist, errors.Errorf("user %q doesn't exist", userID), serrors.UserDoesNotExist())
	}

	return user, nil
}

type UpdateUserRequest struct {
	UserID string
	// CurUserID is the user doing the update, only the user itself can be
	// updated
	CurUserID string

	FirstName *string
	LastName  *string
	Gender    *string
}

func (h *ActionHandler) UpdateUser(ctx context.Context, req *UpdateUserRequest) (*types.User, error) {
	if req.UserID != req.CurUserID {
		return nil, util.NewAPIError(util.ErrForbidden, errors.Errorf("user %q cannot update user %q", req.CurUserID, req.UserID), serrors.UserNotOwner())
	}

	if req.FirstName != nil {
		if err := validateName("first name", *req.FirstName); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	if req.LastName != nil {
		if err := validateName("last name", *req.LastName); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	var gender types.Gender
	if req.Gender != nil {
		var err error
		if gender, err = parseGender(*req.Gender); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	var user *types.User
	err := h.d.Do(ctx, func(tx *sql.Tx) error {
		var err error
		user, err = h.d.GetUserByID(tx, req.UserID)
		if err != nil {
			return errors.WithStack(err)
		}
		if user == nil {
			return util.NewAPIError(util.ErrNotExist, errors.Errorf("user %q doesn't exist", req.UserID), serrors.UserDoesNotExist())
		}

		if req.FirstName != nil {
			user.FirstName = *req.FirstName
		}
		if req.LastName != nil {
			user.LastName = *req.LastName
		}
		if req.Gender != nil {
			user.Gender = gender
		}

		return errors.WithStack(h.d.UpdateUser(tx, user))
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return user, nil
}

// GetSessionUser returns the user of a session and the session otp device
// id. The otp device id is empty when the device doesn't exist anymore or
// isn't owned by the user.
func (h *ActionHandler) GetSessionUser(ctx context.Context, userID, otpDeviceID string) (*types.User, string, error) {
	var user *types.User
	var deviceID string
	err := h.d.Do(ctx, func(tx *sql.Tx) error {
		var err error
		user, err = h.d.GetUserByID(tx, userID)
		if err != nil {
			return errors.WithStack(err)
		}
		if user == nil || otpDeviceID == "" {
			return nil
		}

		device, err := h.d.GetEmailDeviceByID(tx, otpDeviceID)
		if err != nil {
			return errors.WithStack(err)
		}
		if device != nil && device.UserID == user.ID {
			deviceID = device.ID
		}

		return nil
	})
	if err != nil {
		return nil, "", errors.WithStack(err)
	}

	return user, deviceID, nil
}
