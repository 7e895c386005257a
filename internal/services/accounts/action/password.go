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
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/sorintlab/errors"

	"agola.io/accounts/internal/mail"
	"agola.io/accounts/internal/services/accounts/password"
	scommon "agola.io/accounts/internal/services/common"
	serrors "agola.io/accounts/internal/services/errors"
	"agola.io/accounts/internal/sqlg/sql"
	"agola.io/accounts/internal/util"
	"agola.io/accounts/services/accounts/types"
)

const (
	invalidResetLinkMsg = "The password reset link was invalid, possibly because it has already been used."
)

type ChangePasswordRequest struct {
	UserID       string
	OldPassword  string
	NewPassword1 string
	NewPassword2 string
}

// ChangePassword changes the user password. The returned user has the new
// password hash, sessions bound to the old one aren't valid anymore.
func (h *ActionHandler) ChangePassword(ctx context.Context, req *ChangePasswordRequest) (*types.User, error) {
	var user *types.User
	err := h.d.Do(ctx, func(tx *sql.Tx) error {
		var err error
		user, err = h.getUser(tx, req.UserID)
		return errors.WithStack(err)
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if !password.Check(user.PasswordHash, req.OldPassword) {
		return nil, util.NewAPIError(util.ErrBadRequest, errors.Errorf("Your old password was entered incorrectly. Please enter it again."), serrors.IncorrectOldPassword())
	}
	if err := validateNewPassword(req.NewPassword1, req.NewPassword2, passwordAttributes(user.Username, user.FirstName, user.LastName, user.Email)); err != nil {
		return nil, errors.WithStack(err)
	}

	passwordHash, err := password.Hash(req.NewPassword1)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	oldPasswordHash := user.PasswordHash
	err = h.d.Do(ctx, func(tx *sql.Tx) error {
		var err error
		user, err = h.getUser(tx, req.UserID)
		if err != nil {
			return errors.WithStack(err)
		}
		if user.PasswordHash != oldPasswordHash {
			return util.NewAPIError(util.ErrBadRequest, errors.Errorf("password concurrently changed"), serrors.IncorrectOldPassword())
		}

		user.PasswordHash = passwordHash

		return errors.WithStack(h.d.UpdateUser(tx, user))
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return user, nil
}

type passwordResetClaims struct {
	jwt.RegisteredClaims

	// Hash is the fingerprint of the user state changed by a password
	// reset or a login
	Hash string `json:"hash"`
}

func passwordResetHash(user *types.User) string {
	var lastLogin string
	if user.LastLogin != nil {
		lastLogin = strconv.FormatInt(user.LastLogin.UTC().Truncate(time.Microsecond).UnixNano(), 10)
	}

	s := sha256.Sum256([]byte(user.ID + "\x00" + user.PasswordHash + "\x00" + lastLogin + "\x00" + user.Email))
	return hex.EncodeToString(s[:])
}

func (h *ActionHandler) generatePasswordResetToken(user *types.User) (string, error) {
	now := h.now()
	claims := &passwordResetClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(h.sd.Duration)),
		},
		Hash: passwordResetHash(user),
	}

	token, err := scommon.GenerateGenericJWTToken(h.sd, claims)
	return token, errors.WithStack(err)
}

func (h *ActionHandler) passwordResetURL(user *types.User, token string) string {
	uidb64 := base64.RawURLEncoding.EncodeToString([]byte(user.ID))
	return fmt.Sprintf("%s/password_reset_confirm/%s/%s/", strings.TrimSuffix(h.webExposedURL, "/"), uidb64, token)
}

func (h *ActionHandler) siteName() string {
	u, err := url.Parse(h.webExposedURL)
	if err != nil || u.Host == "" {
		return h.webExposedURL
	}
	return u.Host
}

// ResetPassword queues a password reset email to every active user with the
// provided verified email.
func (h *ActionHandler) ResetPassword(ctx context.Context, email string) error {
	e, err := normalizeEmail(email)
	if err != nil {
		return errors.WithStack(err)
	}

	err = h.d.Do(ctx, func(tx *sql.Tx) error {
		users, err := h.d.GetUsersByEmailInsensitive(tx, e)
		if err != nil {
			return errors.WithStack(err)
		}
		if len(users) == 0 {
			return util.NewAPIError(util.ErrBadRequest, errors.Errorf("No account found with that email! Please check the email address and try again."), serrors.NoAccountForEmail())
		}

		verified := false
		for _, user := range users {
			if user.EmailVerified {
				verified = true
			}
		}
		if !verified {
			return util.NewAPIError(util.ErrBadRequest, errors.Errorf("The email address of this account is not verified."), serrors.EmailNotVerified())
		}

		for _, user := range users {
			if !user.IsActive || !user.EmailVerified {
				continue
			}
			if err := h.queuePasswordResetEmail(tx, user); err != nil {
				return errors.WithStack(err)
			}
		}

		return nil
	})

	return errors.WithStack(err)
}

func (h *ActionHandler) queuePasswordResetEmail(tx *sql.Tx, user *types.User) error {
	token, err := h.generatePasswordResetToken(user)
	if err != nil {
		return errors.WithStack(err)
	}

	data := &mail.PasswordResetData{
		SiteName: h.siteName(),
		ResetURL: h.passwordResetURL(user, token),
		Phone:    user.Phone,
		Email:    user.Email,
	}
	subject, err := h.templates.PasswordResetSubject(data)
	if err != nil {
		return errors.WithStack(err)
	}
	body, err := h.templates.PasswordResetBody(data)
	if err != nil {
		return errors.WithStack(err)
	}

	emailDelivery := types.NewEmailDelivery(tx)
	emailDelivery.Sender = h.mailFrom
	emailDelivery.Recipient = user.Email
	emailDelivery.Subject = subject
	emailDelivery.Body = body

	return errors.WithStack(h.d.InsertEmailDelivery(tx, emailDelivery))
}

type ConfirmPasswordResetRequest struct {
	UIDB64       string
	Token        string
	NewPassword1 string
	NewPassword2 string
}

func invalidResetLinkError(err error) error {
	return util.NewAPIError(util.ErrBadRequest, err, util.WithAPIErrorMsg(invalidResetLinkMsg), serrors.InvalidPasswordResetLink())
}

func (h *ActionHandler) checkPasswordResetToken(tx *sql.Tx, userID, token string) (*types.User, error) {
	claims := &passwordResetClaims{}
	if err := scommon.ParseGenericJWTToken(h.sd, token, claims); err != nil {
		return nil, invalidResetLinkError(err)
	}
	if claims.Subject != userID {
		return nil, invalidResetLinkError(errors.Errorf("token subject %q doesn't match user %q", claims.Subject, userID))
	}

	user, err := h.d.GetUserByID(tx, userID)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if user == nil {
		return nil, invalidResetLinkError(errors.Errorf("user %q doesn't exist", userID))
	}
	if claims.Hash != passwordResetHash(user) {
		return nil, invalidResetLinkError(errors.Errorf("token already used"))
	}

	return user, nil
}

// ConfirmPasswordReset sets the new password using a password reset link.
// The link cannot be used again since the password hash changes.
func (h *ActionHandler) ConfirmPasswordReset(ctx context.Context, req *ConfirmPasswordResetRequest) error {
	uid, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(req.UIDB64, "="))
	if err != nil {
		return invalidResetLinkError(errors.WithStack(err))
	}
	userID := string(uid)

	var user *types.User
	err = h.d.Do(ctx, func(tx *sql.Tx) error {
		var err error
		user, err = h.checkPasswordResetToken(tx, userID, req.Token)
		return errors.WithStack(err)
	})
	if err != nil {
		return errors.WithStack(err)
	}

	if err := validateNewPassword(req.NewPassword1, req.NewPassword2, passwordAttributes(user.Username, user.FirstName, user.LastName, user.Email)); err != nil {
		return errors.WithStack(err)
	}

	passwordHash, err := password.Hash(req.NewPassword1)
	if err != nil {
		return errors.WithStack(err)
	}

	err = h.d.Do(ctx, func(tx *sql.Tx) error {
		user, err := h.checkPasswordResetToken(tx, userID, req.Token)
		if err != nil {
			return errors.WithStack(err)
		}

		user.PasswordHash = passwordHash

		return errors.WithStack(h.d.UpdateUser(tx, user))
	})

	return errors.WithStack(err)
}
