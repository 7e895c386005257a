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

	"agola.io/accounts/internal/mail"
	"agola.io/accounts/internal/services/accounts/otp"
	serrors "agola.io/accounts/internal/services/errors"
	"agola.io/accounts/internal/sqlg/sql"
	"agola.io/accounts/internal/util"
	"agola.io/accounts/services/accounts/types"
)

func (h *ActionHandler) GetUserEmailDevices(ctx context.Context, userID string) ([]*types.EmailDevice, error) {
	var devices []*types.EmailDevice
	err := h.d.Do(ctx, func(tx *sql.Tx) error {
		if _, err := h.getUser(tx, userID); err != nil {
			return errors.WithStack(err)
		}

		var err error
		devices, err = h.d.GetUserEmailDevices(tx, userID)
		return errors.WithStack(err)
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return devices, nil
}

func otpTokenRequiredError() error {
	return util.NewAPIError(util.ErrBadRequest, errors.New(otp.MsgTokenRequired), serrors.OTPTokenRequired())
}

func otpNotInteractiveError() error {
	return util.NewAPIError(util.ErrBadRequest, errors.New(otp.MsgNotInteractive), serrors.OTPDeviceNotInteractive())
}

func otpChallengeError(err error) error {
	return util.NewAPIError(util.ErrBadRequest, err, util.WithAPIErrorMsg("%s", otp.ChallengeExceptionMsg(err)), serrors.OTPChallengeFailed())
}

func otpInvalidTokenError() error {
	return util.NewAPIError(util.ErrBadRequest, errors.New(otp.MsgInvalidToken), serrors.OTPInvalidToken())
}

func otpNotAllowedError(n *otp.NotAllowed) error {
	if n != nil && n.Reason == otp.NotAllowedReasonNFailedAttempts {
		return util.NewAPIError(util.ErrBadRequest, errors.New(n.Message()), serrors.OTPFailedAttempts())
	}
	return util.NewAPIError(util.ErrBadRequest, errors.New(otp.MsgVerificationNotAllowed), serrors.OTPVerificationNotAllowed())
}

// userDevice returns the user email device with the provided id. It returns
// nil when the device doesn't exist or it's owned by another user.
func (h *ActionHandler) userDevice(tx *sql.Tx, user *types.User, deviceID string) (*types.EmailDevice, error) {
	if deviceID == "" {
		return nil, nil
	}

	device, err := h.d.GetEmailDeviceByID(tx, deviceID)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if device == nil || device.UserID != user.ID {
		return nil, nil
	}

	return device, nil
}

// challenge generates a new device token and sends it to the device email
// or, when not set, to the user email. The caller must save the device.
func (h *ActionHandler) challenge(ctx context.Context, user *types.User, device *types.EmailDevice) (string, error) {
	if err := otp.GenerateToken(device, h.now(), h.otp.TokenValidity); err != nil {
		return "", errors.WithStack(err)
	}

	to := util.Deref(device.Email)
	if to == "" {
		to = user.Email
	}

	body, err := h.templates.OTPBody(&mail.OTPData{Token: *device.Token})
	if err != nil {
		return "", errors.WithStack(err)
	}

	m := &mail.Message{
		From:    h.otp.EmailSender,
		To:      to,
		Subject: h.otp.EmailSubject,
		Body:    body,
	}
	if err := h.mailSender.Send(ctx, m); err != nil {
		return "", errors.WithStack(err)
	}

	return otp.ChallengeMsg("sent to " + to), nil
}

// verifyToken verifies the token against the provided device or, when nil,
// against every user device. It returns the verified device or a validation
// error. Every checked device is saved since the verification changes its
// throttling state.
func (h *ActionHandler) verifyToken(tx *sql.Tx, user *types.User, device *types.EmailDevice, token string) (*types.EmailDevice, error, error) {
	now := h.now()
	factor := h.otp.ThrottleFactor

	var devices []*types.EmailDevice
	if device != nil {
		if allowed, notAllowed := otp.VerifyIsAllowed(device, factor, now); !allowed {
			return nil, otpNotAllowedError(notAllowed), nil
		}
		devices = []*types.EmailDevice{device}
	} else {
		var err error
		devices, err = h.d.GetUserEmailDevices(tx, user.ID)
		if err != nil {
			return nil, nil, errors.WithStack(err)
		}
	}

	var verified *types.EmailDevice
	for _, d := range devices {
		ok := otp.VerifyDeviceToken(d, token, factor, now)
		if err := h.d.UpdateEmailDevice(tx, d); err != nil {
			return nil, nil, errors.WithStack(err)
		}
		if ok {
			verified = d
			break
		}
	}

	if verified == nil {
		return nil, otpInvalidTokenError(), nil
	}

	return verified, nil, nil
}

type VerifyOTPRequest struct {
	UserID   string
	DeviceID string
	Token    string
	// Challenge requests a new token sent to the device
	Challenge bool
}

type VerifyOTPResponse struct {
	// ChallengeMessage is set when a token was sent
	ChallengeMessage string
	// Device is the device that verified the token
	Device *types.EmailDevice
	User   *types.User
}

// VerifyOTP sends a token challenge or verifies a token. A verified token
// marks the user email as verified.
//
// Validation errors don't rollback the transaction since the throttling
// changes must be saved.
func (h *ActionHandler) VerifyOTP(ctx context.Context, req *VerifyOTPRequest) (*VerifyOTPResponse, error) {
	var res *VerifyOTPResponse
	var verr error
	err := h.d.Do(ctx, func(tx *sql.Tx) error {
		res = nil
		verr = nil

		user, err := h.getUser(tx, req.UserID)
		if err != nil {
			return errors.WithStack(err)
		}
		device, err := h.userDevice(tx, user, req.DeviceID)
		if err != nil {
			return errors.WithStack(err)
		}

		switch {
		case req.Challenge:
			if device == nil {
				verr = otpNotInteractiveError()
				return nil
			}

			msg, cerr := h.challenge(ctx, user, device)
			if err := h.d.UpdateEmailDevice(tx, device); err != nil {
				return errors.WithStack(err)
			}
			if cerr != nil {
				verr = otpChallengeError(cerr)
				return nil
			}
			res = &VerifyOTPResponse{ChallengeMessage: msg, User: user}

		case req.Token != "":
			verified, vErr, err := h.verifyToken(tx, user, device, req.Token)
			if err != nil {
				return errors.WithStack(err)
			}
			if vErr != nil {
				verr = vErr
				return nil
			}

			if !user.EmailVerified {
				user.EmailVerified = true
				if err := h.d.UpdateUser(tx, user); err != nil {
					return errors.WithStack(err)
				}
			}
			res = &VerifyOTPResponse{Device: verified, User: user}

		default:
			verr = otpTokenRequiredError()
		}

		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if verr != nil {
		return nil, errors.WithStack(verr)
	}

	return res, nil
}

type ChangeEmailRequest struct {
	UserID    string
	DeviceID  string
	NewEmail  string
	Token     string
	Challenge bool
}

// ChangeEmail changes the user email in two steps: a challenge sends a token
// to the new email and saves it as the email waiting for verification, then
// the token verification replaces the user email.
//
// Validation errors don't rollback the transaction since the throttling
// changes must be saved.
func (h *ActionHandler) ChangeEmail(ctx context.Context, req *ChangeEmailRequest) (*VerifyOTPResponse, error) {
	newEmail, err := normalizeEmail(req.NewEmail)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var res *VerifyOTPResponse
	var verr error
	err = h.d.Do(ctx, func(tx *sql.Tx) error {
		res = nil
		verr = nil

		user, err := h.getUser(tx, req.UserID)
		if err != nil {
			return errors.WithStack(err)
		}
		device, err := h.userDevice(tx, user, req.DeviceID)
		if err != nil {
			return errors.WithStack(err)
		}

		switch {
		case req.Challenge:
			res, verr, err = h.changeEmailChallenge(ctx, tx, user, device, newEmail)
			return errors.WithStack(err)

		case req.Token != "":
			if user.EmailTemp == nil || *user.EmailTemp != newEmail {
				// the email to verify changed, send a new challenge
				res, verr, err = h.changeEmailChallenge(ctx, tx, user, device, newEmail)
				return errors.WithStack(err)
			}

			verified, vErr, err := h.verifyToken(tx, user, device, req.Token)
			if err != nil {
				return errors.WithStack(err)
			}
			if vErr != nil {
				verr = vErr
				return nil
			}

			exists, err := h.emailExists(tx, newEmail, user.ID)
			if err != nil {
				return errors.WithStack(err)
			}
			if exists {
				verr = util.NewAPIError(util.ErrBadRequest, errors.Errorf("This email address already exists to an account"), serrors.OTPChallengeEmailDuplicate())
				return nil
			}

			user.Email = *user.EmailTemp
			user.EmailTemp = nil
			user.EmailVerified = true
			if err := h.d.UpdateUser(tx, user); err != nil {
				return errors.WithStack(err)
			}

			verified.Name = user.Email
			if err := h.d.UpdateEmailDevice(tx, verified); err != nil {
				return errors.WithStack(err)
			}

			res = &VerifyOTPResponse{Device: verified, User: user}

		default:
			verr = otpTokenRequiredError()
		}

		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if verr != nil {
		return nil, errors.WithStack(verr)
	}

	return res, nil
}

func (h *ActionHandler) changeEmailChallenge(ctx context.Context, tx *sql.Tx, user *types.User, device *types.EmailDevice, newEmail string) (*VerifyOTPResponse, error, error) {
	if device == nil {
		return nil, otpChallengeError(errors.Errorf("no email device selected")), nil
	}

	exists, err := h.emailExists(tx, newEmail, "")
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	if exists {
		return nil, util.NewAPIError(util.ErrBadRequest, errors.Errorf("This email address already exists to an account"), serrors.OTPChallengeEmailDuplicate()), nil
	}

	device.Email = &newEmail
	msg, cerr := h.challenge(ctx, user, device)
	device.Email = nil
	if err := h.d.UpdateEmailDevice(tx, device); err != nil {
		return nil, nil, errors.WithStack(err)
	}
	if cerr != nil {
		return nil, otpChallengeError(cerr), nil
	}

	user.EmailTemp = &newEmail
	if err := h.d.UpdateUser(tx, user); err != nil {
		return nil, nil, errors.WithStack(err)
	}

	return &VerifyOTPResponse{ChallengeMessage: msg, User: user}, nil, nil
}
