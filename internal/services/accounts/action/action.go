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
	"time"

	"github.com/rs/zerolog"

	"agola.io/accounts/internal/mail"
	"agola.io/accounts/internal/services/accounts/db"
	scommon "agola.io/accounts/internal/services/common"
	"agola.io/accounts/internal/sms"
)

type OTPConfig struct {
	// TokenValidity is the validity of the tokens sent by email
	TokenValidity time.Duration
	// ThrottleFactor is the base throttling delay in seconds
	ThrottleFactor int

	EmailSubject string
	EmailSender  string
}

type ActionHandler struct {
	log           zerolog.Logger
	d             *db.DB
	sms           sms.Verifier
	mailSender    mail.Sender
	templates     *mail.Templates
	sd            *scommon.TokenSigningData
	otp           OTPConfig
	webExposedURL string
	phoneRegion   string
	mailFrom      string

	now func() time.Time
}

func NewActionHandler(log zerolog.Logger, d *db.DB, smsVerifier sms.Verifier, mailSender mail.Sender, templates *mail.Templates, sd *scommon.TokenSigningData, otpConfig OTPConfig, webExposedURL, phoneRegion, mailFrom string) *ActionHandler {
	return &ActionHandler{
		log:           log,
		d:             d,
		sms:           smsVerifier,
		mailSender:    mailSender,
		templates:     templates,
		sd:            sd,
		otp:           otpConfig,
		webExposedURL: webExposedURL,
		phoneRegion:   phoneRegion,
		mailFrom:      mailFrom,
		now:           time.Now,
	}
}

// SetNowFunc replaces the clock used by the otp devices.
func (h *ActionHandler) SetNowFunc(now func() time.Time) {
	h.now = now
}
