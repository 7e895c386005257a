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

package sms

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/sorintlab/errors"
	"github.com/twilio/twilio-go"
	verify "github.com/twilio/twilio-go/rest/verify/v2"
)

const twilioChannelSMS = "sms"

// TwilioVerifier uses the Twilio Verify service.
type TwilioVerifier struct {
	log        zerolog.Logger
	client     *twilio.RestClient
	serviceSID string
}

func NewTwilioVerifier(log zerolog.Logger, accountSID, authToken, serviceSID string) *TwilioVerifier {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &TwilioVerifier{
		log:        log,
		client:     client,
		serviceSID: serviceSID,
	}
}

func (v *TwilioVerifier) SendToken(ctx context.Context, phone string) (Status, error) {
	params := &verify.CreateVerificationParams{}
	params.SetTo(phone)
	params.SetChannel(twilioChannelSMS)

	resp, err := v.client.VerifyV2.CreateVerification(v.serviceSID, params)
	if err != nil {
		return StatusError, errors.Wrapf(err, "failed to send verification token to %q", phone)
	}
	if resp.Status == nil {
		return StatusError, errors.Errorf("empty verification status")
	}

	v.log.Debug().Str("phone", phone).Str("status", *resp.Status).Msg("sent verification token")

	return Status(*resp.Status), nil
}

func (v *TwilioVerifier) CheckToken(ctx context.Context, phone, code string) (Status, error) {
	params := &verify.CreateVerificationCheckParams{}
	params.SetTo(phone)
	params.SetCode(code)

	resp, err := v.client.VerifyV2.CreateVerificationCheck(v.serviceSID, params)
	if err != nil {
		return StatusError, errors.Wrapf(err, "failed to check verification token for %q", phone)
	}
	if resp.Status == nil {
		return StatusError, errors.Errorf("empty verification check status")
	}

	v.log.Debug().Str("phone", phone).Str("status", *resp.Status).Msg("checked verification token")

	return Status(*resp.Status), nil
}
