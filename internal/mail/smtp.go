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

package mail

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/sorintlab/errors"
	gomail "github.com/wneessen/go-mail"
)

type TLSPolicy string

const (
	TLSPolicyMandatory     TLSPolicy = "mandatory"
	TLSPolicyOpportunistic TLSPolicy = "opportunistic"
	TLSPolicyNone          TLSPolicy = "none"
)

type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	TLSPolicy TLSPolicy
}

// SMTPSender sends the messages through an smtp server. Every Send opens a
// new connection.
type SMTPSender struct {
	log    zerolog.Logger
	client *gomail.Client
}

func NewSMTPSender(log zerolog.Logger, c *SMTPConfig) (*SMTPSender, error) {
	var tlsPolicy gomail.TLSPolicy
	switch c.TLSPolicy {
	case TLSPolicyMandatory, "":
		tlsPolicy = gomail.TLSMandatory
	case TLSPolicyOpportunistic:
		tlsPolicy = gomail.TLSOpportunistic
	case TLSPolicyNone:
		tlsPolicy = gomail.NoTLS
	default:
		return nil, errors.Errorf("unknown tls policy %q", c.TLSPolicy)
	}

	opts := []gomail.Option{
		gomail.WithPort(c.Port),
		gomail.WithTLSPolicy(tlsPolicy),
	}
	if c.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(c.Username),
			gomail.WithPassword(c.Password),
		)
	}

	client, err := gomail.NewClient(c.Host, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create smtp client")
	}

	return &SMTPSender{log: log, client: client}, nil
}

func (s *SMTPSender) Send(ctx context.Context, m *Message) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.From); err != nil {
		return errors.Wrapf(err, "invalid from address %q", m.From)
	}
	if err := msg.To(m.To); err != nil {
		return errors.Wrapf(err, "invalid to address %q", m.To)
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(gomail.TypeTextPlain, m.Body)

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return errors.Wrapf(err, "failed to send mail to %q", m.To)
	}

	s.log.Debug().Str("to", m.To).Str("subject", m.Subject).Msg("mail sent")

	return nil
}
