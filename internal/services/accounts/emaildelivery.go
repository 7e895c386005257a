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

package accounts

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sorintlab/errors"

	"agola.io/accounts/internal/mail"
	"agola.io/accounts/internal/sqlg/lock"
	"agola.io/accounts/internal/sqlg/sql"
	"agola.io/accounts/internal/util"
	"agola.io/accounts/services/accounts/types"
)

const (
	maxEmailDeliveriesQueryLimit = 40
	EmailDeliveriesLockKey       = "emaildeliveries"

	emailDeliveryAttempts = 3
	emailDeliveryDelay    = 2 * time.Second
)

func (s *Accounts) EmailDeliveriesHandlerLoop(ctx context.Context) {
	for {
		if err := s.emailDeliveriesHandler(ctx); err != nil {
			s.log.Err(err).Send()
		}

		sleepCh := time.NewTimer(s.c.EmailDeliveryInterval).C
		select {
		case <-ctx.Done():
			return
		case <-sleepCh:
		}
	}
}

func (s *Accounts) emailDeliveriesHandler(ctx context.Context) error {
	l := s.lf.NewLock(EmailDeliveriesLockKey)
	if err := l.TryLock(ctx); err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return nil
		}
		return errors.WithStack(err)
	}
	defer func() { _ = l.Unlock() }()

	curEmailDeliverySequence := uint64(0)

	for {
		var emailDeliveries []*types.EmailDelivery

		err := s.d.Do(ctx, func(tx *sql.Tx) error {
			var err error
			emailDeliveries, err = s.d.GetEmailDeliveriesAfterSequence(tx, curEmailDeliverySequence, types.DeliveryStatusNotDelivered, maxEmailDeliveriesQueryLimit)
			return errors.WithStack(err)
		})
		if err != nil {
			return errors.WithStack(err)
		}

		for _, e := range emailDeliveries {
			if err := s.handleEmailDelivery(ctx, e.ID); err != nil {
				s.log.Err(err).Msgf("failed to deliver email %s", e.ID)
			}

			curEmailDeliverySequence = e.Sequence
		}

		if len(emailDeliveries) < maxEmailDeliveriesQueryLimit {
			return nil
		}
	}
}

func (s *Accounts) handleEmailDelivery(ctx context.Context, emailDeliveryID string) error {
	var emailDelivery *types.EmailDelivery

	err := s.d.Do(ctx, func(tx *sql.Tx) error {
		var err error
		emailDelivery, err = s.d.GetEmailDeliveryByID(tx, emailDeliveryID)
		return errors.WithStack(err)
	})
	if err != nil {
		return errors.WithStack(err)
	}
	if emailDelivery == nil || emailDelivery.DeliveryStatus != types.DeliveryStatusNotDelivered {
		return nil
	}

	m := &mail.Message{
		From:    emailDelivery.Sender,
		To:      emailDelivery.Recipient,
		Subject: emailDelivery.Subject,
		Body:    emailDelivery.Body,
	}

	var attempts int
	sendErr := retry.Do(
		func() error {
			attempts++
			return s.mailSender.Send(ctx, m)
		},
		retry.Context(ctx),
		retry.Attempts(emailDeliveryAttempts),
		retry.Delay(s.emailDeliveryRetryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.log.Warn().Err(err).Msgf("email %s delivery attempt %d failed", emailDeliveryID, n+1)
		}),
	)
	if sendErr != nil {
		s.log.Err(sendErr).Msgf("failed to deliver email %s to %q", emailDeliveryID, m.To)
	}

	err = s.d.Do(ctx, func(tx *sql.Tx) error {
		emailDelivery, err := s.d.GetEmailDeliveryByID(tx, emailDeliveryID)
		if err != nil {
			return errors.WithStack(err)
		}
		if emailDelivery == nil || emailDelivery.DeliveryStatus != types.DeliveryStatusNotDelivered {
			return nil
		}

		if sendErr == nil {
			emailDelivery.DeliveryStatus = types.DeliveryStatusDelivered
			emailDelivery.DeliveredAt = util.Ptr(time.Now())
		} else {
			emailDelivery.DeliveryStatus = types.DeliveryStatusDeliveryError
		}
		emailDelivery.Attempts += attempts

		return errors.WithStack(s.d.UpdateEmailDelivery(tx, emailDelivery))
	})

	return errors.WithStack(err)
}
