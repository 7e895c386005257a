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

package types

import (
	"time"

	"agola.io/accounts/internal/sqlg"
	"agola.io/accounts/internal/sqlg/sql"
)

type DeliveryStatus string

const (
	DeliveryStatusNotDelivered  DeliveryStatus = "notDelivered"
	DeliveryStatusDelivered     DeliveryStatus = "delivered"
	DeliveryStatusDeliveryError DeliveryStatus = "deliveryError"
)

func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryStatusNotDelivered, DeliveryStatusDelivered, DeliveryStatusDeliveryError:
		return true
	}
	return false
}

// EmailDelivery is an email message queued for asynchronous delivery.
type EmailDelivery struct {
	sqlg.ObjectMeta

	Sequence uint64 `json:"sequence"`

	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`

	DeliveryStatus DeliveryStatus `json:"delivery_status"`
	DeliveredAt    *time.Time     `json:"delivered_at"`
	Attempts       int            `json:"attempts"`
}

func NewEmailDelivery(tx *sql.Tx) *EmailDelivery {
	return &EmailDelivery{
		ObjectMeta:     sqlg.NewObjectMeta(tx),
		DeliveryStatus: DeliveryStatusNotDelivered,
	}
}
