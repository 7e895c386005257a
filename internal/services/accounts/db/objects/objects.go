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

package objects

import (
	"agola.io/accounts/internal/sqlg"
)

const (
	Version = uint(1)
)

// ObjectsInfo lists the persisted objects in creation order.
var ObjectsInfo = []sqlg.ObjectInfo{
	{
		Name: "User", Table: "user_t",
		Fields: []sqlg.ObjectField{
			{Name: "Phone", Type: "string", Unique: true},
			{Name: "PhoneTemp", Type: "string", Nullable: true},
			{Name: "Email", Type: "string", Unique: true},
			{Name: "EmailTemp", Type: "string", Nullable: true},
			{Name: "EmailVerified", Type: "bool"},
			{Name: "Username", Type: "string", Nullable: true, Unique: true},
			{Name: "FirstName", Type: "string"},
			{Name: "LastName", Type: "string"},
			{Name: "Gender", Type: "types.Gender"},
			{Name: "IsActive", Type: "bool"},
			{Name: "PasswordHash", Type: "string"},
			{Name: "LastLogin", Type: "time.Time", Nullable: true},
		},
	},
	{
		Name: "EmailDevice", Table: "emaildevice",
		Fields: []sqlg.ObjectField{
			{Name: "UserID", Type: "string"},
			{Name: "Name", Type: "string"},
			{Name: "Confirmed", Type: "bool"},
			{Name: "Token", Type: "string", Nullable: true},
			{Name: "ValidUntil", Type: "time.Time"},
			{Name: "Email", Type: "string", Nullable: true},
			{Name: "ThrottlingFailureTimestamp", Type: "time.Time", Nullable: true},
			{Name: "ThrottlingFailureCount", Type: "int"},
		},
		Constraints: []string{
			"foreign key (user_id) references user_t(id) on delete cascade",
		},
		Indexes: []string{
			"create index if not exists emaildevice_user_id_idx on emaildevice(user_id)",
		},
	},
	{
		Name: "EmailDelivery", Table: "emaildelivery",
		Fields: []sqlg.ObjectField{
			{Name: "Sequence", Type: "uint64", Sequence: true},
			{Name: "Sender", Type: "string"},
			{Name: "Recipient", Type: "string"},
			{Name: "Subject", Type: "string"},
			{Name: "Body", Type: "string"},
			{Name: "DeliveryStatus", Type: "types.DeliveryStatus"},
			{Name: "DeliveredAt", Type: "time.Time", Nullable: true},
			{Name: "Attempts", Type: "int"},
		},
		Indexes: []string{
			"create index if not exists emaildelivery_sequence_idx on emaildelivery(sequence)",
		},
	},
}
