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

package db

import (
	"context"
	stdsql "database/sql"
	"strings"

	sq "github.com/huandu/go-sqlbuilder"
	"github.com/rs/zerolog"
	"github.com/sorintlab/errors"

	"agola.io/accounts/internal/services/accounts/db/objects"
	"agola.io/accounts/internal/sqlg"
	"agola.io/accounts/internal/sqlg/sql"
	"agola.io/accounts/services/accounts/types"
)

type DB struct {
	log zerolog.Logger
	sdb *sql.DB
}

func NewDB(log zerolog.Logger, sdb *sql.DB) (*DB, error) {
	return &DB{
		log: log,
		sdb: sdb,
	}, nil
}

func (d *DB) DBType() sql.Type {
	return d.sdb.Type()
}

func (d *DB) Version() uint {
	return objects.Version
}

func (d *DB) Do(ctx context.Context, f func(tx *sql.Tx) error) error {
	return errors.WithStack(d.sdb.Do(ctx, f))
}

func (d *DB) ObjectsInfo() []sqlg.ObjectInfo {
	return objects.ObjectsInfo
}

func (d *DB) Flavor() sq.Flavor {
	switch d.sdb.Type() {
	case sql.Postgres:
		return sq.PostgreSQL
	case sql.Sqlite3:
		return sq.SQLite
	}

	return sq.PostgreSQL
}

func (d *DB) exec(tx *sql.Tx, rq sq.Builder) (stdsql.Result, error) {
	q, args := rq.BuildWithFlavor(d.Flavor())

	r, err := tx.Exec(q, args...)
	return r, errors.WithStack(err)
}

func (d *DB) query(tx *sql.Tx, rq sq.Builder) (*stdsql.Rows, error) {
	q, args := rq.BuildWithFlavor(d.Flavor())

	r, err := tx.Query(q, args...)
	return r, errors.WithStack(err)
}

func mustSingleRow[T any](s []*T) (*T, error) {
	if len(s) > 1 {
		return nil, errors.Errorf("too many rows returned")
	}
	if len(s) == 0 {
		return nil, nil
	}

	return s[0], nil
}

func (d *DB) GetUserByID(tx *sql.Tx, userID string) (*types.User, error) {
	q := userSelect()
	q.Where(q.E("id", userID))
	users, _, err := d.fetchUsers(tx, q)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	out, err := mustSingleRow(users)
	return out, errors.WithStack(err)
}

func (d *DB) GetUserByPhone(tx *sql.Tx, phone string) (*types.User, error) {
	q := userSelect()
	q.Where(q.E("phone", phone))
	users, _, err := d.fetchUsers(tx, q)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	out, err := mustSingleRow(users)
	return out, errors.WithStack(err)
}

func (d *DB) GetUserByEmail(tx *sql.Tx, email string) (*types.User, error) {
	q := userSelect()
	q.Where(q.E("email", email))
	users, _, err := d.fetchUsers(tx, q)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	out, err := mustSingleRow(users)
	return out, errors.WithStack(err)
}

// GetUsersByEmailInsensitive returns the users whose email matches the
// provided one case insensitively.
func (d *DB) GetUsersByEmailInsensitive(tx *sql.Tx, email string) ([]*types.User, error) {
	q := userSelect()
	q.Where(q.E("lower(email)", strings.ToLower(email)))
	users, _, err := d.fetchUsers(tx, q)
	return users, errors.WithStack(err)
}

func (d *DB) GetUserByUsername(tx *sql.Tx, username string) (*types.User, error) {
	q := userSelect()
	q.Where(q.E("username", username))
	users, _, err := d.fetchUsers(tx, q)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	out, err := mustSingleRow(users)
	return out, errors.WithStack(err)
}

// GetUsers returns the users ordered by phone number starting after
// startPhone.
func (d *DB) GetUsers(tx *sql.Tx, startPhone string, limit int, asc bool) ([]*types.User, error) {
	q := userSelect()
	if asc {
		q.OrderBy("phone").Asc()
	} else {
		q.OrderBy("phone").Desc()
	}
	if startPhone != "" {
		if asc {
			q.Where(q.G("phone", startPhone))
		} else {
			q.Where(q.L("phone", startPhone))
		}
	}
	if limit > 0 {
		q.Limit(limit)
	}

	users, _, err := d.fetchUsers(tx, q)
	return users, errors.WithStack(err)
}

func (d *DB) GetEmailDeviceByID(tx *sql.Tx, deviceID string) (*types.EmailDevice, error) {
	q := emailDeviceSelect()
	q.Where(q.E("id", deviceID))
	devices, _, err := d.fetchEmailDevices(tx, q)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	out, err := mustSingleRow(devices)
	return out, errors.WithStack(err)
}

func (d *DB) GetUserEmailDevices(tx *sql.Tx, userID string) ([]*types.EmailDevice, error) {
	q := emailDeviceSelect().OrderBy("creation_time").Asc()
	q.Where(q.E("user_id", userID))
	devices, _, err := d.fetchEmailDevices(tx, q)
	return devices, errors.WithStack(err)
}

func (d *DB) DeleteUserEmailDevices(tx *sql.Tx, userID string) error {
	q := sq.NewDeleteBuilder()
	q.DeleteFrom("emaildevice").Where(q.E("user_id", userID))

	_, err := d.exec(tx, q)
	return errors.Wrap(err, "failed to delete emaildevices")
}

func (d *DB) GetEmailDeliveryByID(tx *sql.Tx, emailDeliveryID string) (*types.EmailDelivery, error) {
	q := emailDeliverySelect()
	q.Where(q.E("id", emailDeliveryID))
	emailDeliveries, _, err := d.fetchEmailDeliveries(tx, q)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	out, err := mustSingleRow(emailDeliveries)
	return out, errors.WithStack(err)
}

func (d *DB) GetEmailDeliveriesAfterSequence(tx *sql.Tx, afterSequence uint64, deliveryStatus types.DeliveryStatus, limit int) ([]*types.EmailDelivery, error) {
	q := emailDeliverySelect().OrderBy("sequence").Asc()
	if deliveryStatus != "" {
		q.Where(q.E("delivery_status", deliveryStatus))
	}
	q.Where(q.G("sequence", afterSequence))

	if limit > 0 {
		q.Limit(limit)
	}

	emailDeliveries, _, err := d.fetchEmailDeliveries(tx, q)
	return emailDeliveries, errors.WithStack(err)
}
