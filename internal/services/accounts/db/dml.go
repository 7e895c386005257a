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
	stdsql "database/sql"
	"time"

	sq "github.com/huandu/go-sqlbuilder"
	"github.com/sorintlab/errors"

	"agola.io/accounts/internal/sqlg"
	"agola.io/accounts/internal/sqlg/sql"
	"agola.io/accounts/services/accounts/types"
)

const (
	userTable          = "user_t"
	emailDeviceTable   = "emaildevice"
	emailDeliveryTable = "emaildelivery"

	emailDeliverySequence = "emaildelivery_sequence_seq"
)

var (
	objectMetaColumns = []string{"id", "revision", "creation_time", "update_time"}

	userColumns          = append(objectMetaColumns, "phone", "phone_temp", "email", "email_temp", "email_verified", "username", "first_name", "last_name", "gender", "is_active", "password_hash", "last_login")
	emailDeviceColumns   = append(objectMetaColumns, "user_id", "name", "confirmed", "token", "valid_until", "email", "throttling_failure_timestamp", "throttling_failure_count")
	emailDeliveryColumns = append(objectMetaColumns, "sequence", "sender", "recipient", "subject", "body", "delivery_status", "delivered_at", "attempts")
)

func selectColumns(table string, columns []string, additionalCols ...string) []string {
	cols := make([]string, 0, len(columns)+len(additionalCols))
	for _, c := range columns {
		cols = append(cols, table+"."+c)
	}

	return append(cols, additionalCols...)
}

func checkInsert(tx *sql.Tx, m *sqlg.ObjectMeta) error {
	if m.Revision != 0 {
		return errors.Errorf("expected revision 0 got %d", m.Revision)
	}
	if m.TxID != tx.ID() {
		return errors.Errorf("object was not created by this transaction")
	}

	return nil
}

func checkUpdate(tx *sql.Tx, m *sqlg.ObjectMeta) error {
	if m.Revision < 1 {
		return errors.Errorf("expected revision > 0 got %d", m.Revision)
	}
	if m.TxID != tx.ID() {
		return errors.Errorf("object was not fetched by this transaction")
	}

	return nil
}

func checkUpdateResult(res stdsql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return errors.WithStack(err)
	}
	if rows != 1 {
		return sqlg.ErrConcurrent
	}

	return nil
}

// nextSequence returns the next value of the named sequence. On sqlite sequences
// are emulated with the sequence_t table created by the db manager.
func (d *DB) nextSequence(tx *sql.Tx, name string) (uint64, error) {
	var seq uint64
	switch d.DBType() {
	case sql.Postgres:
		if err := tx.QueryRow("select nextval($1)", name).Scan(&seq); err != nil {
			return 0, errors.Wrapf(err, "failed to get sequence %s next value", name)
		}
	case sql.Sqlite3:
		if _, err := tx.Exec("insert into sequence_t (name, value) values (?, 1) on conflict(name) do update set value = sequence_t.value + 1", name); err != nil {
			return 0, errors.Wrapf(err, "failed to update sequence %s", name)
		}
		if err := tx.QueryRow("select value from sequence_t where name = ?", name).Scan(&seq); err != nil {
			return 0, errors.Wrapf(err, "failed to get sequence %s value", name)
		}
	default:
		return 0, errors.Errorf("unknown db type %q", d.DBType())
	}

	return seq, nil
}

func userSelect(additionalCols ...string) *sq.SelectBuilder {
	return sq.NewSelectBuilder().Select(selectColumns(userTable, userColumns, additionalCols...)...).From(userTable)
}

func (d *DB) fetchUsers(tx *sql.Tx, q sq.Builder) ([]*types.User, []string, error) {
	rows, err := d.query(tx, q)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	defer rows.Close()

	users := []*types.User{}
	ids := []string{}
	for rows.Next() {
		v := &types.User{}
		if err := rows.Scan(&v.ID, &v.Revision, &v.CreationTime, &v.UpdateTime, &v.Phone, &v.PhoneTemp, &v.Email, &v.EmailTemp, &v.EmailVerified, &v.Username, &v.FirstName, &v.LastName, &v.Gender, &v.IsActive, &v.PasswordHash, &v.LastLogin); err != nil {
			return nil, nil, errors.Wrap(err, "failed to scan user")
		}
		v.TxID = tx.ID()

		users = append(users, v)
		ids = append(ids, v.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, errors.WithStack(err)
	}

	return users, ids, nil
}

func (d *DB) InsertUser(tx *sql.Tx, v *types.User) error {
	if err := checkInsert(tx, &v.ObjectMeta); err != nil {
		return errors.WithStack(err)
	}

	v.Revision = 1
	now := time.Now()
	v.CreationTime = now
	v.UpdateTime = now

	q := sq.NewInsertBuilder()
	q.InsertInto(userTable).Cols(userColumns...).Values(v.ID, v.Revision, v.CreationTime, v.UpdateTime, v.Phone, v.PhoneTemp, v.Email, v.EmailTemp, v.EmailVerified, v.Username, v.FirstName, v.LastName, v.Gender, v.IsActive, v.PasswordHash, v.LastLogin)
	if _, err := d.exec(tx, q); err != nil {
		v.Revision = 0
		return errors.Wrap(err, "failed to insert user")
	}

	return nil
}

func (d *DB) UpdateUser(tx *sql.Tx, v *types.User) error {
	if err := checkUpdate(tx, &v.ObjectMeta); err != nil {
		return errors.WithStack(err)
	}

	curRevision := v.Revision
	v.Revision++
	v.UpdateTime = time.Now()

	q := sq.NewUpdateBuilder()
	q.Update(userTable).Set(
		q.Assign("revision", v.Revision),
		q.Assign("update_time", v.UpdateTime),
		q.Assign("phone", v.Phone),
		q.Assign("phone_temp", v.PhoneTemp),
		q.Assign("email", v.Email),
		q.Assign("email_temp", v.EmailTemp),
		q.Assign("email_verified", v.EmailVerified),
		q.Assign("username", v.Username),
		q.Assign("first_name", v.FirstName),
		q.Assign("last_name", v.LastName),
		q.Assign("gender", v.Gender),
		q.Assign("is_active", v.IsActive),
		q.Assign("password_hash", v.PasswordHash),
		q.Assign("last_login", v.LastLogin),
	).Where(q.E("id", v.ID), q.E("revision", curRevision))

	res, err := d.exec(tx, q)
	if err != nil {
		v.Revision = curRevision
		return errors.Wrap(err, "failed to update user")
	}
	if err := checkUpdateResult(res); err != nil {
		v.Revision = curRevision
		return errors.WithStack(err)
	}

	return nil
}

func (d *DB) DeleteUser(tx *sql.Tx, id string) error {
	q := sq.NewDeleteBuilder()
	q.DeleteFrom(userTable).Where(q.E("id", id))

	_, err := d.exec(tx, q)
	return errors.Wrap(err, "failed to delete user")
}

func emailDeviceSelect(additionalCols ...string) *sq.SelectBuilder {
	return sq.NewSelectBuilder().Select(selectColumns(emailDeviceTable, emailDeviceColumns, additionalCols...)...).From(emailDeviceTable)
}

func (d *DB) fetchEmailDevices(tx *sql.Tx, q sq.Builder) ([]*types.EmailDevice, []string, error) {
	rows, err := d.query(tx, q)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	defer rows.Close()

	devices := []*types.EmailDevice{}
	ids := []string{}
	for rows.Next() {
		v := &types.EmailDevice{}
		if err := rows.Scan(&v.ID, &v.Revision, &v.CreationTime, &v.UpdateTime, &v.UserID, &v.Name, &v.Confirmed, &v.Token, &v.ValidUntil, &v.Email, &v.ThrottlingFailureTimestamp, &v.ThrottlingFailureCount); err != nil {
			return nil, nil, errors.Wrap(err, "failed to scan emaildevice")
		}
		v.TxID = tx.ID()

		devices = append(devices, v)
		ids = append(ids, v.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, errors.WithStack(err)
	}

	return devices, ids, nil
}

func (d *DB) InsertEmailDevice(tx *sql.Tx, v *types.EmailDevice) error {
	if err := checkInsert(tx, &v.ObjectMeta); err != nil {
		return errors.WithStack(err)
	}

	v.Revision = 1
	now := time.Now()
	v.CreationTime = now
	v.UpdateTime = now

	q := sq.NewInsertBuilder()
	q.InsertInto(emailDeviceTable).Cols(emailDeviceColumns...).Values(v.ID, v.Revision, v.CreationTime, v.UpdateTime, v.UserID, v.Name, v.Confirmed, v.Token, v.ValidUntil, v.Email, v.ThrottlingFailureTimestamp, v.ThrottlingFailureCount)
	if _, err := d.exec(tx, q); err != nil {
		v.Revision = 0
		return errors.Wrap(err, "failed to insert emaildevice")
	}

	return nil
}

func (d *DB) UpdateEmailDevice(tx *sql.Tx, v *types.EmailDevice) error {
	if err := checkUpdate(tx, &v.ObjectMeta); err != nil {
		return errors.WithStack(err)
	}

	curRevision := v.Revision
	v.Revision++
	v.UpdateTime = time.Now()

	q := sq.NewUpdateBuilder()
	q.Update(emailDeviceTable).Set(
		q.Assign("revision", v.Revision),
		q.Assign("update_time", v.UpdateTime),
		q.Assign("user_id", v.UserID),
		q.Assign("name", v.Name),
		q.Assign("confirmed", v.Confirmed),
		q.Assign("token", v.Token),
		q.Assign("valid_until", v.ValidUntil),
		q.Assign("email", v.Email),
		q.Assign("throttling_failure_timestamp", v.ThrottlingFailureTimestamp),
		q.Assign("throttling_failure_count", v.ThrottlingFailureCount),
	).Where(q.E("id", v.ID), q.E("revision", curRevision))

	res, err := d.exec(tx, q)
	if err != nil {
		v.Revision = curRevision
		return errors.Wrap(err, "failed to update emaildevice")
	}
	if err := checkUpdateResult(res); err != nil {
		v.Revision = curRevision
		return errors.WithStack(err)
	}

	return nil
}

func emailDeliverySelect(additionalCols ...string) *sq.SelectBuilder {
	return sq.NewSelectBuilder().Select(selectColumns(emailDeliveryTable, emailDeliveryColumns, additionalCols...)...).From(emailDeliveryTable)
}

func (d *DB) fetchEmailDeliveries(tx *sql.Tx, q sq.Builder) ([]*types.EmailDelivery, []string, error) {
	rows, err := d.query(tx, q)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	defer rows.Close()

	emailDeliveries := []*types.EmailDelivery{}
	ids := []string{}
	for rows.Next() {
		v := &types.EmailDelivery{}
		if err := rows.Scan(&v.ID, &v.Revision, &v.CreationTime, &v.UpdateTime, &v.Sequence, &v.Sender, &v.Recipient, &v.Subject, &v.Body, &v.DeliveryStatus, &v.DeliveredAt, &v.Attempts); err != nil {
			return nil, nil, errors.Wrap(err, "failed to scan emaildelivery")
		}
		v.TxID = tx.ID()

		emailDeliveries = append(emailDeliveries, v)
		ids = append(ids, v.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, errors.WithStack(err)
	}

	return emailDeliveries, ids, nil
}

func (d *DB) InsertEmailDelivery(tx *sql.Tx, v *types.EmailDelivery) error {
	if err := checkInsert(tx, &v.ObjectMeta); err != nil {
		return errors.WithStack(err)
	}

	seq, err := d.nextSequence(tx, emailDeliverySequence)
	if err != nil {
		return errors.WithStack(err)
	}
	v.Sequence = seq

	v.Revision = 1
	now := time.Now()
	v.CreationTime = now
	v.UpdateTime = now

	q := sq.NewInsertBuilder()
	q.InsertInto(emailDeliveryTable).Cols(emailDeliveryColumns...).Values(v.ID, v.Revision, v.CreationTime, v.UpdateTime, v.Sequence, v.Sender, v.Recipient, v.Subject, v.Body, v.DeliveryStatus, v.DeliveredAt, v.Attempts)
	if _, err := d.exec(tx, q); err != nil {
		v.Revision = 0
		return errors.Wrap(err, "failed to insert emaildelivery")
	}

	return nil
}

func (d *DB) UpdateEmailDelivery(tx *sql.Tx, v *types.EmailDelivery) error {
	if err := checkUpdate(tx, &v.ObjectMeta); err != nil {
		return errors.WithStack(err)
	}

	curRevision := v.Revision
	v.Revision++
	v.UpdateTime = time.Now()

	q := sq.NewUpdateBuilder()
	q.Update(emailDeliveryTable).Set(
		q.Assign("revision", v.Revision),
		q.Assign("update_time", v.UpdateTime),
		q.Assign("delivery_status", v.DeliveryStatus),
		q.Assign("delivered_at", v.DeliveredAt),
		q.Assign("attempts", v.Attempts),
	).Where(q.E("id", v.ID), q.E("revision", curRevision))

	res, err := d.exec(tx, q)
	if err != nil {
		v.Revision = curRevision
		return errors.Wrap(err, "failed to update emaildelivery")
	}
	if err := checkUpdateResult(res); err != nil {
		v.Revision = curRevision
		return errors.WithStack(err)
	}

	return nil
}
