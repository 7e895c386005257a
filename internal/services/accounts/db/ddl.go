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
	"agola.io/accounts/internal/sqlg/sql"
)

var DDLPostgres = []string{
	"create table if not exists user_t (id varchar NOT NULL, revision bigint NOT NULL, creation_time timestamptz NOT NULL, update_time timestamptz NOT NULL, phone varchar NOT NULL, phone_temp varchar, email varchar NOT NULL, email_temp varchar, email_verified boolean NOT NULL, username varchar, first_name varchar NOT NULL, last_name varchar NOT NULL, gender varchar NOT NULL, is_active boolean NOT NULL, password_hash varchar NOT NULL, last_login timestamptz, PRIMARY KEY (id), UNIQUE (phone), UNIQUE (email), UNIQUE (username))",
	"create table if not exists emaildevice (id varchar NOT NULL, revision bigint NOT NULL, creation_time timestamptz NOT NULL, update_time timestamptz NOT NULL, user_id varchar NOT NULL, name varchar NOT NULL, confirmed boolean NOT NULL, token varchar, valid_until timestamptz NOT NULL, email varchar, throttling_failure_timestamp timestamptz, throttling_failure_count bigint NOT NULL, PRIMARY KEY (id), foreign key (user_id) references user_t(id) on delete cascade)",
	"create index if not exists emaildevice_user_id_idx on emaildevice(user_id)",
	"create sequence if not exists emaildelivery_sequence_seq",
	"create table if not exists emaildelivery (id varchar NOT NULL, revision bigint NOT NULL, creation_time timestamptz NOT NULL, update_time timestamptz NOT NULL, sequence bigint NOT NULL, sender varchar NOT NULL, recipient varchar NOT NULL, subject varchar NOT NULL, body varchar NOT NULL, delivery_status varchar NOT NULL, delivered_at timestamptz, attempts bigint NOT NULL, PRIMARY KEY (id))",
	"create index if not exists emaildelivery_sequence_idx on emaildelivery(sequence)",
}

var DDLSqlite3 = []string{
	"create table if not exists user_t (id varchar NOT NULL, revision bigint NOT NULL, creation_time timestamp NOT NULL, update_time timestamp NOT NULL, phone varchar NOT NULL, phone_temp varchar, email varchar NOT NULL, email_temp varchar, email_verified boolean NOT NULL, username varchar, first_name varchar NOT NULL, last_name varchar NOT NULL, gender varchar NOT NULL, is_active boolean NOT NULL, password_hash varchar NOT NULL, last_login timestamp, PRIMARY KEY (id), UNIQUE (phone), UNIQUE (email), UNIQUE (username))",
	"create table if not exists emaildevice (id varchar NOT NULL, revision bigint NOT NULL, creation_time timestamp NOT NULL, update_time timestamp NOT NULL, user_id varchar NOT NULL, name varchar NOT NULL, confirmed boolean NOT NULL, token varchar, valid_until timestamp NOT NULL, email varchar, throttling_failure_timestamp timestamp, throttling_failure_count bigint NOT NULL, PRIMARY KEY (id), foreign key (user_id) references user_t(id) on delete cascade)",
	"create index if not exists emaildevice_user_id_idx on emaildevice(user_id)",
	"create table if not exists emaildelivery (id varchar NOT NULL, revision bigint NOT NULL, creation_time timestamp NOT NULL, update_time timestamp NOT NULL, sequence bigint NOT NULL, sender varchar NOT NULL, recipient varchar NOT NULL, subject varchar NOT NULL, body varchar NOT NULL, delivery_status varchar NOT NULL, delivered_at timestamp, attempts bigint NOT NULL, PRIMARY KEY (id))",
	"create index if not exists emaildelivery_sequence_idx on emaildelivery(sequence)",
}

func (d *DB) DDL() []string {
	switch d.DBType() {
	case sql.Postgres:
		return DDLPostgres
	case sql.Sqlite3:
		return DDLSqlite3
	}

	return nil
}
