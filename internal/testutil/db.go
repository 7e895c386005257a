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

package testutil

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/rs/zerolog"

	"agola.io/accounts/internal/sqlg/lock"
	"agola.io/accounts/internal/sqlg/sql"
)

func DBType(t *testing.T) sql.Type {
	var dbType sql.Type
	switch os.Getenv("DB_TYPE") {
	case "":
		fallthrough
	case "sqlite3":
		dbType = sql.Sqlite3
	case "postgres":
		dbType = sql.Postgres
	default:
		t.Fatalf("unknown db type")
	}

	return dbType
}

// CreateDB creates an empty database of the type defined by the DB_TYPE env
// variable. Postgres databases are created using the PG_CONNSTRING env
// variable, a connection string with a %s placeholder for the database name.
func CreateDB(t *testing.T, log zerolog.Logger, ctx context.Context, dir string) (*sql.DB, lock.LockFactory, string) {
	return CreateDBWithType(t, log, ctx, dir, DBType(t))
}

func CreateDBWithType(t *testing.T, log zerolog.Logger, ctx context.Context, dir string, dbType sql.Type) (*sql.DB, lock.LockFactory, string) {
	var sdb *sql.DB
	var connString string
	var lf lock.LockFactory

	dbName := "testdb" + strconv.FormatUint(uint64(rand.Uint32()), 10)

	switch dbType {
	case sql.Sqlite3:
		connString = filepath.Join(dir, dbName)

		var err error
		sdb, err = sql.NewDB(sql.Sqlite3, connString)
		NilError(t, err)

		lf = lock.NewLocalLockFactory(lock.NewLocalLocks())

	case sql.Postgres:
		pgConnString := os.Getenv("PG_CONNSTRING")
		connString = fmt.Sprintf(pgConnString, dbName)

		pgdb, err := stdsql.Open("postgres", fmt.Sprintf(pgConnString, "postgres"))
		NilError(t, err)
		defer pgdb.Close()

		_, err = pgdb.ExecContext(ctx, fmt.Sprintf("drop database if exists %s", dbName))
		NilError(t, err)

		_, err = pgdb.ExecContext(ctx, fmt.Sprintf("create database %s", dbName))
		NilError(t, err)

		sdb, err = sql.NewDB(sql.Postgres, connString)
		NilError(t, err)

		lf = lock.NewPGLockFactory(sdb)

	default:
		t.Fatalf("unknown db type %q", dbType)
	}

	log.Debug().Msgf("created test db %q", connString)
	t.Cleanup(func() { _ = sdb.Close() })

	return sdb, lf, connString
}
