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

package common

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/sorintlab/errors"

	"agola.io/accounts/internal/sqlg/manager"
)

// SetupDB creates the db schema when the db is empty. It fails when the db
// requires a migration, migrations are done only by MigrateDB.
func SetupDB(ctx context.Context, log zerolog.Logger, dbm *manager.DBManager) error {
	wantedVersion := dbm.WantedVersion()

	if err := dbm.Lock(ctx); err != nil {
		return errors.WithStack(err)
	}
	defer func() { _ = dbm.Unlock() }()

	if err := dbm.Setup(ctx); err != nil {
		return errors.Wrap(err, "setup db error")
	}

	curDBVersion, err := dbm.GetVersion(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	if err := dbm.CheckVersion(curDBVersion, wantedVersion); err != nil {
		return errors.WithStack(err)
	}

	if curDBVersion == 0 {
		log.Info().Msgf("creating db at version %d", wantedVersion)
		if err := dbm.Create(ctx, dbm.DDL(), wantedVersion); err != nil {
			return errors.Wrap(err, "create db error")
		}
		return nil
	}

	migrationRequired, err := dbm.CheckMigrationRequired(curDBVersion, wantedVersion)
	if err != nil {
		return errors.WithStack(err)
	}
	if migrationRequired {
		return errors.Errorf("db requires migration, current version: %d, wanted version: %d", curDBVersion, wantedVersion)
	}

	return nil
}

// MigrateDB creates the db schema when the db is empty or migrates it to the
// wanted version.
func MigrateDB(ctx context.Context, log zerolog.Logger, dbm *manager.DBManager) error {
	wantedVersion := dbm.WantedVersion()

	if err := dbm.Lock(ctx); err != nil {
		return errors.WithStack(err)
	}
	defer func() { _ = dbm.Unlock() }()

	if err := dbm.Setup(ctx); err != nil {
		return errors.Wrap(err, "setup db error")
	}

	curDBVersion, err := dbm.GetVersion(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	if curDBVersion == 0 {
		log.Info().Msgf("creating db at version %d", wantedVersion)
		return errors.Wrap(dbm.Create(ctx, dbm.DDL(), wantedVersion), "create db error")
	}

	return errors.Wrap(dbm.MigrateToVersion(ctx, wantedVersion), "migrate db error")
}

// ResetDB drops all the db tables and creates an empty schema at the wanted
// version.
func ResetDB(ctx context.Context, log zerolog.Logger, dbm *manager.DBManager) error {
	wantedVersion := dbm.WantedVersion()

	if err := dbm.Lock(ctx); err != nil {
		return errors.WithStack(err)
	}
	defer func() { _ = dbm.Unlock() }()

	log.Warn().Msgf("dropping db")
	if err := dbm.Drop(ctx); err != nil {
		return errors.Wrap(err, "drop db error")
	}

	if err := dbm.Setup(ctx); err != nil {
		return errors.Wrap(err, "setup db error")
	}

	log.Info().Msgf("creating db at version %d", wantedVersion)
	return errors.Wrap(dbm.Create(ctx, dbm.DDL(), wantedVersion), "create db error")
}
