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

package manager

import (
	"context"

	"github.com/sorintlab/errors"

	"agola.io/accounts/internal/sqlg/sql"
)

func (m *DBManager) Migrate(ctx context.Context) error {
	return m.MigrateToVersion(ctx, m.WantedVersion())
}

func (m *DBManager) checkMigrateFunctions(newVersion uint) error {
	migrateFuncs := m.d.MigrateFuncs()

	for nextVersion := uint(2); nextVersion <= newVersion; nextVersion++ {
		_, ok := migrateFuncs[nextVersion]
		if !ok {
			return errors.Errorf("missing migrate function to version %d", nextVersion)
		}
	}

	return nil
}

func (m *DBManager) MigrateToVersion(ctx context.Context, newVersion uint) error {
	curVersion, err := m.GetVersion(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	needsMigrate, err := m.CheckMigrationRequired(curVersion, newVersion)
	if err != nil {
		return errors.WithStack(err)
	}

	if !needsMigrate {
		return nil
	}

	if err := m.checkMigrateFunctions(newVersion); err != nil {
		return errors.WithStack(err)
	}

	migrateFuncs := m.d.MigrateFuncs()
	for nextVersion := curVersion + 1; nextVersion <= newVersion; nextVersion++ {
		m.log.Info().Msgf("doing db migration from version %d to version %d", curVersion, nextVersion)
		err := m.d.Do(ctx, func(tx *sql.Tx) error {
			if err := migrateFuncs[nextVersion](tx); err != nil {
				return errors.Wrapf(err, "failed to migrate to version %d", nextVersion)
			}

			if err := m.setVersion(tx, nextVersion); err != nil {
				return errors.WithStack(err)
			}

			return nil
		})
		if err != nil {
			return errors.WithStack(err)
		}
	}

	return nil
}
