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

func (m *DBManager) Create(ctx context.Context, stmts []string, wantedVersion uint) error {
	curVersion, err := m.GetVersion(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	if err := m.CheckVersion(curVersion, wantedVersion); err != nil {
		return errors.WithStack(err)
	}

	if curVersion != 0 {
		return errors.Errorf("db already populated at version %d", curVersion)
	}

	// if there's no db, populate it with the final statements
	// fast path to avoid running all migrations from start
	err = m.d.Do(ctx, func(tx *sql.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.Exec(stmt); err != nil {
				return errors.WithStack(err)
			}
		}

		if err := m.setVersion(tx, wantedVersion); err != nil {
			return errors.WithStack(err)
		}

		return nil
	})

	return errors.WithStack(err)
}
