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

//go:build cgo

package sql

import (
	"github.com/mattn/go-sqlite3"
	"github.com/sorintlab/errors"
)

func checkSqlite3RetryError(err error) bool {
	var sqerr sqlite3.Error
	if errors.As(err, &sqerr) {
		return sqerr.Code == sqlite3.ErrLocked || sqerr.Code == sqlite3.ErrBusy
	}

	return false
}
