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

package sqlg

import (
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/sorintlab/errors"

	"agola.io/accounts/internal/sqlg/sql"
)

var ErrConcurrent = errors.New("concurrent update")

type MigrateFunc func(tx *sql.Tx) error

type Object interface {
	GetID() string
	GetRevision() uint64
}

type ObjectMeta struct {
	// ID is the unique id of the object.
	ID string `json:"id"`

	// Revision is the object revision, it's not saved in the object but
	// populated by the fetch from the database
	Revision uint64 `json:"revision"`

	// CreationTime is the object creation time
	CreationTime time.Time `json:"creationTime"`

	// UpdateTime is the object update time
	UpdateTime time.Time `json:"updateTime"`

	// TxID is the current transaction id, used internally and must not be saved in the database
	TxID string `json:"-"`
}

func NewObjectMeta(tx *sql.Tx) ObjectMeta {
	return ObjectMeta{
		ID:   uuid.Must(uuid.NewV4()).String(),
		TxID: tx.ID(),
	}
}

func (m *ObjectMeta) GetID() string {
	return m.ID
}

func (m *ObjectMeta) GetRevision() uint64 {
	return m.Revision
}

func (m *ObjectMeta) SetTxID(txID string) {
	m.TxID = txID
}

type ObjectInfo struct {
	Name        string
	Table       string
	Fields      []ObjectField
	Constraints []string
	Indexes     []string
}

type ObjectField struct {
	Name     string
	Type     string
	Nullable bool
	Unique   bool
	Sequence bool
}

// TableNames returns the tables in reverse creation order so that tables
// referencing others are dropped first.
func TableNames(obis []ObjectInfo) []string {
	names := make([]string, 0, len(obis))
	for i := len(obis) - 1; i >= 0; i-- {
		names = append(names, obis[i].Table)
	}

	return names
}
