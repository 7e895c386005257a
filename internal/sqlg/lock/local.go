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

package lock

import (
	"context"
	"sync"

	"github.com/sorintlab/errors"
	"golang.org/x/sync/semaphore"
)

// LocalLocks are process local locks. They are enough when the database
// (sqlite) can only be used by a single process.
type LocalLocks struct {
	locks map[string]*semaphore.Weighted
	m     sync.Mutex
}

func NewLocalLocks() *LocalLocks {
	return &LocalLocks{locks: make(map[string]*semaphore.Weighted)}
}

func (ll *LocalLocks) get(key string) *semaphore.Weighted {
	ll.m.Lock()
	defer ll.m.Unlock()

	l, ok := ll.locks[key]
	if !ok {
		l = semaphore.NewWeighted(1)
		ll.locks[key] = l
	}

	return l
}

func (ll *LocalLocks) lock(ctx context.Context, key string) error {
	return errors.WithStack(ll.get(key).Acquire(ctx, 1))
}

func (ll *LocalLocks) tryLock(key string) error {
	if !ll.get(key).TryAcquire(1) {
		return ErrLocked
	}
	return nil
}

func (ll *LocalLocks) unlock(key string) error {
	ll.m.Lock()
	l, ok := ll.locks[key]
	ll.m.Unlock()
	if !ok {
		return errors.Errorf("no lock for key %q", key)
	}
	l.Release(1)

	return nil
}

type LocalLockFactory struct {
	ll *LocalLocks
}

func NewLocalLockFactory(ll *LocalLocks) *LocalLockFactory {
	return &LocalLockFactory{ll: ll}
}

func (l *LocalLockFactory) NewLock(key string) Lock {
	return &LocalLock{ll: l.ll, key: key}
}

type LocalLock struct {
	ll  *LocalLocks
	key string
}

func (l *LocalLock) Lock(ctx context.Context) error {
	return l.ll.lock(ctx, l.key)
}

func (l *LocalLock) TryLock(ctx context.Context) error {
	return l.ll.tryLock(l.key)
}

func (l *LocalLock) Unlock() error {
	return l.ll.unlock(l.key)
}
