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

package util

import (
	"fmt"

	"github.com/sanity-io/litter"
)

// dump implements fmt.Formatter so litter.Sdump is called only when the
// value is really formatted, i.e. log.Debug().Msgf("user: %s", util.Dump(user))
// doesn't dump anything when the debug level is disabled.
type dump struct {
	data any
}

func (d *dump) Format(f fmt.State, c rune) {
	_, _ = f.Write([]byte(litter.Sdump(d.data)))
}

func Dump(data any) *dump {
	return &dump{data: data}
}
