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
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sorintlab/errors"
	"gotest.tools/v3/assert"
)

func NilError(t assert.TestingT, err error, msgAndArgs ...any) {
	if ht, ok := t.(helperT); ok {
		ht.Helper()
	}

	detailedErrors, _ := strconv.ParseBool(os.Getenv("DETAILED_ERRORS"))

	if !assert.Check(t, err, msgAndArgs...) {
		if detailedErrors {
			var sb strings.Builder
			errDetails := errors.PrintErrorDetails(err)
			if len(errDetails) > 0 {
				sb.WriteString("error details:\n")
				for _, l := range errDetails {
					sb.WriteString(fmt.Sprintf("%s\n", l))
				}
			}
			t.Log(sb.String())
		}

		t.FailNow()
	}
}
