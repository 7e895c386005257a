// Copyright 2019 Sorint.lab
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
	"strings"

	"github.com/sorintlab/errors"
)

// Errors is an error that contains multiple errors
type Errors struct {
	Errs []error
}

func (e *Errors) IsErr() bool {
	return len(e.Errs) > 0
}

func (e *Errors) Append(err error) {
	e.Errs = append(e.Errs, err)
}

func (e *Errors) Error() string {
	errs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		errs = append(errs, err.Error())
	}
	return strings.Join(errs, " ")
}

type ErrorKind int

const (
	ErrBadRequest ErrorKind = iota
	ErrNotExist
	ErrForbidden
	ErrUnauthorized
	ErrInternal
)

func (k ErrorKind) String() string {
	switch k {
	case ErrBadRequest:
		return "badrequest"
	case ErrNotExist:
		return "notexist"
	case ErrForbidden:
		return "forbidden"
	case ErrUnauthorized:
		return "unauthorized"
	case ErrInternal:
		return "internal"
	}

	return "unknown"
}

type ErrorCode string

// APIDetailedError carries a machine readable error code returned to the
// api client together with the human readable message.
type APIDetailedError struct {
	Code ErrorCode
}

func NewAPIDetailedError(code ErrorCode) *APIDetailedError {
	return &APIDetailedError{Code: code}
}

// APIError is an error with a kind that is mapped to an http status code by
// HTTPError.
type APIError struct {
	err     error
	Kind    ErrorKind
	Code    ErrorCode
	Message string
}

type APIErrorOption func(e *APIError)

func WithAPIErrorMsg(format string, args ...any) APIErrorOption {
	return func(e *APIError) {
		e.Message = fmt.Sprintf(format, args...)
	}
}

func WithAPIErrorDetailedError(de *APIDetailedError) APIErrorOption {
	return func(e *APIError) {
		e.Code = de.Code
	}
}

// NewAPIError creates an APIError of the provided kind. When no message
// option is provided the message is the error string, except for internal
// errors whose message is never returned to the client.
func NewAPIError(kind ErrorKind, err error, options ...APIErrorOption) error {
	derr := &APIError{err: err, Kind: kind}

	for _, opt := range options {
		opt(derr)
	}

	if derr.Message == "" && kind != ErrInternal && err != nil {
		derr.Message = err.Error()
	}
	if derr.err == nil {
		derr.err = errors.New(derr.Message)
	}

	return errors.WithStack(derr)
}

func (e *APIError) Error() string {
	return e.err.Error()
}

func (e *APIError) Unwrap() error {
	return e.err
}

func AsAPIError(err error) (*APIError, bool) {
	var derr *APIError
	return derr, errors.As(err, &derr)
}

func APIErrorIs(err error, kind ErrorKind) bool {
	if derr, ok := AsAPIError(err); ok && derr.Kind == kind {
		return true
	}

	return false
}

func APIErrorHasCode(err error, code ErrorCode) bool {
	if derr, ok := AsAPIError(err); ok && derr.Code == code {
		return true
	}

	return false
}

// RemoteError is an error received from a remote api call.
type RemoteError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	code := e.Code
	if code == "" {
		code = "-"
	}
	if e.Message == "" {
		return fmt.Sprintf("remote error %s (code: %s)", e.Kind, code)
	}

	return fmt.Sprintf("remote error %s (code: %s, message: %s)", e.Kind, code, e.Message)
}

func NewRemoteError(kind ErrorKind, code string, message string) error {
	return &RemoteError{Kind: kind, Code: code, Message: message}
}

func AsRemoteError(err error) (*RemoteError, bool) {
	var rerr *RemoteError
	return rerr, errors.As(err, &rerr)
}

func RemoteErrorIs(err error, kind ErrorKind) bool {
	if rerr, ok := AsRemoteError(err); ok && rerr.Kind == kind {
		return true
	}

	return false
}

// KindFromRemoteError returns the kind of a remote error or ErrInternal.
func KindFromRemoteError(err error) ErrorKind {
	if rerr, ok := AsRemoteError(err); ok {
		return rerr.Kind
	}

	return ErrInternal
}
