/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package gatewayerr defines the error taxonomy shared by every component:
// a small closed set of kinds the Strategy Gateway can map directly onto a
// wire {kind, message} pair without string-matching error text.
package gatewayerr

import "fmt"

type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidApiKey
	KindInvalidRequest
	KindClientError
	KindServerError
	KindConnectionLost
)

func (k Kind) String() string {
	switch k {
	case KindInvalidApiKey:
		return "InvalidApiKey"
	case KindInvalidRequest:
		return "InvalidRequest"
	case KindClientError:
		return "ClientError"
	case KindServerError:
		return "ServerError"
	case KindConnectionLost:
		return "ConnectionLost"
	default:
		return "Unknown"
	}
}

// Error is the concrete type every component returns for a taxonomy-kind
// failure. It wraps an optional underlying error so %w unwrapping still
// works for callers that care.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func Wrap(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

func InvalidApiKey(detail string) *Error   { return New(KindInvalidApiKey, detail) }
func InvalidRequest(detail string) *Error  { return New(KindInvalidRequest, detail) }
func ClientError(detail string) *Error     { return New(KindClientError, detail) }
func ServerError(detail string, err error) *Error {
	return Wrap(KindServerError, detail, err)
}
func ConnectionLost(detail string) *Error { return New(KindConnectionLost, detail) }

// KindOf extracts the taxonomy Kind from err if it (or something it wraps)
// is a *Error, otherwise KindUnknown.
func KindOf(err error) Kind {
	var ge *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			ge = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if ge == nil {
		return KindUnknown
	}
	return ge.Kind
}
