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

// Package wire implements the strategy wire protocol: length-prefixed
// framing (8-byte big-endian length + payload) plus typed request/response
// envelopes exchanged with connected strategies.
package wire

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single payload to guard against a corrupt or
// hostile length header causing an unbounded allocation. A frame claiming
// a larger size is rejected and the connection is closed, as is a
// zero-length frame.
const MaxFrameSize = 64 << 20 // 64 MiB

// ReadFrame reads one length-prefixed frame from r. It returns io.EOF only
// when the peer closed the connection cleanly before any bytes of a new
// frame arrived.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lengthBytes [8]byte
	if _, err := io.ReadFull(r, lengthBytes[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint64(lengthBytes[:])
	if length == 0 {
		return nil, fmt.Errorf("wire: zero-length frame")
	}
	if length > MaxFrameSize {
		return nil, fmt.Errorf("wire: frame of %d bytes exceeds maximum %d", length, MaxFrameSize)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("wire: reading frame body: %w", err)
	}
	return body, nil
}

// WriteFrame writes payload to w prefixed with its 8-byte big-endian
// length.
func WriteFrame(w io.Writer, payload []byte) error {
	var lengthBytes [8]byte
	binary.BigEndian.PutUint64(lengthBytes[:], uint64(len(payload)))
	if _, err := w.Write(lengthBytes[:]); err != nil {
		return fmt.Errorf("wire: writing frame length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("wire: writing frame body: %w", err)
	}
	return nil
}

// Encode serializes v (a Request or Response) into bytes suitable for
// WriteFrame. gob is used rather than a hand-rolled tag-value format: the
// payload shapes are closed Go structs/enums known at compile time, so the
// reflection-based stdlib codec is the idiomatic fit with no schema file
// to maintain.
func Encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("wire: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode deserializes bytes produced by Encode into v.
func Decode(payload []byte, v interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(v); err != nil {
		return fmt.Errorf("wire: decode: %w", err)
	}
	return nil
}
