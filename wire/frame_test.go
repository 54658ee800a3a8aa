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

package wire

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"marketgw/types"
)

func TestWriteFrameThenReadFrameRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("order-update-payload")

	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("expected payload %q, got %q", payload, got)
	}
}

func TestReadFrameRejectsZeroLength(t *testing.T) {
	var buf bytes.Buffer
	var lengthBytes [8]byte
	binary.BigEndian.PutUint64(lengthBytes[:], 0)
	buf.Write(lengthBytes[:])

	if _, err := ReadFrame(&buf); err == nil {
		t.Fatal("expected error for zero-length frame")
	}
}

func TestReadFrameRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	var lengthBytes [8]byte
	binary.BigEndian.PutUint64(lengthBytes[:], MaxFrameSize+1)
	buf.Write(lengthBytes[:])

	if _, err := ReadFrame(&buf); err == nil {
		t.Fatal("expected error for frame exceeding MaxFrameSize")
	}
}

func TestReadFrameOnEmptyReaderReturnsEOF(t *testing.T) {
	var buf bytes.Buffer
	if _, err := ReadFrame(&buf); err != io.EOF {
		t.Fatalf("expected io.EOF reading from an empty buffer, got %v", err)
	}
}

func TestEncodeDecodeRequestRoundTrips(t *testing.T) {
	req := Request{
		Kind:       ReqOrderCreate,
		CallbackID: 42,
		Vendor:     types.Vendor("COINBASE"),
		Order: &OrderRequestBody{
			OrderID:  types.OrderID("ord-1"),
			Account:  types.Account{Broker: "prime", AccountID: "acct-1"},
			Side:     types.OrderBuy,
			Kind:     types.OrderLimit,
			Price:    "100.50",
			Quantity: "2",
		},
	}

	payload, err := Encode(req)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var got Request
	if err := Decode(payload, &got); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.Kind != req.Kind || got.CallbackID != req.CallbackID {
		t.Errorf("decoded envelope mismatch: %+v", got)
	}
	if got.Order == nil || got.Order.OrderID != req.Order.OrderID {
		t.Errorf("decoded order body mismatch: %+v", got.Order)
	}
}

func TestDecodeRejectsGarbagePayload(t *testing.T) {
	var got Response
	if err := Decode([]byte("not a gob stream"), &got); err == nil {
		t.Fatal("expected decode error for malformed payload")
	}
}
