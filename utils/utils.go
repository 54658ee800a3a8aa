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

// Package utils provides small shared helpers used by the builder,
// plants/fixplant and cmd/gateway packages: HMAC request signing,
// defensive FIX tag lookups, and build version reporting.
package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"github.com/quickfixgo/quickfix"
)

// Sign produces the base64 HMAC-SHA256 signature required on Logon,
// combining the timestamp, message type, sequence number, API key,
// target comp id and passphrase, keyed by the API secret.
//
// The prehash string matches the venue's documented ordering:
// timestamp + msgType + seqNum + apiKey + targetCompId + passphrase.
func Sign(timestamp, msgType, seqNum, apiKey, targetCompId, passphrase, apiSecret string) string {
	prehash := strings.Join([]string{timestamp, msgType, seqNum, apiKey, targetCompId, passphrase}, "")

	decodedSecret, err := base64.StdEncoding.DecodeString(apiSecret)
	if err != nil {
		// Some venues hand out a raw (non-base64) secret; fall back to
		// using it verbatim rather than failing the logon attempt.
		decodedSecret = []byte(apiSecret)
	}

	mac := hmac.New(sha256.New, decodedSecret)
	mac.Write([]byte(prehash))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// GetString returns the string value of tag in msg, or "" if the tag is
// absent or the field cannot be read as a string. Callers in the hot path
// use this instead of checking the error from msg.Body.GetField/GetString
// individually so a single malformed or missing tag never panics parsing.
func GetString(msg *quickfix.Message, tag quickfix.Tag) string {
	if msg == nil {
		return ""
	}
	var value quickfix.FIXString
	if err := msg.Body.GetField(tag, &value); err == nil {
		return value.String()
	}
	if err := msg.Header.GetField(tag, &value); err == nil {
		return value.String()
	}
	return value.String()
}

// Version is set at build time via -ldflags; "dev" until then.
var Version = "dev"

// FullVersion returns a human-readable version string for CLI/REPL banners.
func FullVersion() string {
	return "marketgw " + Version
}
