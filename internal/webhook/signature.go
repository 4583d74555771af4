// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package webhook handles event ingestion from the media server and signed
// outbound notifications to subscribers.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"time"
)

const (
	HeaderSignature = "x-signature"
	HeaderTimestamp = "x-timestamp"

	// DefaultMaxAge bounds how old a signed notification may be.
	DefaultMaxAge = 120 * time.Second
)

var (
	ErrMissingSignature   = errors.New("webhook: missing signature headers")
	ErrMalformedSignature = errors.New("webhook: malformed signature headers")
	ErrExpired            = errors.New("webhook: timestamp outside accepted window")
	ErrSignatureMismatch  = errors.New("webhook: signature mismatch")
)

// Sign returns the hex HMAC-SHA256 of "{timestamp}.{body}".
func Sign(key []byte, timestamp int64, body []byte) string {
	return hex.EncodeToString(mac(key, strconv.FormatInt(timestamp, 10), body))
}

// SetHeaders signs body at now and sets both signature headers on h.
func SetHeaders(h http.Header, key []byte, now time.Time, body []byte) {
	ts := now.UnixMilli()
	h.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	h.Set(HeaderSignature, Sign(key, ts, body))
}

// Verify checks the signature headers in h against body. Timestamps further than
// maxAge from now, in either direction, are rejected.
func Verify(key []byte, h http.Header, body []byte, now time.Time, maxAge time.Duration) error {
	sig, rawTS := h.Get(HeaderSignature), h.Get(HeaderTimestamp)
	if sig == "" || rawTS == "" {
		return ErrMissingSignature
	}
	ts, err := strconv.ParseInt(rawTS, 10, 64)
	if err != nil {
		return ErrMalformedSignature
	}
	actual, err := hex.DecodeString(sig)
	if err != nil {
		return ErrMalformedSignature
	}

	diff := now.UnixMilli() - ts
	if diff < 0 {
		diff = -diff
	}
	if diff >= maxAge.Milliseconds() {
		return ErrExpired
	}
	// The header value is signed as sent, not as re-formatted after parsing.
	if !hmac.Equal(mac(key, rawTS, body), actual) {
		return ErrSignatureMismatch
	}
	return nil
}

func mac(key []byte, timestamp string, body []byte) []byte {
	m := hmac.New(sha256.New, key)
	m.Write([]byte(timestamp))
	m.Write([]byte{'.'})
	m.Write(body)
	return m.Sum(nil)
}
