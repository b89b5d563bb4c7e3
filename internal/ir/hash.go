package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainArgs  = "weave/args/v1"
	DomainEvent = "weave/event/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ArgsHash identifies a (operation, arguments) pair. Used to detect a
// dispatch re-entering itself with identical inputs.
func ArgsHash(operation string, args Array) (string, error) {
	canonical, err := MarshalCanonical(Object{
		"operation": String(operation),
		"args":      args,
	})
	if err != nil {
		return "", fmt.Errorf("ArgsHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainArgs, canonical), nil
}

// EventID computes the content-addressed ID of an event record.
// The timestamp is excluded so replays of the same dispatch hash alike.
func EventID(rec EventRecord) (string, error) {
	payload := rec.Payload
	if payload == nil {
		payload = Object{}
	}
	canonical, err := MarshalCanonical(Object{
		"invocation_id": String(rec.InvocationID),
		"operation":     String(rec.Operation),
		"phase":         String(rec.Phase),
		"payload":       payload,
		"seq":           Int(rec.Seq),
	})
	if err != nil {
		return "", fmt.Errorf("EventID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEvent, canonical), nil
}

// MustArgsHash is like ArgsHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustArgsHash(operation string, args Array) string {
	h, err := ArgsHash(operation, args)
	if err != nil {
		panic(err)
	}
	return h
}
