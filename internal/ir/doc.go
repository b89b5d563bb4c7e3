// Package ir provides the value model shared by every weave package.
//
// This package contains type definitions and serialization only. All other
// internal packages import ir; ir imports nothing internal. This keeps the
// value model the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Value is sealed: Null, String, Int, Float, Bool, Array, Object
//   - Int and Float stay distinct through JSON (2 vs 2.0)
//   - Canonical JSON (RFC 8785 key order, NFC strings) is the only
//     serialization used for hashes and the event log
//   - All JSON tags use snake_case
//   - Event ordering uses logical seq values; timestamps are informational
package ir
