// Package sanitizer normalizes user input before validation and storage.
//
// All functions are idempotent and never fail: invalid input comes back
// as an empty or best-effort value for the validator to reject.
//
// Normalization includes:
//   - Labels and IDs: drop control characters, collapse whitespace, trim
//   - Owner types: lowercase, letters and digits joined by underscores
//   - Time zones: trim, collapse repeated slashes and underscores
//   - Recurrence text: one property per line, keys upper-cased, blanks dropped
package sanitizer
