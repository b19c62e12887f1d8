// Package id generates identifiers for stored documents.
//
//   - ULID: time-sortable document IDs for forms, rooms and users
//   - Access: "<userID>_<uuid>" IDs for room access records, so a member's
//     accesses share a prefix
//   - UUID: random v4 identifiers
//   - Short: 16-character hex tokens
//
// All randomness comes from crypto/rand.
package id
