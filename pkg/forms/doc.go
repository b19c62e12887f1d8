// Package forms manages personal-data forms: named records a user fills in
// once and reuses to answer room templates.
//
// A form document keeps only its owner in plaintext. The name and record
// are sealed together with pkg/crypto under the "encryptedData" field.
// Documents written before sealing existed are still readable, and Migrate
// seals them in place.
package forms
