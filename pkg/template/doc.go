// Package template fills form-letter templates from nested data records.
// It supports placeholders like {{name}}, {{primaryContact.email}} and
// {{emergencyContacts[0].name}}.
//
// # Placeholders
//
// A placeholder is the shortest text between a literal "{{" and the next
// "}}". Surrounding whitespace inside the delimiters is ignored, so
// {{ name }} and {{name}} are the same placeholder. Placeholders never span
// a line break and never nest: in "{{a {{b}}" the body is "a {{b", which
// does not resolve.
//
// # Paths
//
// A placeholder body is a dotted path resolved against the record from left
// to right:
//   - {{name}} - mapping lookup of "name" on the record
//   - {{primaryContact.email}} - nested mapping lookups
//   - {{emergencyContacts[1].name}} - mapping lookup of "emergencyContacts",
//     element 1 of the resulting sequence, then a lookup of "name"
//
// A segment carries at most one bracketed index, written in base 10 with
// ASCII digits. Other bracket arrangements (a[0][1], a[0]b) are plain keys.
//
// # Missing data
//
// A placeholder whose path does not resolve to a scalar is copied to the
// output unchanged, delimiters included, so a partially fillable template
// stays readable. A key that is present with a null value resolves to the
// empty string; false and 0 resolve to "false" and "0".
//
// Substituted values are never scanned again. A value containing "{{x}}"
// is inserted as literal text.
//
// Engines hold no per-call state and are safe for concurrent use.
package template
