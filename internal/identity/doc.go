// Package identity models the target whose passwords are being guessed.
//
// A Record is an immutable set of normalized PII fields (email, name, account,
// phone, birth, plus any extension field present in the input). Unknown fields
// are absent from the record, never empty strings, so generators cannot
// mistake missing data for a value. Records are parsed from target lines of
// tab-separated key:value pairs and can be rendered back to the same format
// for external generators.
//
// DeriveVariants projects a record onto the name, date, phone, email and
// account fragments that PII-driven generators combine into candidates.
package identity
