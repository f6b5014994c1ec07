// Package textutil provides text normalization helpers shared by identity
// parsing and the built-in PII generator.
//
// The primary use cases are:
//   - Normalizing raw PII values (NFKC, trimmed) before they enter a record
//   - Projecting values onto digits or lowercase alphanumerics
//   - Splitting display names into ordered parts
package textutil
