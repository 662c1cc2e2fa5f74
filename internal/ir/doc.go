// Package ir provides the canonical value model, canonical JSON encoder and
// commitment hashes for bor.
//
// All other internal packages import ir; ir imports nothing internal. This keeps
// the byte-level rules every downstream consumer depends on in one place.
//
// Key design constraints:
//   - Object keys are always sorted before encoding (RFC 8785 UTF-16 order)
//   - NaN and infinities have no canonical form and are rejected
//   - Hashes are lower-case hex SHA-256
//   - JSON field names of the wire types are part of the external format
package ir
