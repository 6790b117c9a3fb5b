// Package auth implements the single-operator authentication scheme:
// argon2id password verification against the configured operator hash,
// and issuance/validation of short-lived HS256 JWT access tokens.
//
// There is no user store. The dashboard has exactly one operator whose
// credentials live in configuration; tokens are validated by signature
// alone, with no database round trip.
package auth
