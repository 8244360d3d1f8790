// Package jwt issues and verifies the short-lived HS256 access tokens handed to API callers.
//
// Verification deliberately collapses every failure (bad format, wrong algorithm, bad
// signature, expiry) into a single negative result so callers cannot use it as an oracle.
package jwt
