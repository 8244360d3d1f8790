// Package gormstore keeps principals, roles and the transaction catalog in
// Postgres through gorm.
//
// Role membership and grants live in explicit link tables (user_roles and
// role_transactions). Usernames and role names are unique case-insensitively
// through normalized columns. Password hashes that the configured hasher
// would no longer produce are upgraded on the next successful verification.
package gormstore
