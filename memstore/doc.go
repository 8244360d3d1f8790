// Package memstore is an in-process account directory for development,
// examples and tests. Data does not survive a restart; production servers
// use gormstore.
package memstore
