// Package types holds the data model shared across kvfabric: database
// attach configuration, backend kinds, migration scopes, and the fileset
// descriptor used by whole-database migration.
package types
