// Package identity is the user directory: accounts, credentials, last known
// location, the online flag and profile fields.
//
// Service owns registration and login; Store is the persistence boundary with a
// PostgreSQL/PostGIS implementation and an in-memory one for local runs and tests.
package identity
