// Package database manages the optional Postgres connection used by the
// update recorder.
package database
