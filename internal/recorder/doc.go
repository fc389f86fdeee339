// Package recorder optionally persists pushed dashboard updates.
//
// Every recordable push type is appended to the update_history table in
// Postgres, batched by size and flush interval. Recording sits entirely
// off the hot path: router handlers only enqueue into a bounded buffer,
// and a full buffer drops updates rather than blocking message
// dispatch.
package recorder
