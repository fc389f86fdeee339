// Package cache keeps the latest value of each dashboard domain fresh.
//
// Every domain has one entry fed by two write paths: a poll timer that
// refetches over REST, and server pushes applied through ApplyPush.
// Both paths go through the same timestamped write, with last-writer-
// wins on the server timestamp, so a late poll result can never clobber
// a fresher push. Failed polls back off while the last good value keeps
// being served, marked stale.
package cache
