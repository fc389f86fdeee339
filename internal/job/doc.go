// Package job tracks long-running server jobs such as backtests.
//
// Every tracked job owns one push channel scoped to its id. Progress
// frames fold into a snapshot of percent, current step, and status; a
// terminal status automatically closes the channel and forgets the job,
// so a non-terminal subscription always maps to exactly one open
// channel.
package job
