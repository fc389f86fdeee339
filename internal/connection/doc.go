// Package connection implements the duplex channel layer.
//
// The Manager:
//   - Maintains one persistent dashboard channel plus one ephemeral
//     channel per tracked job
//   - Guarantees at most one live socket per channel key
//   - Reconnects with a fixed interval and a bounded attempt budget;
//     an exhausted channel stays Failed until Reconnect or Wake
//   - Tags every connection with an epoch token so callbacks from a
//     replaced connection cannot corrupt state
//
// State transitions are a pure function (Transition) over Status and
// Event, so the reconnect machine is testable without real timers.
package connection
