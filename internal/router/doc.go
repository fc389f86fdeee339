// Package router dispatches decoded push frames to typed handlers.
//
// Each inbound frame is an Envelope with a type, a raw payload, and the
// server timestamp. Consumers register handlers per type; a frame fans
// out to every handler registered for its type, in registration order.
// Malformed frames are counted and dropped without affecting the rest
// of the stream.
package router
