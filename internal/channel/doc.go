// Package channel implements the point-to-point request/reply transport that
// carries the outcome of an executed task back to whoever waits on it.
//
// Each engine instance owns one Server/Client pair. The engine's execution
// context sends exactly one framed Reply per task through the Client, and the
// planner consumes it exactly once through the Server. Frames use a 4-byte
// big-endian length prefix followed by a Codec payload, so the same format
// works over a real socket when an engine runs work out of process.
package channel
