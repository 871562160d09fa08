// Package future implements the caller-facing handle for asynchronous work.
//
// A Future moves through pending, running and finished, or ends aborted.
// Every future owns one execution unit scheduled on a Scheduler, which
// bounds how many units run at once. Combinators (Value, Conditioned,
// Union and the arithmetic methods) are futures themselves, so composition
// trees resolve concurrently, each node waiting only on its direct
// dependencies.
package future
