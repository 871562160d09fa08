// Package task defines the engine-agnostic descriptor of one unit of work:
// a function, its arguments and the working directory it should run in.
// Tasks are created by the planner and handed across the engine boundary.
package task
