// Package planner owns the bound engine and every in-flight submission.
// It assigns task ids, persists task records, gates work on engine
// capacity and hands callers a future for each submission.
package planner
