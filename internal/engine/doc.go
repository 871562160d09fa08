// Package engine defines the capability contract every execution backend
// implements, along with a registry that hands out one instance per engine
// kind. Engines run task functions, write their stdout/stderr artifacts and
// report each outcome as a reply over their result channel.
package engine
