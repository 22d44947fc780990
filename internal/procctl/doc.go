// Package procctl discovers, stops, and starts the gNB radio process.
//
// The radio process lives outside this process's own execution context and is
// reachable only through an elevated-privilege Executor. The controller never
// holds a long-lived process reference; every operation re-queries the OS
// process table.
package procctl
