// Package restart sequences configuration writes with radio process
// lifecycle transitions.
//
// The pipeline is validate, write, stop, start, in that order, and a later
// stage never runs after an earlier one fails. At most one operation runs at
// a time; concurrent requests are rejected immediately rather than queued,
// because a second restart issued while one is in flight is almost always an
// operator mistake.
package restart
