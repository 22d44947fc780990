// Package audit appends one JSON line per tool invocation to a rotated
// action log. The log is the operator-facing record of who changed what on
// the gNB and how it went; writes never fail a request, they degrade to a
// stderr complaint.
package audit
