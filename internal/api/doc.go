// Package api is the HTTP tool surface of gnbctl. Every response uses the
// unified envelope with a correlation ID, every tool invocation lands in the
// action log and the metrics, and control endpoints require the control
// scope.
package api
