// Package auth verifies bearer tokens on the tool API.
//
// Tokens are HS256 JWTs carrying a sub claim and a scopes claim. The read
// scope covers config snapshots, status, logs, and docs; the control scope
// covers anything that writes the config file or touches the radio process.
package auth
