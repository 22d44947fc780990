// Package params defines the tunable gNB parameter families, their value
// domains, and the static derivation tables for dependent configuration keys.
package params
