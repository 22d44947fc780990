// Package conf parses and rewrites the gNB configuration file.
//
// The file is line-oriented "key = value" text with optional quoting and
// trailing comments. Each recognized key is resolved by its first occurrence,
// matching the operational gNB parser; everything else passes through
// verbatim on rewrite.
package conf
