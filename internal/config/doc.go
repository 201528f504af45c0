// Package config loads catch-up session configuration from CUE.
//
// A user file is unified with the embedded #Config schema, which supplies
// defaults and closes the struct, then decoded and checked: channels must
// parse and be distinct, durations must parse, the store path must be set.
package config
