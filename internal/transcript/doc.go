// Package transcript turns a dispatched chunk stream into what a chat
// consumer renders: messages made of text, tool execution and approval
// segments.
//
// Parse maps one chunk to an Action. An Accumulator applies actions in
// dispatch order. Its Handle method has the engine.Handler signature, so it
// can consume an engine session directly.
package transcript
