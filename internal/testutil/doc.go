// Package testutil provides deterministic collaborators for engine tests:
// a scripted history retriever that can fail, panic or block on demand, and
// a recorder that captures dispatched chunks.
package testutil
