// Package retrieval provides history sources for the catch-up engine.
//
// Breaker wraps any engine.Retriever with one circuit breaker per channel,
// so a history endpoint that keeps failing is skipped quickly instead of
// stalling every reconnect until its timeout. An open breaker surfaces as
// an ordinary per-channel fetch failure and the engine goes live without
// that channel's history.
package retrieval
