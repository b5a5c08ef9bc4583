// Package remote carries the engine boundary across a process boundary.
//
// Two transports are provided. The HTTP transport serves one engine behind
// POST /v1/command and exposes a client that implements gateway.Engine. The
// stream transport exchanges newline-delimited JSON frames over a pair of
// pipes, which is how smctl drives an smengine child process.
//
// Both transports move the command and response text untouched; decoding
// stays with the engine and the gateway. Each HTTP client and each stream
// is a separate caller with its own engine session (engine.WithSession).
package remote
