// Package service is the request-level facade over the registry and town
// controllers. Handlers and transports call it with already-decoded
// values; it validates shape, delegates, and returns either a payload or
// an error whose message is safe to show to a client. It never returns
// transport-level failures.
package service
