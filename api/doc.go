// Package api exposes the town operations over HTTP. Handlers are thin:
// they decode and validate request shape, delegate to the town service,
// and wrap the outcome in a {isOK, response, message} envelope. No domain
// rules live here.
package api
