// Package video issues the per-player access tokens clients use to join a
// town's video room. The controller depends only on the TokenProvider
// interface; the default implementation mints Twilio-style room-grant JWTs
// and a fake is provided for tests and credential-less development.
package video
