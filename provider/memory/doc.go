// Package memory is an in-process identity provider implementing
// authflow.Handlers.
//
// It keeps accounts in memory, hashes passwords with bcrypt, issues HS256
// session tokens verified against a rotating key set, and keeps one time
// codes in a TTL cache. Every code it "sends" can be read back with LastCode,
// which makes the provider suitable for tests, demos and local development.
//
// The provider holds a single client session, the same way a browser SDK
// keeps one signed in user per device, and dispatches the usual auth channel
// events on the configured hub.
package memory
