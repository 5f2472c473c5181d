// Package testing provides shared test utilities for the platform clients
// and command handlers.
//
//   - ConfigBuilder: fluent builder for logged-in client configs
//   - Platform: httptest server with an in-memory storage service and
//     pluggable JSON routes for the other services
//   - FakeStorage: the storage protocol over an in-memory tree
//
// Usage:
//
//	p := testing.NewPlatform(t)
//	p.Storage.Put("/acme/alpha/data/a.txt", "hello")
//	cfg := testing.NewConfigBuilder().WithPlatform(p).Build()
package testing
