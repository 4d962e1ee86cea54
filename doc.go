// Copyright (c) 2026 Conduit Framework Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package conduit provides the entry point for building and running
// HTTP server applications around the dispatch engine in this module.
//
// The package is built around two core abstractions:
//
//   - App: An interface representing a runnable application
//   - AppBuilder[T]: An interface for constructing an App from config
//
// [Run] ties them together: it reads the provided [config.Source]s,
// unmarshals them into the user defined config type, builds the [App]
// and runs it.
//
// The dispatch engine itself lives under the http directory:
// [github.com/conduitframework/conduit/http/router] resolves requests
// to routes, [github.com/conduitframework/conduit/http/bind] resolves
// handler arguments and
// [github.com/conduitframework/conduit/http/dispatch] orchestrates
// route lookup, argument resolution, deferred body handling and
// response transmission. The server package serves all of it over
// plain TCP connections.
package conduit
