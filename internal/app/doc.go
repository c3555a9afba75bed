// Package app assembles the layout components over one backend.
//
// It routes presence and domain events to their configured stores, builds
// the dashboard facade, versioning engine, collaboration tracker and saga
// orchestrator, and owns the background presence sweep. HTTP handlers and
// binaries depend on App instead of wiring components themselves.
package app
