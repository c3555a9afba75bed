// Package domain defines the core domain types and interfaces.
//
// This package contains concept-oriented files (region.go, layout.go, version.go, presence.go, etc.)
// with shared types and the repository contracts the store adapters implement. No implementation
// code beyond small value helpers. Every repository method takes the tenant ID explicitly.
package domain
