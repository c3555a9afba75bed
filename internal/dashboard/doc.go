// Package dashboard is the region and layout facade: every mutation validates
// grid bounds, checks for overlap within the layout, and writes through the
// compare-and-swap Guard. All reads and writes are scoped by tenant.
package dashboard
