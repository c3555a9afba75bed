package domain

// Store bundles the repositories a single backend provides.
type Store interface {
	Regions() RegionRepository
	Layouts() LayoutRepository
	Versions() VersionRepository
	Presence() PresenceRepository
	ACLs() ACLRepository
	Events() EventStore
}
