package domain

import (
	"context"

	"github.com/google/uuid"
)

type PrincipalType string

const (
	PrincipalUser PrincipalType = "user"
	PrincipalRole PrincipalType = "role"
	PrincipalTeam PrincipalType = "team"
)

func (p PrincipalType) Valid() bool {
	return p == PrincipalUser || p == PrincipalRole || p == PrincipalTeam
}

type Permission string

const (
	PermissionRead  Permission = "read"
	PermissionEdit  Permission = "edit"
	PermissionShare Permission = "share"
)

type PermissionSet struct {
	Read  bool `json:"read"`
	Edit  bool `json:"edit"`
	Share bool `json:"share"`
}

func (s PermissionSet) Allows(p Permission) bool {
	switch p {
	case PermissionRead:
		return s.Read
	case PermissionEdit:
		return s.Edit
	case PermissionShare:
		return s.Share
	default:
		return false
	}
}

type RegionACL struct {
	RegionID      uuid.UUID     `json:"region_id"`
	TenantID      uuid.UUID     `json:"tenant_id"`
	PrincipalType PrincipalType `json:"principal_type"`
	PrincipalID   string        `json:"principal_id"`
	Permissions   PermissionSet `json:"permissions"`
}

// ACLRepository upserts by (region, principal_type, principal_id).
type ACLRepository interface {
	Upsert(ctx context.Context, acl RegionACL) error
	ListByRegion(ctx context.Context, tenantID, regionID uuid.UUID) ([]RegionACL, error)
}
