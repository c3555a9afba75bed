package domain

import "github.com/google/uuid"

// User is the authenticated caller. Authentication itself happens upstream;
// every operation receives the resolved tenant and user.
type User struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
}

// SystemUserID marks writes performed by the system rather than a person.
var SystemUserID = uuid.Nil
