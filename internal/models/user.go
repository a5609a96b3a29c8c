package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleViewer = "viewer"
	RoleAdmin  = "admin"
)

type User struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	Username       string
	HashedPassword string
	Role           string
	IsActive       bool
}

// Authenticated caller as seen by downstream handlers
type Principal struct {
	SubjectID string
	Role      string
}
