package model

import (
	"time"

	"github.com/google/uuid"
)

// User is the owner of zero or more cloud credentials.
type User struct {
	ID        uuid.UUID
	Email     string
	Name      string
	CreatedAt time.Time
}
