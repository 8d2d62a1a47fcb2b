package authz

import (
	"time"
)

// RegisteredCaller is a service allowed to read and write the trail.
type RegisteredCaller struct {
	ID           string
	RegisteredAt time.Time
}
