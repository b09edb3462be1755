// Copyright (c) 2025 BVK Chaitanya

package gobs

import (
	"time"
)

type ServerState struct {
	StartTime time.Time

	HeartbeatTime time.Time

	NumHeartbeats int64
}
