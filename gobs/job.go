// Copyright (c) 2025 BVK Chaitanya

// Package gobs defines the gob-encoded types saved in the database. Types in
// this package must stay backward compatible; fields can be added, but never
// removed or renamed.
package gobs

type JobState string

const (
	PAUSED    JobState = "PAUSED"
	RUNNING   JobState = "RUNNING"
	COMPLETED JobState = "COMPLETED"
	CANCELED  JobState = "CANCELED"
	FAILED    JobState = "FAILED"
)

type JobData struct {
	UID      string
	Typename string
	Flags    uint64

	State JobState
}
