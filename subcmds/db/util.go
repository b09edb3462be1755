// Copyright (c) 2025 BVK Chaitanya

package db

import (
	"fmt"

	"github.com/bvk/copybot/gobs"
)

func TypeNameValue(typename string) (any, error) {
	var v any
	switch typename {
	case "CopierState":
		v = new(gobs.CopierState)
	case "Strategy":
		v = new(gobs.Strategy)
	case "DirectionEntry":
		v = new(gobs.DirectionEntry)
	case "ExecutionRecord":
		v = new(gobs.ExecutionRecord)
	case "JobData":
		v = new(gobs.JobData)
	case "ServerState":
		v = new(gobs.ServerState)
	case "NameData":
		v = new(gobs.NameData)
	case "KeyValue":
		v = new(gobs.KeyValue)
	default:
		return nil, fmt.Errorf("unsupported type name %q", typename)
	}
	return v, nil
}
