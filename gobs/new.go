// Copyright (c) 2025 BVK Chaitanya

package gobs

import (
	"fmt"
)

func NewByTypename(typename string) (any, error) {
	var v any
	switch typename {
	case "JobData":
		v = new(JobData)
	case "CopierState":
		v = new(CopierState)
	case "Strategy":
		v = new(Strategy)
	case "DirectionEntry":
		v = new(DirectionEntry)
	case "ExecutionRecord":
		v = new(ExecutionRecord)
	case "ServerState":
		v = new(ServerState)
	case "TelegramState":
		v = new(TelegramState)
	case "KeyValue":
		v = new(KeyValue)
	case "NameData":
		v = new(NameData)
	default:
		return nil, fmt.Errorf("unsupported type name %q", typename)
	}
	return v, nil
}
