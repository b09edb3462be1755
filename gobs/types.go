// Copyright (c) 2025 BVK Chaitanya

package gobs

type KeyValue struct {
	Key   string
	Value []byte
}

type NameData struct {
	ID       string
	Name     string
	Typename string
}
