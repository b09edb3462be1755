// Copyright (c) 2025 BVK Chaitanya

package gobs

type TelegramState struct {
	UserChatIDMap map[string]int64
}
