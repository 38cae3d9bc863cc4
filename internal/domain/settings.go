package domain

import (
	"context"
	"encoding/json"
)

// SettingsKey is the store key holding the persisted AppSettings document.
const SettingsKey = "app_settings"

// AppSettings are the user preferences persisted across runs.
type AppSettings struct {
	NewChatDefault       bool `json:"newChatDefault"`
	NotificationsEnabled bool `json:"notificationsEnabled"`
}

// DefaultSettings returns the settings used when no document is stored.
func DefaultSettings() AppSettings {
	return AppSettings{NewChatDefault: true, NotificationsEnabled: true}
}

// KVStore is the key-value settings store. Set buffers the value; it is only
// durable after Flush.
type KVStore interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	Set(ctx context.Context, key string, value json.RawMessage) error
	Flush(ctx context.Context) error
}
