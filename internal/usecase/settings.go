package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"chatpilot/internal/domain"
)

// settingsSchema requires both fields. A stored document missing one is a
// decode failure rather than a partial default. Unknown fields are ignored.
const settingsSchema = `{
	"type": "object",
	"required": ["newChatDefault", "notificationsEnabled"],
	"properties": {
		"newChatDefault": {"type": "boolean"},
		"notificationsEnabled": {"type": "boolean"}
	}
}`

// SettingsService reads and writes AppSettings through the KV store.
type SettingsService struct {
	store  domain.KVStore
	schema *jsonschema.Schema
	logger *slog.Logger
}

// NewSettingsService compiles the settings schema.
func NewSettingsService(store domain.KVStore, logger *slog.Logger) (*SettingsService, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("settings.json", bytes.NewReader([]byte(settingsSchema))); err != nil {
		return nil, fmt.Errorf("add settings schema resource: %w", err)
	}
	compiled, err := compiler.Compile("settings.json")
	if err != nil {
		return nil, fmt.Errorf("compile settings schema: %w", err)
	}
	return &SettingsService{store: store, schema: compiled, logger: logger}, nil
}

// Decode validates raw against the schema and decodes it.
func (s *SettingsService) Decode(raw json.RawMessage) (domain.AppSettings, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return domain.AppSettings{}, domain.NewDomainError("SettingsService.Decode", domain.ErrInvalidSettings,
			fmt.Sprintf("invalid JSON: %v", err))
	}
	if err := s.schema.Validate(v); err != nil {
		return domain.AppSettings{}, domain.NewDomainError("SettingsService.Decode", domain.ErrInvalidSettings,
			fmt.Sprintf("schema validation failed: %v", err))
	}
	var out domain.AppSettings
	if err := json.Unmarshal(raw, &out); err != nil {
		return domain.AppSettings{}, domain.NewDomainError("SettingsService.Decode", domain.ErrInvalidSettings, err.Error())
	}
	return out, nil
}

// Get returns the stored settings, or the defaults when nothing is stored.
func (s *SettingsService) Get(ctx context.Context) (domain.AppSettings, error) {
	raw, ok, err := s.store.Get(ctx, domain.SettingsKey)
	if err != nil {
		return domain.AppSettings{}, domain.WrapOp("SettingsService.Get", err)
	}
	if !ok {
		return domain.DefaultSettings(), nil
	}
	return s.Decode(raw)
}

// Save stores the settings and flushes the store.
func (s *SettingsService) Save(ctx context.Context, settings domain.AppSettings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return domain.WrapOp("SettingsService.Save", err)
	}
	if err := s.store.Set(ctx, domain.SettingsKey, raw); err != nil {
		return domain.WrapOp("SettingsService.Save", err)
	}
	if err := s.store.Flush(ctx); err != nil {
		return domain.WrapOp("SettingsService.Save", err)
	}
	s.logger.Debug("settings saved",
		"new_chat_default", settings.NewChatDefault,
		"notifications_enabled", settings.NotificationsEnabled,
	)
	return nil
}

// NotificationsEnabled reports the notification preference. A read failure
// counts as enabled.
func (s *SettingsService) NotificationsEnabled(ctx context.Context) bool {
	settings, err := s.Get(ctx)
	if err != nil {
		s.logger.Warn("settings unavailable, notifying anyway", "error", err)
		return true
	}
	return settings.NotificationsEnabled
}
