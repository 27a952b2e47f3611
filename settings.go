package signup

import (
	"context"
	"encoding/json"
	"strings"
)

// Theme is the UI color preference.
type Theme string

const (
	ThemeAuto  Theme = "auto"
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// Themes lists the supported values.
var Themes = []Theme{ThemeAuto, ThemeDark, ThemeLight}

// ParseTheme validates a theme name.
func ParseTheme(s string) (Theme, error) {
	t := Theme(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Themes {
		if t == known {
			return t, nil
		}
	}
	return "", WithErrorMetadata(ErrInvalidTheme, map[string]any{"theme": s})
}

// AppSettings owns the theme preference in storage.
type AppSettings struct {
	storage     *ObservedStorage
	key         string
	logger      Logger
	prefersDark func() bool
}

// NewAppSettings returns settings over storage. prefersDark resolves the auto
// theme; nil means light.
func NewAppSettings(storage Storage, prefersDark func() bool, logger Logger) *AppSettings {
	if prefersDark == nil {
		prefersDark = func() bool { return false }
	}
	return &AppSettings{
		storage:     Observe(storage),
		key:         StorageKeyTheme,
		logger:      normalizeLogger(logger),
		prefersDark: prefersDark,
	}
}

// ThemePreference returns the stored theme or ThemeAuto.
func (a *AppSettings) ThemePreference(ctx context.Context) Theme {
	raw, ok, err := a.storage.Get(ctx, a.key)
	if err != nil {
		a.logger.Error("failed to read theme", "error", err)
		return ThemeAuto
	}
	if !ok {
		return ThemeAuto
	}

	var value string
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		value = raw
	}

	theme, err := ParseTheme(value)
	if err != nil {
		a.logger.Warn("ignoring unknown theme", "theme", value)
		return ThemeAuto
	}
	return theme
}

// SetTheme stores theme.
func (a *AppSettings) SetTheme(ctx context.Context, theme Theme) error {
	if _, err := ParseTheme(string(theme)); err != nil {
		return err
	}
	raw, err := json.Marshal(string(theme))
	if err != nil {
		return err
	}
	return a.storage.Set(ctx, a.key, string(raw))
}

// EffectiveTheme resolves ThemeAuto to dark or light.
func (a *AppSettings) EffectiveTheme(ctx context.Context) Theme {
	theme := a.ThemePreference(ctx)
	if theme != ThemeAuto {
		return theme
	}
	if a.prefersDark() {
		return ThemeDark
	}
	return ThemeLight
}
