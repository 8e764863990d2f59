package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// DefaultLocale is the key a legacy plain-string value is written back under.
const DefaultLocale = "th"

// LocalizedText is a multilingual name. Rows written before localisation hold
// a plain string, and some of those were later double-encoded as a JSON string
// that contains an object. Scan folds all of them into one of two variants:
// Legacy for a plain string, Localized for a locale map.
type LocalizedText struct {
	Legacy    string
	Localized map[string]string
}

func NewLocalizedText(values map[string]string) LocalizedText {
	return LocalizedText{Localized: values}
}

func LegacyText(s string) LocalizedText {
	return LocalizedText{Legacy: s}
}

func (t LocalizedText) IsLegacy() bool {
	return t.Localized == nil
}

// ParseLocalizedText accepts a JSON object, a plain string, or a JSON string
// whose content is itself an object.
func ParseLocalizedText(raw string) LocalizedText {
	s := strings.TrimSpace(raw)
	if s == "" {
		return LocalizedText{}
	}

	if strings.HasPrefix(s, "{") {
		var m map[string]string
		if err := json.Unmarshal([]byte(s), &m); err == nil {
			return LocalizedText{Localized: m}
		}
		return LocalizedText{Legacy: raw}
	}

	if strings.HasPrefix(s, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(s), &inner); err == nil {
			if strings.HasPrefix(strings.TrimSpace(inner), "{") {
				return ParseLocalizedText(inner)
			}
			return LocalizedText{Legacy: inner}
		}
	}

	return LocalizedText{Legacy: raw}
}

// Resolve returns the text for locale, then for fallback, then the first
// locale in key order.
func (t LocalizedText) Resolve(locale, fallback string) string {
	if t.IsLegacy() {
		return t.Legacy
	}
	if v, ok := t.Localized[locale]; ok && v != "" {
		return v
	}
	if v, ok := t.Localized[fallback]; ok && v != "" {
		return v
	}
	keys := make([]string, 0, len(t.Localized))
	for k := range t.Localized {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if t.Localized[k] != "" {
			return t.Localized[k]
		}
	}
	return ""
}

func (t LocalizedText) toMap() map[string]string {
	if !t.IsLegacy() {
		return t.Localized
	}
	if t.Legacy == "" {
		return map[string]string{}
	}
	return map[string]string{DefaultLocale: t.Legacy}
}

// Scan implements sql.Scanner.
func (t *LocalizedText) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*t = LocalizedText{}
	case []byte:
		*t = ParseLocalizedText(string(v))
	case string:
		*t = ParseLocalizedText(v)
	default:
		return fmt.Errorf("localized text: unsupported scan type %T", value)
	}
	return nil
}

// Value implements driver.Valuer. The object form is always written.
func (t LocalizedText) Value() (driver.Value, error) {
	b, err := json.Marshal(t.toMap())
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (t LocalizedText) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.toMap())
}

// UnmarshalJSON accepts the same forms as Scan so API clients can send either
// a locale object or a plain string.
func (t *LocalizedText) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*t = LocalizedText{}
		return nil
	}
	*t = ParseLocalizedText(s)
	return nil
}
