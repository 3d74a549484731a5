package schema

import "strings"

// ValidatePlaygroundID ensures a playground id matches [a-z0-9-] with no normalization.
func ValidatePlaygroundID(id PlaygroundID) error {
	raw := string(id)
	if raw == "" {
		return ErrInvalidPlayground
	}
	if strings.TrimSpace(raw) != raw {
		return ErrInvalidPlayground
	}
	for _, r := range raw {
		if r >= 'a' && r <= 'z' {
			continue
		}
		if r >= '0' && r <= '9' {
			continue
		}
		if r == '-' || r == '_' {
			continue
		}
		return ErrInvalidPlayground
	}
	return nil
}

// NormalizeText converts CRLF line endings to LF.
func NormalizeText(text string) string {
	if !strings.Contains(text, "\r") {
		return text
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}
