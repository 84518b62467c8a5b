package document

import "fmt"

// Mode selects the rendering policy applied to all located targets in a
// document.
type Mode string

const (
	// ModeMask draws a solid opaque box; the original content is
	// unrecoverable.
	ModeMask Mode = "mask"
	// ModePlaceholder draws an opaque box with the PHI category tag.
	ModePlaceholder Mode = "placeholder"
	// ModeSynthetic draws an opaque box with a synthetic replacement.
	ModeSynthetic Mode = "synthetic"
)

// DefaultMode is used when the caller does not select a mode.
const DefaultMode = ModePlaceholder

// ParseMode validates a mode string. Unrecognized modes fail rather than
// silently defaulting.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeMask, ModePlaceholder, ModeSynthetic:
		return Mode(s), nil
	case "":
		return DefaultMode, nil
	}
	return "", fmt.Errorf("document: unknown de-identification mode %q", s)
}
