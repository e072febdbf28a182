package metadata

import "strings"

// HiddenExtension marks a file as hidden from normal directory enumeration
// (spec.md §4.4's hidden-file surface), mirroring the FUSE-side dotfile
// convention with a project-specific suffix instead.
const HiddenExtension = ".vhidden"

// excludedChars are characters no path component may contain, ported from
// the maidsafe ExcludedFilename check (original_source utils.cc).
const excludedChars = "\"\\/<>?:*|"

// reservedStems are DOS/Windows device names, forbidden regardless of
// extension.
var reservedStems = map[string]bool{
	"con": true, "prn": true, "aux": true, "nul": true,
}

// IsReservedName reports whether name is forbidden as a directory entry
// name, following the maidsafe ExcludedFilename rules: DOS device names
// (CON, PRN, AUX, NUL, COM1-9, LPT1-9, CLOCK$) regardless of case, plus any
// name containing a character illegal on at least one supported host
// filesystem.
func IsReservedName(name string) bool {
	stem := name
	if dot := strings.LastIndex(name, "."); dot >= 0 {
		stem = name[:dot]
	}

	lower := strings.ToLower(stem)

	if reservedStems[lower] {
		return true
	}

	if len(lower) == 4 && (strings.HasPrefix(lower, "com") || strings.HasPrefix(lower, "lpt")) {
		if lower[3] >= '1' && lower[3] <= '9' {
			return true
		}
	}

	if lower == "clock$" {
		return true
	}

	return strings.ContainsAny(name, excludedChars)
}

// IsHidden reports whether name carries the hidden-file extension.
func IsHidden(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), HiddenExtension)
}

// WithHiddenExtension appends the hidden-file extension to name, if it is
// not already present.
func WithHiddenExtension(name string) string {
	if IsHidden(name) {
		return name
	}
	return name + HiddenExtension
}
