package dirlisting

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// CompileMask compiles a directory-enumeration mask (`*` any run, `?` any
// one character) into a case-insensitive regexp, ported from the maidsafe
// MatchesMask escaping scheme (original_source utils.cc): escape every
// regex metacharacter first, then reinstate `*`/`?` as their wildcard
// meanings.
func CompileMask(mask string) (*regexp.Regexp, error) {
	escaped := regexp.QuoteMeta(mask)

	// QuoteMeta turns "*" into `\*` and "?" into `\?"; swap those specific
	// two-byte sequences back to their wildcard regex equivalents.
	escaped = strings.ReplaceAll(escaped, `\*`, ".*")
	escaped = strings.ReplaceAll(escaped, `\?`, ".")

	pattern, err := regexp.Compile("(?i)^" + escaped + "$")
	if err != nil {
		return nil, errors.Wrapf(err, "invalid enumeration mask: %s", mask)
	}

	return pattern, nil
}
