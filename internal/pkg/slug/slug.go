package slug

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
)

// alphabet holds the characters used for random suffixes (base36, lowercase
// so suffixed slugs stay valid URL slugs)
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// MaxLength is the column size of deals.slug.
const MaxLength = 255

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Make lowercases s and joins its alphanumeric runs with dashes.
func Make(s string) string {
	s = nonSlugChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	return strings.Trim(s, "-")
}

// Random creates a cryptographically secure random base36 string.
func Random(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid slug length: %d", length)
	}

	// Rejection sampling to avoid modulo bias.
	// 252 is the largest multiple of 36 below 256.
	const maxRandomByte = 252

	out := make([]byte, length)
	buf := make([]byte, length*2)
	written := 0

	for written < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read secure random bytes: %w", err)
		}

		for _, b := range buf {
			if b >= maxRandomByte {
				continue
			}
			out[written] = alphabet[int(b)%len(alphabet)]
			written++
			if written == length {
				break
			}
		}
	}

	return string(out), nil
}

// WithSuffix appends a dash and a random suffix to base, cutting base so the
// result fits MaxLength.
func WithSuffix(base string, length int) (string, error) {
	suffix, err := Random(length)
	if err != nil {
		return "", err
	}
	if limit := MaxLength - length - 1; len(base) > limit {
		base = strings.TrimRight(base[:limit], "-")
	}
	if base == "" {
		return suffix, nil
	}
	return base + "-" + suffix, nil
}
