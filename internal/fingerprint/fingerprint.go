// Package fingerprint derives short, deterministic identifiers from strings.
//
// The hash is a 32-bit rolling accumulation (h = h*31 + c) over UTF-16 code
// units, rendered as the hexadecimal magnitude of the signed result. It is
// not cryptographic: collisions are possible and only reproducibility
// matters. Lead ids produced by earlier versions of the store stay valid
// because the arithmetic is fixed.
package fingerprint

import (
	"strconv"
	"unicode/utf16"
)

// Empty is the fingerprint of the empty string.
const Empty = "0"

// Hash returns the fingerprint of s. It is total and pure.
func Hash(s string) string {
	if s == "" {
		return Empty
	}

	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(c)
	}

	v := int64(h)
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 16)
}
