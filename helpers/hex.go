package helpers

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/juju/errors"
)

func MustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// ParseUint32 accepts decimal or 0x prefixed hex.
func ParseUint32(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	u, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return 0, errors.NotValidf("number=%s", s)
	}
	return uint32(u), nil
}
