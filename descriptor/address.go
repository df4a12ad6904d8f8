package descriptor

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// ErrInvalidAddress is returned when an address is not a dotted-quad IPv4 address.
var ErrInvalidAddress = errors.New("invalid address")

// EncodeAddress turns a.b.c.d into the tuple {a,b,c,d}. The descriptor
// grammar ends statements with dots, so addresses can't keep theirs.
func EncodeAddress(addr string) (string, error) {
	ip, err := netip.ParseAddr(addr)
	if err != nil || !ip.Is4() {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	o := ip.As4()
	return fmt.Sprintf("{%d,%d,%d,%d}", o[0], o[1], o[2], o[3]), nil
}

// DecodeTuple is the inverse of EncodeAddress.
func DecodeTuple(tuple string) (string, error) {
	s := strings.TrimSpace(tuple)
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return "", fmt.Errorf("%w: tuple %q", ErrInvalidAddress, tuple)
	}
	parts := strings.Split(s[1:len(s)-1], ",")
	if len(parts) != 4 {
		return "", fmt.Errorf("%w: tuple %q", ErrInvalidAddress, tuple)
	}

	var o [4]byte
	for i, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return "", fmt.Errorf("%w: tuple %q", ErrInvalidAddress, tuple)
		}
		o[i] = byte(n)
	}
	return netip.AddrFrom4(o).String(), nil
}
