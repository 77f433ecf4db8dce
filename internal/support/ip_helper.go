package support

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidIPv4 = errors.New("invalid IPv4 address")

// ParseIPv4 converts a dotted-quad address into its big-endian integer form.
func ParseIPv4(ip string) (uint32, error) {
	octets := strings.Split(ip, ".")
	if len(octets) != 4 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIPv4, ip)
	}

	var value uint32
	for _, octet := range octets {
		number, err := strconv.ParseUint(octet, 10, 8)
		if err != nil {
			return 0, fmt.Errorf("%w: octet %q in %q", ErrInvalidIPv4, octet, ip)
		}
		value = value<<8 | uint32(number)
	}

	return value, nil
}

// IPToInt is ParseIPv4 for addresses that are already known to be valid.
// Malformed input yields 0.
func IPToInt(ip string) uint32 {
	value, err := ParseIPv4(ip)
	if err != nil {
		return 0
	}
	return value
}

func IntToIP(value uint32) string {
	var sb strings.Builder
	sb.Grow(15)
	sb.WriteString(strconv.FormatUint(uint64(value>>24), 10))
	sb.WriteByte('.')
	sb.WriteString(strconv.FormatUint(uint64(value>>16&0xff), 10))
	sb.WriteByte('.')
	sb.WriteString(strconv.FormatUint(uint64(value>>8&0xff), 10))
	sb.WriteByte('.')
	sb.WriteString(strconv.FormatUint(uint64(value&0xff), 10))
	return sb.String()
}
