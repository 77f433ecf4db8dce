package generator

import "errors"

var (
	ErrInvalidCount             = errors.New("generator: count must be positive")
	ErrNoAddressSource          = errors.New("no CIDR ranges found, cannot generate IPs")
	ErrInvalidCIDR              = errors.New("generator: invalid IPv4 CIDR block")
	ErrInsufficientAddressSpace = errors.New("generator: CIDR ranges cannot supply enough unique addresses")
)
