package generator

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"net/netip"
	"strings"

	"geoprobe/internal/support"
)

// Block is a parsed IPv4 CIDR block.
type Block struct {
	CIDR    string
	Network uint32
	Bits    int
}

// ParseBlock parses "<network>/<prefix>". Host bits in the address are cleared,
// so Network is always the block's network address.
func ParseBlock(cidr string) (Block, error) {
	prefix, err := netip.ParsePrefix(strings.TrimSpace(cidr))
	if err != nil {
		return Block{}, fmt.Errorf("%w %q: %v", ErrInvalidCIDR, cidr, err)
	}
	if !prefix.Addr().Is4() {
		return Block{}, fmt.Errorf("%w %q: not an IPv4 block", ErrInvalidCIDR, cidr)
	}

	return Block{
		CIDR:    cidr,
		Network: support.IPToInt(prefix.Masked().Addr().String()),
		Bits:    prefix.Bits(),
	}, nil
}

// NumHosts is the total number of addresses in the block, network and broadcast included.
func (b Block) NumHosts() uint64 {
	return uint64(1) << (32 - b.Bits)
}

// UsableHosts is the number of distinct addresses Sample can return.
func (b Block) UsableHosts() uint64 {
	first, last := b.usableRange()
	return uint64(last-first) + 1
}

// usableRange excludes network and broadcast. /31 and /32 collapse to the network address.
func (b Block) usableRange() (uint32, uint32) {
	numHosts := b.NumHosts()
	if numHosts <= 2 {
		return b.Network, b.Network
	}
	return b.Network + 1, uint32(uint64(b.Network) + numHosts - 2)
}

// Sample draws one address uniformly from the usable host range.
func (b Block) Sample(rng *rand.Rand) string {
	first, last := b.usableRange()
	if first == last {
		return support.IntToIP(first)
	}
	offset := rng.Uint64N(uint64(last-first) + 1)
	return support.IntToIP(first + uint32(offset))
}

// Sampler returns random usable host addresses from CIDR blocks. It is not safe
// for concurrent use.
type Sampler struct {
	rng *rand.Rand
}

func NewSampler(rng *rand.Rand) *Sampler {
	if rng == nil {
		rng = newRand()
	}
	return &Sampler{rng: rng}
}

func (s *Sampler) Sample(cidr string) (string, error) {
	block, err := ParseBlock(cidr)
	if err != nil {
		return "", err
	}
	return block.Sample(s.rng), nil
}

func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

func addrFromUint32(v uint32) netip.Addr {
	var raw [4]byte
	binary.BigEndian.PutUint32(raw[:], v)
	return netip.AddrFrom4(raw)
}

func addrToUint32(addr netip.Addr) uint32 {
	raw := addr.As4()
	return binary.BigEndian.Uint32(raw[:])
}
