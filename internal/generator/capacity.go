package generator

import (
	"go4.org/netipx"
)

// Capacity counts the distinct addresses the blocks can yield together.
// Overlapping blocks are counted once.
func Capacity(blocks []Block) uint64 {
	var builder netipx.IPSetBuilder
	for _, block := range blocks {
		first, last := block.usableRange()
		builder.AddRange(netipx.IPRangeFrom(addrFromUint32(first), addrFromUint32(last)))
	}

	set, err := builder.IPSet()
	if err != nil {
		return 0
	}

	var total uint64
	for _, r := range set.Ranges() {
		total += uint64(addrToUint32(r.To())-addrToUint32(r.From())) + 1
	}
	return total
}
