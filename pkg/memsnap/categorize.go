package memsnap

import "strings"

// category is the classification a single named-anonymous mapping block
// falls into.
type category int

const (
	categoryNone category = iota
	categoryJITCode
	categoryOpDispatcher
	categoryFrontend
	categoryCPUBackend
	categoryLookupL1
	categoryLookup
	categoryThreadStates
	categoryBlockLinks
	categoryMisc
	categoryUnaccounted
	categoryAllocator
)

// tagRule pairs a name substring with the category it selects. Order
// matters: rules are tried in sequence and the first match wins, which
// is why the two FEXMem_Lookup* rules are ordered longest-substring
// first — "FEXMem_Lookup" is itself a prefix of "FEXMem_Lookup_L1".
var tagRules = []struct {
	substr string
	cat    category
}{
	{"FEXMemJIT", categoryJITCode},
	{"FEXMem_OpDispatcher", categoryOpDispatcher},
	{"FEXMem_Frontend", categoryFrontend},
	{"FEXMem_CPUBackend", categoryCPUBackend},
	{"FEXMem_Lookup_L1", categoryLookupL1},
	{"FEXMem_Lookup", categoryLookup},
	{"FEXMem_ThreadState", categoryThreadStates},
	{"FEXMem_BlockLinks", categoryBlockLinks},
	{"FEXMem_Misc", categoryMisc},
	{"FEXMem", categoryUnaccounted},
	{"JEMalloc", categoryAllocator},
	{"FEXAllocator", categoryAllocator},
}

// classify returns the category for a mapping block's name, or
// categoryNone if it matches none of the recognised tags.
func classify(name string) category {
	for _, rule := range tagRules {
		if strings.Contains(name, rule.substr) {
			return rule.cat
		}
	}
	return categoryNone
}
