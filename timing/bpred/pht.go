package bpred

// phtSet is a set of pattern history tables. The table is chosen by branch
// address bits above the instruction alignment; the entry within the table
// is chosen by global history bits.
type phtSet struct {
	tables    [][]SatCounter
	setMask   uint64
	phtMask   uint64
	instShift uint
}

func newPHTSet(tableBits, historyBits uint, counterBits uint8, instShift uint) phtSet {
	numTables := 1 << tableBits
	tableSize := 1 << historyBits

	tables := make([][]SatCounter, numTables)
	for i := range tables {
		tables[i] = make([]SatCounter, tableSize)
		for j := range tables[i] {
			tables[i][j].SetBits(counterBits)
		}
	}

	return phtSet{
		tables:    tables,
		setMask:   lowMask(tableBits),
		phtMask:   lowMask(historyBits),
		instShift: instShift,
	}
}

func (p *phtSet) setIndex(pc uint64) uint64 {
	return (pc >> p.instShift) & p.setMask
}

func (p *phtSet) phtIndex(history uint64) uint64 {
	return history & p.phtMask
}

// entryFor returns the counter selected by pc and history. It does not
// modify anything.
func (p *phtSet) entryFor(pc, history uint64) *SatCounter {
	return &p.tables[p.setIndex(pc)][p.phtIndex(history)]
}
