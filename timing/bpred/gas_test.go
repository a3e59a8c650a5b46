package bpred_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/bpsim/timing/bpred"
)

func smallGAsConfig() bpred.Config {
	return bpred.Config{
		Type:         bpred.TypeGAs,
		CounterBits:  2,
		HistoryBits:  2,
		TableBits:    1,
		NumThreads:   1,
		InstShiftAmt: 2,
	}
}

var _ = Describe("GAs", func() {
	var (
		bp    *bpred.GAs
		stats *bpred.StatsHook
	)

	BeforeEach(func() {
		var err error
		bp, err = bpred.NewGAs(smallGAsConfig())
		Expect(err).NotTo(HaveOccurred())

		stats = bpred.NewStatsHook()
		bp.AcceptHook(stats)
	})

	Describe("Lookup", func() {
		It("should predict not taken from a cold table", func() {
			taken, rec := bp.Lookup(0, 0x0)
			Expect(taken).To(BeFalse())
			Expect(bp.GetGHR(0, rec)).To(Equal(uint64(0)))
			bp.Squash(0, rec)
		})

		It("should shift the prediction into history", func() {
			_, rec := bp.Lookup(0, 0x0)
			Expect(bp.History(0)).To(Equal(uint64(0b00)))
			bp.Squash(0, rec)

			rec = bp.UncondBranch(0, 0x40)
			Expect(bp.History(0)).To(Equal(uint64(0b01)))
			_, rec2 := bp.Lookup(0, 0x0)
			Expect(bp.History(0)).To(Equal(uint64(0b10)))

			bp.Squash(0, rec2)
			bp.Squash(0, rec)
		})

		It("should chain repeated lookups on speculative history", func() {
			recs := []bpred.Record{bp.UncondBranch(0, 0x0)}
			recs = append(recs, bp.UncondBranch(0, 0x4))
			_, rec := bp.Lookup(0, 0x8)
			recs = append(recs, rec)

			Expect(bp.GetGHR(0, recs[0])).To(Equal(uint64(0b00)))
			Expect(bp.GetGHR(0, recs[1])).To(Equal(uint64(0b01)))
			Expect(bp.GetGHR(0, recs[2])).To(Equal(uint64(0b11)))
			Expect(bp.Outstanding()).To(Equal(3))

			for i := len(recs) - 1; i >= 0; i-- {
				bp.Squash(0, recs[i])
			}
			Expect(bp.Outstanding()).To(Equal(0))
		})

		It("should never mutate the table", func() {
			before := bp.Counter(0, 0x0)
			for i := 0; i < 8; i++ {
				_, rec := bp.Lookup(0, 0x0)
				bp.Squash(0, rec)
			}
			Expect(bp.Counter(0, 0x0)).To(Equal(before))
		})
	})

	Describe("training from a cold table", func() {
		// Cold 2-bit counters predict not-taken, so no taken bit enters the
		// history until entry 0 has been trained to 2.
		It("should learn an always-taken branch", func() {
			taken, rec := bp.Lookup(0, 0x0)
			Expect(taken).To(BeFalse())
			// A not-taken prediction shifts a zero into history.
			Expect(bp.History(0)).To(Equal(uint64(0b00)))

			bp.Update(0, 0x0, true, rec, false)
			Expect(bp.CounterAt(0, 0)).To(Equal(uint8(1)))

			taken, rec = bp.Lookup(0, 0x0)
			Expect(taken).To(BeFalse())
			bp.Update(0, 0x0, true, rec, false)
			Expect(bp.CounterAt(0, 0)).To(Equal(uint8(2)))

			// Once the history fills with taken bits every lookup reads
			// entry 0b11, which saturates.
			var predictions []bool
			for i := 0; i < 16; i++ {
				taken, rec = bp.Lookup(0, 0x0)
				predictions = append(predictions, taken)
				bp.Update(0, 0x0, true, rec, false)
			}

			Expect(predictions[len(predictions)-4:]).To(HaveEach(BeTrue()))
			Expect(bp.History(0)).To(Equal(uint64(0b11)))
			Expect(bp.CounterAt(0, 0b11)).To(Equal(uint8(3)))
			Expect(bp.Outstanding()).To(Equal(0))
		})
	})

	Describe("squash round trip", func() {
		It("should restore exactly the captured history", func() {
			first := bp.UncondBranch(0, 0x0)
			Expect(bp.History(0)).To(Equal(uint64(0b01)))

			_, r1 := bp.Lookup(0, 0x4)
			Expect(bp.GetGHR(0, r1)).To(Equal(uint64(0b01)))

			// Unrelated training through other records.
			for i := 0; i < 5; i++ {
				other := bp.UncondBranch(0, 0x100)
				bp.Update(0, 0x100, true, other, false)
			}
			_, younger := bp.Lookup(0, 0x8)
			bp.Update(0, 0x8, false, younger, false)

			bp.Squash(0, r1)
			Expect(bp.History(0)).To(Equal(uint64(0b01)))

			bp.Update(0, 0x0, true, first, false)
			Expect(bp.Outstanding()).To(Equal(0))
		})
	})

	Describe("recovery through a squashed update", func() {
		It("should rebuild history from the record and the outcome", func() {
			a := bp.UncondBranch(0, 0x0)
			_, b := bp.Lookup(0, 0x4)
			Expect(bp.History(0)).To(Equal(uint64(0b10)))

			rec := bp.UncondBranch(0, 0x8)
			Expect(bp.GetGHR(0, rec)).To(Equal(uint64(0b10)))
			Expect(bp.History(0)).To(Equal(uint64(0b01)))

			table := bp.Counters()
			bp.Update(0, 0x8, true, rec, true)

			Expect(bp.History(0)).To(Equal(uint64(((0b10 << 1) | 1) & 0b11)))
			Expect(bp.Counters()).To(Equal(table))
			Expect(stats.Stats().Recoveries).To(Equal(uint64(1)))
			Expect(stats.Stats().Updates).To(Equal(uint64(0)))

			bp.Squash(0, b)
			bp.Squash(0, a)
		})
	})

	Describe("Update", func() {
		It("should train the counter selected by the current history", func() {
			rec := bp.UncondBranch(0, 0x0)
			Expect(bp.History(0)).To(Equal(uint64(0b01)))

			// 0x10 selects table 0.
			bp.Update(0, 0x10, true, rec, false)
			Expect(bp.History(0)).To(Equal(uint64(0b01)))
			Expect(bp.CounterAt(0, 0b01)).To(Equal(uint8(1)))
			Expect(bp.CounterAt(0, 0b00)).To(Equal(uint8(0)))
		})

		It("should not go below zero", func() {
			for i := 0; i < 4; i++ {
				_, rec := bp.Lookup(0, 0x0)
				bp.Update(0, 0x0, false, rec, false)
			}
			Expect(bp.Counter(0, 0x0)).To(Equal(uint8(0)))
		})

		It("should count correct and mispredicted resolutions", func() {
			_, rec := bp.Lookup(0, 0x0)
			bp.Update(0, 0x0, false, rec, false)
			_, rec = bp.Lookup(0, 0x0)
			bp.Update(0, 0x0, true, rec, false)

			s := stats.Stats()
			Expect(s.Lookups).To(Equal(uint64(2)))
			Expect(s.Updates).To(Equal(uint64(2)))
			Expect(s.Correct).To(Equal(uint64(1)))
			Expect(s.Mispredictions).To(Equal(uint64(1)))
			Expect(s.Accuracy()).To(BeNumerically("~", 50.0, 0.1))
		})
	})

	Describe("BTBUpdate", func() {
		It("should clear only the newest history bit", func() {
			recs := []bpred.Record{
				bp.UncondBranch(0, 0x0),
				bp.UncondBranch(0, 0x4),
			}
			Expect(bp.History(0)).To(Equal(uint64(0b11)))

			bp.BTBUpdate(0, 0x4, recs[1])
			Expect(bp.History(0)).To(Equal(uint64(0b10)))
			Expect(bp.Outstanding()).To(Equal(2))

			bp.BTBUpdate(0, 0x4, recs[1])
			Expect(bp.History(0)).To(Equal(uint64(0b10)))

			bp.Squash(0, recs[1])
			bp.Squash(0, recs[0])
			Expect(stats.Stats().BTBUpdates).To(Equal(uint64(2)))
		})
	})

	Describe("Aliasing", func() {
		It("should read the same counter for addresses sharing a set", func() {
			config := smallGAsConfig()
			config.HistoryBits = 4
			config.TableBits = 2
			bp, _ = bpred.NewGAs(config)

			// The set index uses pc bits [2, 4); 0x4 and 0x14 share set 1.
			for i := 0; i < 3; i++ {
				_, rec := bp.Lookup(0, 0x4)
				bp.Update(0, 0x4, true, rec, false)
			}

			Expect(bp.Counter(0, 0x14)).To(Equal(bp.Counter(0, 0x4)))
			Expect(bp.Counters()[2]).To(HaveEach(Equal(uint8(0))))

			a, rec := bp.Lookup(0, 0x4)
			bp.Squash(0, rec)
			b, rec := bp.Lookup(0, 0x14)
			bp.Squash(0, rec)
			Expect(a).To(Equal(b))
		})

		It("should let threads alias the same entry", func() {
			config := smallGAsConfig()
			config.NumThreads = 2
			bp, _ = bpred.NewGAs(config)

			// Both lookups predict not taken, so thread 1 trains entry 0 twice.
			for i := 0; i < 2; i++ {
				_, rec := bp.Lookup(1, 0x0)
				bp.Update(1, 0x0, true, rec, false)
			}
			Expect(bp.History(1)).To(Equal(uint64(0)))

			taken, rec := bp.Lookup(0, 0x0)
			Expect(taken).To(BeTrue())
			bp.Squash(0, rec)
		})

		It("should keep thread histories private", func() {
			config := smallGAsConfig()
			config.NumThreads = 2
			bp, _ = bpred.NewGAs(config)

			rec := bp.UncondBranch(1, 0x0)
			Expect(bp.History(1)).To(Equal(uint64(0b01)))
			Expect(bp.History(0)).To(Equal(uint64(0)))
			bp.Squash(1, rec)
		})
	})

	Describe("History masking", func() {
		It("should never keep bits beyond the history width", func() {
			var recs []bpred.Record
			for i := 0; i < 10; i++ {
				recs = append(recs, bp.UncondBranch(0, 0x0))
				Expect(bp.History(0)).To(BeNumerically("<=", uint64(0b11)))
			}

			rec := recs[len(recs)-1]
			recs = recs[:len(recs)-1]
			bp.Update(0, 0x0, true, rec, true)
			Expect(bp.History(0)).To(Equal(uint64(0b11)))

			for i := len(recs) - 1; i >= 0; i-- {
				bp.Squash(0, recs[i])
			}
		})
	})

	Describe("Record protocol", func() {
		It("should panic when a record is consumed twice", func() {
			_, rec := bp.Lookup(0, 0x0)
			bp.Squash(0, rec)

			Expect(func() { bp.Squash(0, rec) }).To(Panic())
			Expect(func() { bp.Update(0, 0x0, true, rec, false) }).To(Panic())
			Expect(func() { bp.GetGHR(0, rec) }).To(Panic())
		})

		It("should panic on the zero record", func() {
			Expect(func() { bp.Squash(0, bpred.Record{}) }).To(Panic())
		})

		It("should not accept a stale handle after its slot is reused", func() {
			old := bp.UncondBranch(0, 0x0)
			bp.Squash(0, old)
			fresh := bp.UncondBranch(0, 0x0)

			Expect(func() { bp.Squash(0, old) }).To(Panic())
			bp.Squash(0, fresh)
			Expect(bp.Outstanding()).To(Equal(0))
		})

		It("should panic when a record is used on another thread", func() {
			config := smallGAsConfig()
			config.NumThreads = 2
			bp, _ = bpred.NewGAs(config)

			rec := bp.UncondBranch(0, 0x0)
			Expect(func() { bp.Squash(1, rec) }).To(Panic())
			bp.Squash(0, rec)
		})

		It("should panic on an out of range thread", func() {
			Expect(func() { bp.Lookup(3, 0x0) }).To(Panic())
		})

		It("should not consume the record in GetGHR", func() {
			rec := bp.UncondBranch(0, 0x0)
			Expect(bp.GetGHR(0, rec)).To(Equal(uint64(0)))
			Expect(bp.GetGHR(0, rec)).To(Equal(uint64(0)))
			Expect(bp.Outstanding()).To(Equal(1))
			bp.Squash(0, rec)
		})
	})
})
