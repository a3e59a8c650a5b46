package metrics_test

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sarchlab/bpsim/timing/bpred"
	"github.com/sarchlab/bpsim/timing/bpred/metrics"
)

type fixedStats bpred.Stats

func (f fixedStats) Stats() bpred.Stats { return bpred.Stats(f) }

var _ = Describe("Collector", func() {
	It("should export the counts of a stats hook", func() {
		bp, err := bpred.NewGAs(*bpred.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())

		hook := bpred.NewStatsHook()
		bp.AcceptHook(hook)

		for i := 0; i < 3; i++ {
			_, rec := bp.Lookup(0, 0x400)
			bp.Update(0, 0x400, false, rec, false)
		}
		bp.Squash(0, bp.UncondBranch(0, 0x404))

		c := metrics.NewCollector("gas", hook)
		Expect(testutil.CollectAndCount(c)).To(Equal(9))

		expected := `
# HELP bpsim_branch_lookups_total Conditional branch predictions made.
# TYPE bpsim_branch_lookups_total counter
bpsim_branch_lookups_total{predictor="gas"} 3
# HELP bpsim_branch_squashes_total Predictions annulled without resolution.
# TYPE bpsim_branch_squashes_total counter
bpsim_branch_squashes_total{predictor="gas"} 1
# HELP bpsim_branch_accuracy_percent Share of resolved branches predicted correctly.
# TYPE bpsim_branch_accuracy_percent gauge
bpsim_branch_accuracy_percent{predictor="gas"} 100
`
		Expect(testutil.CollectAndCompare(c, strings.NewReader(expected),
			"bpsim_branch_lookups_total",
			"bpsim_branch_squashes_total",
			"bpsim_branch_accuracy_percent",
		)).To(Succeed())
	})

	It("should write a textfile", func() {
		tempDir, err := os.MkdirTemp("", "bpsim-metrics-test")
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = os.RemoveAll(tempDir) }()

		path := filepath.Join(tempDir, "bpsim.prom")
		c := metrics.NewCollector("bimodal", fixedStats{Updates: 4, Correct: 3, Mispredictions: 1})
		Expect(metrics.WriteTextfile(path, c)).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`bpsim_branch_mispredictions_total{predictor="bimodal"} 1`))
		Expect(string(data)).To(ContainSubstring(`bpsim_branch_accuracy_percent{predictor="bimodal"} 75`))
	})

	It("should reject two collectors with the same label", func() {
		tempDir, err := os.MkdirTemp("", "bpsim-metrics-test")
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = os.RemoveAll(tempDir) }()

		a := metrics.NewCollector("gas", fixedStats{})
		b := metrics.NewCollector("gas", fixedStats{})
		Expect(metrics.WriteTextfile(filepath.Join(tempDir, "x.prom"), a, b)).NotTo(Succeed())
	})
})
