// Package main provides the entry point for bpsim.
// bpsim replays a branch trace through a fetch front end and reports how
// well the configured direction predictor did.
package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/sarchlab/bpsim/loader"
	"github.com/sarchlab/bpsim/timing/bpred"
	"github.com/sarchlab/bpsim/timing/bpred/metrics"
	"github.com/sarchlab/bpsim/timing/frontend"
	"github.com/sarchlab/bpsim/trace"
)

var (
	configPath  = flag.String("config", "", "Path to predictor configuration JSON file")
	feConfPath  = flag.String("frontend-config", "", "Path to front end configuration JSON file")
	predType    = flag.String("type", "", "Predictor type override (gas or bimodal)")
	elfPath     = flag.String("elf", "", "ARM64 ELF image used to classify trace PCs")
	depth       = flag.Int("depth", 0, "Branches in flight per thread (0 keeps the default)")
	penalty     = flag.Int("penalty", -1, "Misprediction penalty in cycles (-1 keeps the default)")
	btbSize     = flag.Int("btb", -1, "Target presence table entries, 0 disables (-1 keeps the default)")
	metricsPath = flag.String("metrics", "", "Write Prometheus metrics to this textfile")
	traceEvents = flag.Bool("trace-events", false, "Print every predictor event to stderr")
	verbose     = flag.Bool("v", false, "Verbose output")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: bpsim [options] <trace-file>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	os.Exit(run(flag.Arg(0)))
}

// run simulates the trace at tracePath and prints the report.
func run(tracePath string) int {
	predConfig := bpred.DefaultConfig()
	if *configPath != "" {
		var err error
		predConfig, err = bpred.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading predictor config: %v\n", err)
			return 1
		}
	}
	if *predType != "" {
		predConfig.Type = *predType
	}

	feConfig, err := frontendConfig(*feConfPath, *depth, *penalty, *btbSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading front end config: %v\n", err)
		return 1
	}

	var prog *loader.Program
	if *elfPath != "" {
		prog, err = loader.Load(*elfPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
			return 1
		}
		if *verbose {
			fmt.Printf("Loaded: %s\n", *elfPath)
			fmt.Printf("Entry point: 0x%X\n", prog.EntryPoint)
			fmt.Printf("Segments: %d\n", len(prog.Segments))
		}
	}

	f, err := os.Open(tracePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening trace: %v\n", err)
		return 1
	}
	defer func() { _ = f.Close() }()

	var events io.Writer
	if *traceEvents {
		events = os.Stderr
	}

	res, err := simulate(*predConfig, *feConfig, prog, f, events)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	printReport(os.Stdout, tracePath, res)

	if *metricsPath != "" {
		collector := metrics.NewCollector(res.predConfig.Type, res.hook)
		if err := metrics.WriteTextfile(*metricsPath, collector); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing metrics: %v\n", err)
			return 1
		}
		if *verbose {
			fmt.Printf("Metrics written to %s\n", *metricsPath)
		}
	}

	return 0
}

// frontendConfig loads the front end config from path, or the defaults when
// path is empty, and applies the command-line overrides. Negative penalty and
// btb values, and a non-positive depth, keep the loaded value.
func frontendConfig(path string, depth, penalty, btb int) (*frontend.Config, error) {
	config := frontend.DefaultConfig()
	if path != "" {
		var err error
		config, err = frontend.LoadConfig(path)
		if err != nil {
			return nil, err
		}
	}

	if depth > 0 {
		config.Depth = depth
	}
	if penalty >= 0 {
		config.MispredictPenalty = uint64(penalty)
	}
	if btb >= 0 {
		if uint64(btb) > math.MaxUint32 {
			return nil, fmt.Errorf("%w: btb_size %d does not fit in 32 bits",
				frontend.ErrInvalidConfig, btb)
		}
		config.BTBSize = uint32(btb)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// result is the outcome of one simulation.
type result struct {
	predConfig  bpred.Config
	feConfig    frontend.Config
	frontend    frontend.Stats
	hook        *bpred.StatsHook
	outstanding int
}

// simulate runs the trace read from src. When events is not nil every
// predictor event is written to it.
func simulate(
	predConfig bpred.Config,
	feConfig frontend.Config,
	prog *loader.Program,
	src io.Reader,
	events io.Writer,
) (result, error) {
	pred, err := bpred.New(predConfig)
	if err != nil {
		return result{}, err
	}

	hook := bpred.NewStatsHook()
	pred.AcceptHook(hook)
	if events != nil {
		pred.AcceptHook(bpred.NewTraceHook(events))
	}

	opts := []frontend.Option{frontend.WithThreads(predConfig.NumThreads)}
	if prog != nil {
		opts = append(opts, frontend.WithProgram(prog))
	}

	fu, err := frontend.NewFetchUnit(pred, feConfig, opts...)
	if err != nil {
		return result{}, err
	}

	if err := fu.Run(trace.NewReader(src)); err != nil {
		return result{}, err
	}

	return result{
		predConfig:  predConfig,
		feConfig:    feConfig,
		frontend:    fu.Stats(),
		hook:        hook,
		outstanding: pred.Outstanding(),
	}, nil
}

func printReport(w io.Writer, tracePath string, res result) {
	fs := res.frontend
	ps := res.hook.Stats()

	totalCycles := fs.Cycles
	if totalCycles == 0 {
		totalCycles = 1 // Avoid division by zero
	}
	penaltyCycles := fs.Mispredictions * res.feConfig.MispredictPenalty

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Trace: %s\n", tracePath)
	fmt.Fprintf(w, "Predictor: %s (counter %d bits, history %d bits, table %d bits, %d threads)\n",
		res.predConfig.Type, res.predConfig.CounterBits, res.predConfig.HistoryBits,
		res.predConfig.TableBits, res.predConfig.NumThreads)
	fmt.Fprintf(w, "Total Instructions: %d\n", fs.Instructions)
	fmt.Fprintf(w, "Total Cycles: %d\n", fs.Cycles)
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Breakdown:\n")
	fmt.Fprintf(w, "  Fetch:               %4d cycles (%5.1f%%)\n",
		fs.Instructions, 100.0*float64(fs.Instructions)/float64(totalCycles))
	fmt.Fprintf(w, "  Refetch:             %4d cycles (%5.1f%%)\n",
		fs.Refetches, 100.0*float64(fs.Refetches)/float64(totalCycles))
	fmt.Fprintf(w, "  Mispredict penalty:  %4d cycles (%5.1f%%)\n",
		penaltyCycles, 100.0*float64(penaltyCycles)/float64(totalCycles))
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Branches:\n")
	fmt.Fprintf(w, "  Conditional:    %d\n", fs.Conditional)
	fmt.Fprintf(w, "  Unconditional:  %d\n", fs.Unconditional)
	fmt.Fprintf(w, "  Mispredictions: %d\n", fs.Mispredictions)
	fmt.Fprintf(w, "  Accuracy:       %.2f%%\n", fs.Accuracy())
	fmt.Fprintf(w, "  MPKI:           %.2f\n", fs.MPKI())
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Pipeline Events:\n")
	fmt.Fprintf(w, "  Flushes:   %d\n", fs.Flushes)
	fmt.Fprintf(w, "  Refetches: %d\n", fs.Refetches)
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Predictor Events:\n")
	fmt.Fprintf(w, "  Lookups:     %d\n", ps.Lookups)
	fmt.Fprintf(w, "  BTB updates: %d\n", ps.BTBUpdates)
	fmt.Fprintf(w, "  Updates:     %d\n", ps.Updates)
	fmt.Fprintf(w, "  Squashes:    %d\n", ps.Squashes)
	fmt.Fprintf(w, "  Outstanding: %d\n", res.outstanding)
}
