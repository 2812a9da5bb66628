// Command run decomposes a grid of benchmark tensors and prints the
// resulting accuracies in CSV format.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/fumin/ttcross"
	"github.com/fumin/ttcross/tensor"
)

var (
	runDir  = flag.String("d", filepath.Join("runs", "ttcross"), "run directory")
	cfgPath = flag.String("c", "", "YAML file overriding the default benchmark grid")
)

const (
	kindHilbert = "hilbert"
	kindRamp    = "ramp"
)

// Config describes one decomposition benchmark.
type Config struct {
	// Kind is the tensor family, either hilbert or ramp.
	Kind string `yaml:"kind"`
	// Shape lists the mode sizes.
	Shape []int `yaml:"shape"`
	// Rank is the bond dimension profile, from rank[0] to rank[d].
	Rank []int `yaml:"rank"`
	// Tol is the convergence tolerance.
	Tol float64 `yaml:"tol"`
}

func newConfigs() []Config {
	configs := make([]Config, 0)
	for _, shape := range [][]int{{5, 5, 5}, {8, 8, 8}, {4, 4, 4, 4}} {
		for _, r := range []int{3, 4} {
			rank := make([]int, 0, len(shape)+1)
			rank = append(rank, 1)
			for range len(shape) - 1 {
				rank = append(rank, r)
			}
			rank = append(rank, 1)
			configs = append(configs, Config{Kind: kindHilbert, Shape: shape, Rank: rank, Tol: 1e-2})
		}

		// Ramp tensors have bond dimension 2 exactly.
		rank := make([]int, 0, len(shape)+1)
		rank = append(rank, 1)
		for range len(shape) - 1 {
			rank = append(rank, 2)
		}
		rank = append(rank, 1)
		configs = append(configs, Config{Kind: kindRamp, Shape: shape, Rank: rank, Tol: 1e-5})
	}
	return configs
}

// loadConfigs reads a benchmark grid from a YAML file.
func loadConfigs(fpath string) ([]Config, error) {
	b, err := os.ReadFile(fpath)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	var configs []Config
	if err := yaml.Unmarshal(b, &configs); err != nil {
		return nil, errors.Wrap(err, "")
	}

	for _, cfg := range configs {
		if cfg.Kind != kindHilbert && cfg.Kind != kindRamp {
			return nil, errors.Errorf("%#v", cfg)
		}
		if len(cfg.Shape) == 0 {
			return nil, errors.Errorf("%#v", cfg)
		}
		for _, n := range cfg.Shape {
			if n < 1 {
				return nil, errors.Errorf("%#v", cfg)
			}
		}
	}
	return configs, nil
}

// newTensor builds the tensor of a benchmark.
func newTensor(cfg Config) *tensor.Dense {
	full := tensor.Zeros(cfg.Shape...)
	switch cfg.Kind {
	case kindRamp:
		v := 0.0
		for ijk := range full.All() {
			full.SetAt(ijk, v)
			v++
		}
	default:
		for ijk := range full.All() {
			sum := 1.0
			for _, x := range ijk {
				sum += float64(x)
			}
			full.SetAt(ijk, 1/sum)
		}
	}
	return full
}

type Statistics struct {
	cfg      Config
	name     string
	relErr   float64
	duration time.Duration
}

func solve(db *tensor.DB, cfg Config) (Statistics, error) {
	full := newTensor(cfg)
	name := chainName(cfg)

	names, err := db.Chains()
	if err != nil {
		return Statistics{}, errors.Wrap(err, "")
	}

	// Decompose, unless a previous run already stored this chain.
	var chain []*tensor.Dense
	var duration time.Duration
	if slices.Contains(names, name) {
		chain, err = db.LoadChain(name)
		if err != nil {
			return Statistics{}, errors.Wrap(err, "")
		}
	} else {
		opt := ttcross.NewDecomposeOptions().Tol(cfg.Tol)
		start := time.Now()
		chain, err = ttcross.Decompose(full, ttcross.Profile(cfg.Rank...), opt)
		if err != nil {
			return Statistics{}, errors.Wrap(err, "")
		}
		duration = time.Since(start)

		if err := db.SaveChain(name, chain); err != nil {
			return Statistics{}, errors.Wrap(err, "")
		}
	}

	approx := ttcross.Reconstruct(chain)
	approx.Add(-1, full)
	relErr := approx.Norm() / full.Norm()

	return Statistics{cfg: cfg, name: name, relErr: relErr, duration: duration}, nil
}

func chainName(cfg Config) string {
	return fmt.Sprintf("%s_%s_r%s", cfg.Kind, formatInts(cfg.Shape, "x"), formatInts(cfg.Rank, "-"))
}

func formatInts(vals []int, sep string) string {
	strs := make([]string, 0, len(vals))
	for _, v := range vals {
		strs = append(strs, strconv.Itoa(v))
	}
	return strings.Join(strs, sep)
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	if err := mainWithErr(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func mainWithErr() error {
	if err := os.MkdirAll(*runDir, os.ModePerm); err != nil {
		return errors.Wrap(err, "")
	}

	configs := newConfigs()
	if *cfgPath != "" {
		var err error
		configs, err = loadConfigs(*cfgPath)
		if err != nil {
			return errors.Wrap(err, "")
		}
	}

	db, err := tensor.OpenDB(filepath.Join(*runDir, "chains.db"))
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer db.Close()

	statistics := make([]Statistics, 0, len(configs))
	for _, cfg := range configs {
		stat, err := solve(db, cfg)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("%#v", cfg))
		}
		statistics = append(statistics, stat)
		log.Printf("%#v", stat)
	}

	fmt.Printf("kind,shape,rank,relerr,seconds,chain\n")
	for _, s := range statistics {
		fmt.Printf("%s,%s,%s,%g,%f,%s\n", s.cfg.Kind, formatInts(s.cfg.Shape, "x"), formatInts(s.cfg.Rank, "-"), s.relErr, s.duration.Seconds(), s.name)
	}
	return nil
}
