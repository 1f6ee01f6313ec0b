// dataset_gen.go is a tiny helper utility to generate deterministic entity
// path / frame datasets for standalone benchmarking of chronostore (outside
// `go test`). It emits newline-separated JSON records, one per row,
// suitable for feeding into bench/ or examples/basic's /log endpoint.
//
// Usage:
//
//	go run ./tools/dataset_gen -entities 1000 -depth 3 -frames 500 -dist=zipf -seed=42 -out dataset.jsonl
//
// Flags:
//
//	-entities  number of distinct entity paths to generate (default 1000)
//	-depth     path component depth per entity (default 2, e.g. /group12/entity345)
//	-frames    number of frame rows per entity (default 100)
//	-dist      frame-gap distribution: "uniform" or "zipf" (default uniform)
//	-zipfs     Zipf s parameter (>1) (default 1.2)
//	-zipfv     Zipf v parameter (>1) (default 1.0)
//	-seed      PRNG seed (default current time)
//	-out       output file (default stdout)
//
// The program is placed under version control so any contributor can
// regenerate the exact dataset used in a performance regression hunt.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"
)

// record is one generated row: an entity path (already "/"-joined), a
// frame number on the "frame" sequence timeline, and an x value — the
// same shape examples/basic's /log endpoint and bench/bench_test.go's
// synthetic table builder both consume.
type record struct {
	Entity string `json:"entity"`
	Frame  int64  `json:"frame"`
	X      uint64 `json:"x"`
}

func main() {
	var (
		numEntities = flag.Int("entities", 1000, "number of distinct entity paths")
		depth       = flag.Int("depth", 2, "path component depth per entity")
		frames      = flag.Int("frames", 100, "number of frame rows per entity")
		dist        = flag.String("dist", "uniform", "frame-gap distribution: uniform or zipf")
		zipfS       = flag.Float64("zipfs", 1.2, "zipf s parameter (>1)")
		zipfV       = flag.Float64("zipfv", 1.0, "zipf v parameter (>1)")
		seedVal     = flag.Int64("seed", time.Now().UnixNano(), "PRNG seed")
		outPath     = flag.String("out", "", "output file (default stdout)")
	)
	flag.Parse()

	rnd := rand.New(rand.NewSource(*seedVal))

	var gapGen func() int64
	switch *dist {
	case "uniform":
		gapGen = func() int64 { return 1 + rnd.Int63n(5) }
	case "zipf":
		if *zipfS <= 1.0 || *zipfV <= 0 {
			fmt.Fprintln(os.Stderr, "zipfs must be >1 and zipfv >0")
			os.Exit(1)
		}
		z := rand.NewZipf(rnd, *zipfS, *zipfV, 1<<20)
		gapGen = func() int64 { return 1 + int64(z.Uint64()) }
	default:
		fmt.Fprintln(os.Stderr, "unknown dist:", *dist)
		os.Exit(1)
	}

	var out *os.File
	var err error
	if *outPath == "" {
		out = os.Stdout
	} else {
		out, err = os.Create(*outPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "cannot create file:", err)
			os.Exit(1)
		}
		defer out.Close()
	}

	w := bufio.NewWriterSize(out, 1<<20)
	defer w.Flush()
	enc := json.NewEncoder(w)

	for e := 0; e < *numEntities; e++ {
		entity := entityPath(rnd, *depth, e)
		var frame int64
		for f := 0; f < *frames; f++ {
			frame += gapGen()
			rec := record{Entity: entity, Frame: frame, X: rnd.Uint64()}
			if err := enc.Encode(rec); err != nil {
				fmt.Fprintln(os.Stderr, "write error:", err)
				os.Exit(1)
			}
		}
	}
}

// entityPath builds a synthetic "/"-joined path of depth components, the
// last one disambiguated by idx so every generated entity is distinct.
func entityPath(rnd *rand.Rand, depth, idx int) string {
	path := ""
	for d := 0; d < depth-1; d++ {
		path += fmt.Sprintf("/group%d", rnd.Intn(64))
	}
	return fmt.Sprintf("%s/entity%d", path, idx)
}
