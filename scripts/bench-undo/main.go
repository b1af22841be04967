// bench-undo measures how much memory the undo history of a long editing
// session holds, with and without lz4 compression.
//
// Usage:
//
//	go run ./scripts/bench-undo --edits 5000 --budget 32MiB --profile-dir docs/profiles/undo
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/cutfang/pkg/clip"
	"github.com/Sumatoshi-tech/cutfang/pkg/filter"
	"github.com/Sumatoshi-tech/cutfang/pkg/multitrack"
	"github.com/Sumatoshi-tech/cutfang/pkg/safeconv"
	"github.com/Sumatoshi-tech/cutfang/pkg/undo"
)

const (
	clipFrames  = 10000
	blockFrames = 25
	frameTicks  = 40000
)

type result struct {
	name      string
	elapsed   time.Duration
	used      int64
	records   int
	heapInUse uint64
}

func main() {
	edits := flag.Int("edits", 2000, "Block inserts per run")
	budget := flag.String("budget", "32MiB", "Undo budget")
	profileDir := flag.String("profile-dir", "", "Directory to write heap profiles (optional)")

	flag.Parse()

	size, err := undo.ParseBudget(*budget)
	if err != nil {
		log.Fatalf("parse budget: %v", err)
	}

	if *profileDir != "" {
		if mkErr := os.MkdirAll(*profileDir, 0o755); mkErr != nil {
			log.Fatalf("mkdir profile-dir: %v", mkErr)
		}
	}

	var results []result

	for _, compress := range []bool{false, true} {
		res, runErr := run(*edits, size, compress, *profileDir)
		if runErr != nil {
			log.Fatalf("%s: %v", res.name, runErr)
		}

		results = append(results, res)
	}

	fmt.Printf("%-12s %12s %12s %10s %12s\n", "Run", "Elapsed", "Undo bytes", "Records", "Heap in use")

	for _, r := range results {
		fmt.Printf("%-12s %12s %12s %10d %12s\n", r.name, r.elapsed.Round(time.Millisecond),
			humanize.IBytes(safeconv.MustInt64ToUint64(r.used)), r.records, humanize.IBytes(r.heapInUse))
	}
}

func run(edits int, budget int64, compress bool, profileDir string) (result, error) {
	res := result{name: "plain"}
	if compress {
		res.name = "lz4"
	}

	reg, err := clip.NewRegistry(&clip.Clip{Number: 1, Handle: "source", UniqueID: 1, FPS: 25, Frames: clipFrames})
	if err != nil {
		return res, err
	}

	opts := multitrack.DefaultOptions()
	opts.UndoBudget = budget
	opts.UndoCompress = compress

	ed, err := multitrack.New(opts, filter.BuiltinRegistry(), reg)
	if err != nil {
		return res, err
	}

	started := time.Now()

	for i := range edits {
		first := int64(i*blockFrames)%clipFrames + 1
		tc := int64(i) * blockFrames * frameTicks

		_, err = ed.InsertBlock(0, 1, first, first+blockFrames-1, tc)
		if err != nil {
			return res, fmt.Errorf("edit %d: %w", i, err)
		}
	}

	res.elapsed = time.Since(started)
	res.used = ed.History().Used()
	res.records = ed.History().Len()

	runtime.GC()
	runtime.GC()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	res.heapInUse = m.HeapInuse

	if profileDir != "" {
		err = writeHeapProfile(filepath.Join(profileDir, res.name+".heap.prof"))
	}

	runtime.KeepAlive(ed)

	return res, err
}

func writeHeapProfile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create heap profile: %w", err)
	}
	defer f.Close()

	err = pprof.WriteHeapProfile(f)
	if err != nil {
		return fmt.Errorf("write heap profile: %w", err)
	}

	return nil
}
