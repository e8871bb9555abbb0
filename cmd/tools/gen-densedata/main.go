// Command gen-densedata writes synthetic DataSet files for pipeline trials.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"path/filepath"

	"github.com/banshee-data/qwop.data/internal/fsutil"
	"github.com/banshee-data/qwop.data/internal/qwop"
	"github.com/banshee-data/qwop.data/internal/qwop/densedata"
)

func main() {
	dir := flag.String("o", "synthetic", "output directory")
	files := flag.Int("files", 4, "number of DataSet files")
	runs := flag.Int("runs", 20, "runs per file")
	steps := flag.Int("steps", 600, "timesteps per run")
	jitter := flag.Int("jitter", 200, "random extra timesteps per run, up to this many")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	if *files < 1 || *runs < 0 || *steps < 0 || *jitter < 0 {
		log.Fatalf("files must be positive and runs, steps and jitter non-negative")
	}

	fsys := fsutil.OSFileSystem{}
	if err := fsys.MkdirAll(*dir, 0755); err != nil {
		log.Fatalf("create %s: %v", *dir, err)
	}

	gen := qwop.NewSyntheticGenerator(*seed)
	rng := rand.New(rand.NewSource(*seed))
	var total int
	for f := 0; f < *files; f++ {
		dataset := make([]qwop.GameRun, *runs)
		for r := range dataset {
			n := *steps
			if *jitter > 0 {
				n += rng.Intn(*jitter + 1)
			}
			dataset[r] = gen.Run(n)
			total += n
		}
		path := filepath.Join(*dir, fmt.Sprintf("runs_%03d.proto", f))
		if err := fsys.WriteFile(path, densedata.Encode(dataset), 0644); err != nil {
			log.Fatalf("write %s: %v", path, err)
		}
		log.Printf("%d/%d files", f+1, *files)
	}
	log.Printf("✓ Created %d files, %d runs, %d timesteps in %s", *files, *files*(*runs), total, *dir)
}
