// Extract supervised training examples from a directory of recorded
// generals replays.
package main

import (
	"context"
	"flag"
	"io"
	"runtime"

	"github.com/golang/glog"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/timpalpant/go-a3c/ldbstore"
	"github.com/timpalpant/go-a3c/rdbstore"
	"github.com/timpalpant/go-a3c/replay"
)

type sink interface {
	replay.Sink
	io.Closer
}

func main() {
	dataDir := flag.String("data", "replays", "Directory where the gioreplay files are stored")
	stars := flag.Int("stars", 90, "Minimum star rating of every player")
	players := flag.Int("players", 2, "Number of players in extracted games")
	threads := flag.Int("threads", runtime.NumCPU(), "Number of replays to extract in parallel")
	output := flag.String("output", "data", "Output path")
	backend := flag.String("backend", "gob", "Output format (gob, leveldb or rocksdb)")
	flag.Parse()

	glog.Info("Finding all gioreplay files...")
	paths, err := replay.ListReplays(*dataDir)
	if err != nil {
		glog.Fatal(err)
	}

	glog.Infof("Extracting data from %d gioreplay files...", len(paths))
	filter := replay.Filter{MinStars: *stars, NumPlayers: *players}
	ds, err := replay.Extract(context.Background(), paths, filter, *threads)
	if err != nil {
		glog.Fatal(err)
	}

	out, err := openSink(*backend, *output)
	if err != nil {
		glog.Fatal(err)
	}

	if err := replay.Write(out, ds); err != nil {
		glog.Fatal(err)
	}

	if err := out.Close(); err != nil {
		glog.Fatal(err)
	}

	glog.Infof("Wrote %d games to %s", ds.Len(), *output)
}

func openSink(backend, path string) (sink, error) {
	switch backend {
	case "gob":
		return replay.NewFileSink(path)
	case "leveldb":
		return ldbstore.NewDataset(path, &opt.Options{})
	case "rocksdb":
		return rdbstore.NewDataset(rdbstore.DefaultParams(path))
	}

	glog.Fatalf("Unknown output backend: %s", backend)
	return nil, nil
}
