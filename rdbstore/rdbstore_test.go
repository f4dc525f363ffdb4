package rdbstore

import (
	"bytes"
	"io/ioutil"
	"os"
	"testing"

	"github.com/timpalpant/go-a3c"
	"github.com/timpalpant/go-a3c/replay"
)

var _ a3c.Checkpointer = (*Checkpoints)(nil)
var _ replay.Sink = (*Dataset)(nil)

func newParams(t *testing.T) Params {
	tmpDir, err := ioutil.TempDir("", "rdbstore-test-")
	if err != nil {
		t.Fatal(err)
	}

	return DefaultParams(tmpDir)
}

func TestCheckpoints(t *testing.T) {
	params := newParams(t)
	defer os.RemoveAll(params.Path)
	defer params.Close()

	c, err := NewCheckpoints(params)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if _, _, snapshot, err := c.LoadLatest(); err != nil || snapshot != nil {
		t.Errorf("expected no checkpoint in new database, got %v (%v)", snapshot, err)
	}

	for _, iter := range []int64{3, 30, 7} {
		if err := c.SaveCheckpoint("run", iter, []byte{byte(iter)}); err != nil {
			t.Fatal(err)
		}
	}

	if err := c.SaveCheckpoint("other", 1, []byte{1}); err != nil {
		t.Fatal(err)
	}

	runID, iter, snapshot, err := c.LoadLatest()
	if err != nil {
		t.Fatal(err)
	}
	if runID != "other" || iter != 1 || !bytes.Equal(snapshot, []byte{1}) {
		t.Errorf("expected latest checkpoint other@1, got %s@%d (%v)", runID, iter, snapshot)
	}

	iters, err := c.Iterations("run")
	if err != nil {
		t.Fatal(err)
	}
	if len(iters) != 3 || iters[0] != 3 || iters[1] != 7 || iters[2] != 30 {
		t.Errorf("expected iterations [3 7 30], got %v", iters)
	}
}

func TestDataset(t *testing.T) {
	params := newParams(t)
	defer os.RemoveAll(params.Path)
	defer params.Close()

	d, err := NewDataset(params)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	ds := &replay.Dataset{
		X: [][][]float64{{{1, 2}}, {{3}}, {{4}}},
		Y: [][]int{{5}, {6}, {7}},
		Z: [][]float64{{0}, {1}, {1}},
	}

	if err := replay.Write(d, ds); err != nil {
		t.Fatal(err)
	}

	if n := d.Len(replay.Aux); n != 3 {
		t.Errorf("expected 3 aux entries, got %d", n)
	}

	if x, ok := d.Get(replay.Features, 0); !ok || len(x) != 2 || x[1] != 2 {
		t.Errorf("expected features [1 2], got %v", x)
	}

	if _, ok := d.Get(replay.Labels, 5); ok {
		t.Error("expected missing entry for game 5")
	}
}
