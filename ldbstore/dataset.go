package ldbstore

import (
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/timpalpant/go-a3c/internal/kv"
	"github.com/timpalpant/go-a3c/replay"
)

// Dataset implements replay.Sink by storing extracted examples in a
// LevelDB database, keyed by collection and game index.
type Dataset struct {
	path  string
	db    *leveldb.DB
	rOpts *opt.ReadOptions
	wOpts *opt.WriteOptions
}

// NewDataset opens (or creates) a dataset database at the given path.
func NewDataset(path string, opts *opt.Options) (*Dataset, error) {
	db, err := leveldb.OpenFile(path, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening %s", path)
	}

	return &Dataset{path: path, db: db}, nil
}

// Close implements io.Closer.
func (d *Dataset) Close() error {
	return d.db.Close()
}

// Put implements replay.Sink.
func (d *Dataset) Put(kind replay.Kind, idx int, values []float64) error {
	key := kv.SampleKey(kind.String(), idx)
	return d.db.Put(key, kv.EncodeFloats(values), d.wOpts)
}

// Get returns entry idx of the given collection.
func (d *Dataset) Get(kind replay.Kind, idx int) ([]float64, bool) {
	buf, err := d.db.Get(kv.SampleKey(kind.String(), idx), d.rOpts)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, false
		}

		panic(err)
	}

	values, err := kv.DecodeFloats(buf)
	if err != nil {
		panic(err)
	}

	return values, true
}

// Len returns the number of entries in the given collection.
func (d *Dataset) Len(kind replay.Kind) int {
	iter := d.db.NewIterator(util.BytesPrefix(kv.SamplePrefix(kind.String())), d.rOpts)
	n := 0
	for iter.Next() {
		n++
	}

	iter.Release()
	if err := iter.Error(); err != nil {
		panic(err)
	}

	return n
}
