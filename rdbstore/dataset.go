package rdbstore

import (
	"github.com/pkg/errors"
	rocksdb "github.com/tecbot/gorocksdb"

	"github.com/timpalpant/go-a3c/internal/kv"
	"github.com/timpalpant/go-a3c/replay"
)

// Dataset implements replay.Sink by storing extracted examples in a
// RocksDB database, keyed by collection and game index.
type Dataset struct {
	params Params
	db     *rocksdb.DB
}

// NewDataset opens (or creates) a dataset database.
func NewDataset(params Params) (*Dataset, error) {
	db, err := open(params)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening %s", params.Path)
	}

	return &Dataset{params: params, db: db}, nil
}

// Close implements io.Closer.
func (d *Dataset) Close() error {
	d.db.Close()
	return nil
}

// Put implements replay.Sink.
func (d *Dataset) Put(kind replay.Kind, idx int, values []float64) error {
	key := kv.SampleKey(kind.String(), idx)
	return d.db.Put(d.params.WriteOptions, key, kv.EncodeFloats(values))
}

// Get returns entry idx of the given collection.
func (d *Dataset) Get(kind replay.Kind, idx int) ([]float64, bool) {
	buf, err := d.db.GetBytes(d.params.ReadOptions, kv.SampleKey(kind.String(), idx))
	if err != nil {
		panic(err)
	} else if buf == nil {
		return nil, false
	}

	values, err := kv.DecodeFloats(buf)
	if err != nil {
		panic(err)
	}

	return values, true
}

// Len returns the number of entries in the given collection.
func (d *Dataset) Len(kind replay.Kind) int {
	n := 0
	err := forEachPrefix(d.db, d.params.ReadOptions, kv.SamplePrefix(kind.String()), func(_, _ []byte) error {
		n++
		return nil
	})
	if err != nil {
		panic(err)
	}

	return n
}
