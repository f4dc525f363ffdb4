// Package rdbstore implements training storage components that keep data
// in a RocksDB database.
//
// It provides the same components as ldbstore. RocksDB handles large
// snapshot histories and datasets better, at the cost of a cgo dependency.
package rdbstore

import (
	rocksdb "github.com/tecbot/gorocksdb"
)

// Params configure a RocksDB database.
type Params struct {
	Path         string
	Options      *rocksdb.Options
	ReadOptions  *rocksdb.ReadOptions
	WriteOptions *rocksdb.WriteOptions
}

// DefaultParams returns Params that create the database at path if it does
// not exist.
func DefaultParams(path string) Params {
	opts := rocksdb.NewDefaultOptions()
	opts.SetCreateIfMissing(true)

	return Params{
		Path:         path,
		Options:      opts,
		ReadOptions:  rocksdb.NewDefaultReadOptions(),
		WriteOptions: rocksdb.NewDefaultWriteOptions(),
	}
}

// Close releases the options.
func (p Params) Close() {
	p.Options.Destroy()
	p.ReadOptions.Destroy()
	p.WriteOptions.Destroy()
}

func open(params Params) (*rocksdb.DB, error) {
	return rocksdb.OpenDb(params.Options, params.Path)
}

// forEachPrefix calls fn with the key and value of every entry whose key
// starts with prefix, in key order.
func forEachPrefix(db *rocksdb.DB, ro *rocksdb.ReadOptions, prefix []byte, fn func(key, value []byte) error) error {
	it := db.NewIterator(ro)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		key, value := it.Key(), it.Value()
		err := fn(key.Data(), value.Data())
		key.Free()
		value.Free()
		if err != nil {
			return err
		}
	}

	return it.Err()
}
