package ldbstore

import (
	"bytes"
	"encoding/gob"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/timpalpant/go-a3c/internal/kv"
)

func init() {
	gob.Register(&Checkpoints{})
}

// Checkpoints implements a3c.Checkpointer by saving every snapshot in a
// LevelDB database, along with a pointer to the most recent one.
type Checkpoints struct {
	path string
	opts *opt.Options

	db    *leveldb.DB
	rOpts *opt.ReadOptions
	wOpts *opt.WriteOptions
}

// NewCheckpoints opens (or creates) a checkpoint database at the given path.
func NewCheckpoints(path string, opts *opt.Options) (*Checkpoints, error) {
	db, err := leveldb.OpenFile(path, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening %s", path)
	}

	return &Checkpoints{
		path:  path,
		opts:  opts,
		db:    db,
		wOpts: &opt.WriteOptions{Sync: true},
	}, nil
}

// Close implements io.Closer.
func (c *Checkpoints) Close() error {
	return c.db.Close()
}

// SaveCheckpoint implements a3c.Checkpointer.
func (c *Checkpoints) SaveCheckpoint(runID string, iter int64, snapshot []byte) error {
	key := kv.CheckpointKey(runID, iter)
	batch := new(leveldb.Batch)
	batch.Put(key, snapshot)
	batch.Put(kv.LatestKey, key)
	if err := c.db.Write(batch, c.wOpts); err != nil {
		return errors.Wrapf(err, "error saving checkpoint %s", key)
	}

	glog.V(2).Infof("Saved %s (%d bytes) to %s", key, len(snapshot), c.path)
	return nil
}

// LoadLatest implements a3c.Checkpointer. It returns a nil snapshot if no
// checkpoint has been saved.
func (c *Checkpoints) LoadLatest() (string, int64, []byte, error) {
	key, err := c.db.Get(kv.LatestKey, c.rOpts)
	if err == leveldb.ErrNotFound {
		return "", 0, nil, nil
	} else if err != nil {
		return "", 0, nil, err
	}

	runID, iter, err := kv.ParseCheckpointKey(key)
	if err != nil {
		return "", 0, nil, err
	}

	snapshot, err := c.db.Get(key, c.rOpts)
	if err != nil {
		return "", 0, nil, errors.Wrapf(err, "error loading checkpoint %s", key)
	}

	return runID, iter, snapshot, nil
}

// Iterations returns the iterations at which checkpoints of the given run
// were saved, in increasing order.
func (c *Checkpoints) Iterations(runID string) ([]int64, error) {
	iter := c.db.NewIterator(util.BytesPrefix(kv.CheckpointPrefix(runID)), c.rOpts)
	defer iter.Release()

	var result []int64
	for iter.Next() {
		_, i, err := kv.ParseCheckpointKey(iter.Key())
		if err != nil {
			return nil, err
		}

		result = append(result, i)
	}

	return result, iter.Error()
}

// GobEncode implements gob.GobEncoder.
func (c *Checkpoints) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	if err := enc.Encode(c.path); err != nil {
		return nil, err
	}

	opts := c.opts
	if opts == nil {
		opts = &opt.Options{}
	}

	if err := enc.Encode(opts); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder. The database is reopened and must
// already exist.
func (c *Checkpoints) GobDecode(buf []byte) error {
	r := bytes.NewReader(buf)
	dec := gob.NewDecoder(r)

	if err := dec.Decode(&c.path); err != nil {
		return err
	}

	if err := dec.Decode(&c.opts); err != nil {
		return err
	}

	c.opts.ErrorIfMissing = true
	db, err := leveldb.OpenFile(c.path, c.opts)
	if err != nil {
		return err
	}

	c.db = db
	c.wOpts = &opt.WriteOptions{Sync: true}
	return nil
}
