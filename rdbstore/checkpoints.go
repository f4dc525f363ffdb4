package rdbstore

import (
	"github.com/golang/glog"
	"github.com/pkg/errors"
	rocksdb "github.com/tecbot/gorocksdb"

	"github.com/timpalpant/go-a3c/internal/kv"
)

// Checkpoints implements a3c.Checkpointer by saving every snapshot in a
// RocksDB database, along with a pointer to the most recent one.
type Checkpoints struct {
	params Params
	db     *rocksdb.DB
}

// NewCheckpoints opens (or creates) a checkpoint database.
func NewCheckpoints(params Params) (*Checkpoints, error) {
	db, err := open(params)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening %s", params.Path)
	}

	return &Checkpoints{params: params, db: db}, nil
}

// Close implements io.Closer.
func (c *Checkpoints) Close() error {
	c.db.Close()
	return nil
}

// SaveCheckpoint implements a3c.Checkpointer.
func (c *Checkpoints) SaveCheckpoint(runID string, iter int64, snapshot []byte) error {
	key := kv.CheckpointKey(runID, iter)
	batch := rocksdb.NewWriteBatch()
	defer batch.Destroy()
	batch.Put(key, snapshot)
	batch.Put(kv.LatestKey, key)
	if err := c.db.Write(c.params.WriteOptions, batch); err != nil {
		return errors.Wrapf(err, "error saving checkpoint %s", key)
	}

	glog.V(2).Infof("Saved %s (%d bytes) to %s", key, len(snapshot), c.params.Path)
	return nil
}

// LoadLatest implements a3c.Checkpointer. It returns a nil snapshot if no
// checkpoint has been saved.
func (c *Checkpoints) LoadLatest() (string, int64, []byte, error) {
	key, err := c.db.GetBytes(c.params.ReadOptions, kv.LatestKey)
	if err != nil {
		return "", 0, nil, err
	} else if key == nil {
		return "", 0, nil, nil
	}

	runID, iter, err := kv.ParseCheckpointKey(key)
	if err != nil {
		return "", 0, nil, err
	}

	snapshot, err := c.db.GetBytes(c.params.ReadOptions, key)
	if err != nil {
		return "", 0, nil, errors.Wrapf(err, "error loading checkpoint %s", key)
	} else if snapshot == nil {
		return "", 0, nil, errors.Errorf("missing checkpoint %s", key)
	}

	return runID, iter, snapshot, nil
}

// Iterations returns the iterations at which checkpoints of the given run
// were saved, in increasing order.
func (c *Checkpoints) Iterations(runID string) ([]int64, error) {
	var result []int64
	err := forEachPrefix(c.db, c.params.ReadOptions, kv.CheckpointPrefix(runID), func(key, _ []byte) error {
		_, i, err := kv.ParseCheckpointKey(key)
		if err != nil {
			return err
		}

		result = append(result, i)
		return nil
	})

	return result, err
}
