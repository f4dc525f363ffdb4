// Package kv defines the key and value encodings shared by the on-disk
// stores.
package kv

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// LatestKey holds the key of the most recently saved checkpoint.
var LatestKey = []byte("latest")

const checkpointPrefix = "ckpt:"

// CheckpointPrefix returns the common prefix of all checkpoint keys of a run.
func CheckpointPrefix(runID string) []byte {
	return []byte(checkpointPrefix + runID + ":")
}

// CheckpointKey returns the key of the checkpoint of run runID taken at
// iteration iter. Keys of one run sort by iteration.
func CheckpointKey(runID string, iter int64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", checkpointPrefix, runID, iter))
}

// ParseCheckpointKey is the inverse of CheckpointKey.
func ParseCheckpointKey(key []byte) (runID string, iter int64, err error) {
	s := string(key)
	if !strings.HasPrefix(s, checkpointPrefix) {
		return "", 0, errors.Errorf("invalid checkpoint key %q", s)
	}

	s = s[len(checkpointPrefix):]
	sep := strings.LastIndexByte(s, ':')
	if sep < 0 {
		return "", 0, errors.Errorf("invalid checkpoint key %q", key)
	}

	iter, err = strconv.ParseInt(s[sep+1:], 10, 64)
	if err != nil {
		return "", 0, errors.Wrapf(err, "invalid checkpoint key %q", key)
	}

	return s[:sep], iter, nil
}

// SampleKey returns the key of entry idx of the named collection.
func SampleKey(kind string, idx int) []byte {
	return []byte(fmt.Sprintf("%s:%020d", kind, idx))
}

// SamplePrefix returns the common prefix of all keys of the named collection.
func SamplePrefix(kind string) []byte {
	return []byte(kind + ":")
}

// EncodeFloats encodes values as little-endian IEEE 754 doubles.
func EncodeFloats(values []float64) []byte {
	buf := make([]byte, 8*len(values))
	for i, x := range values {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(x))
	}

	return buf
}

// DecodeFloats is the inverse of EncodeFloats.
func DecodeFloats(buf []byte) ([]float64, error) {
	if len(buf)%8 != 0 {
		return nil, errors.Errorf("invalid encoded length %d", len(buf))
	}

	values := make([]float64, len(buf)/8)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}

	return values, nil
}
