package replay

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// Kind identifies one of the three aligned collections of a Dataset.
type Kind uint8

const (
	Features Kind = iota // X
	Labels               // Y
	Aux                  // Z
)

var kindNames = [...]string{"x", "y", "z"}

// Kinds lists every Kind in order.
var Kinds = []Kind{Features, Labels, Aux}

func (k Kind) String() string {
	return kindNames[k]
}

// Sink persists extracted examples. Values of kind Features for game idx
// are the concatenated state planes of every move in the game.
type Sink interface {
	Put(kind Kind, idx int, values []float64) error
}

// Write stores every game of the dataset in the sink.
func Write(sink Sink, ds *Dataset) error {
	for i := 0; i < ds.Len(); i++ {
		var x []float64
		for _, planes := range ds.X[i] {
			x = append(x, planes...)
		}

		y := make([]float64, len(ds.Y[i]))
		for j, label := range ds.Y[i] {
			y[j] = float64(label)
		}

		for _, kind := range Kinds {
			values := x
			switch kind {
			case Labels:
				values = y
			case Aux:
				values = ds.Z[i]
			}

			if err := sink.Put(kind, i, values); err != nil {
				return errors.Wrapf(err, "error writing %v of game %d", kind, i)
			}
		}
	}

	return nil
}

// FileSink collects examples in memory and writes each Kind to a gob file
// named data_<kind>.gob in its directory when closed.
type FileSink struct {
	dir string

	mx   sync.Mutex
	data [len(kindNames)][][]float64
}

// NewFileSink returns a FileSink writing into dir, which is created if it
// does not exist.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	return &FileSink{dir: dir}, nil
}

// Put implements Sink.
func (s *FileSink) Put(kind Kind, idx int, values []float64) error {
	if int(kind) >= len(kindNames) || idx < 0 {
		return errors.Errorf("invalid entry %v/%d", kind, idx)
	}

	s.mx.Lock()
	defer s.mx.Unlock()
	rows := s.data[kind]
	for len(rows) <= idx {
		rows = append(rows, nil)
	}
	rows[idx] = append([]float64(nil), values...)
	s.data[kind] = rows
	return nil
}

// Path returns the file that holds the given Kind.
func (s *FileSink) Path(kind Kind) string {
	return filepath.Join(s.dir, "data_"+kind.String()+".gob")
}

// Close implements io.Closer.
func (s *FileSink) Close() error {
	s.mx.Lock()
	defer s.mx.Unlock()
	for _, kind := range Kinds {
		if err := writeGob(s.Path(kind), s.data[kind]); err != nil {
			return err
		}
	}

	return nil
}

// ReadFile loads a collection written by FileSink.
func ReadFile(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows [][]float64
	if err := gob.NewDecoder(f).Decode(&rows); err != nil {
		return nil, errors.Wrapf(err, "error decoding %s", path)
	}

	return rows, nil
}

func writeGob(path string, rows [][]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := gob.NewEncoder(f).Encode(rows); err != nil {
		f.Close()
		return errors.Wrapf(err, "error encoding %s", path)
	}

	return f.Close()
}
