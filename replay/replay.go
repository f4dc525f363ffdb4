// Package replay extracts supervised training examples from recorded
// games.
//
// Each replay is re-simulated move by move. Every recorded move yields one
// example: the state planes seen by the moving player (features), the
// action index of the move (label), and whether that player went on to win
// the game (aux).
package replay

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/timpalpant/go-a3c/generals"
)

// Ext is the file extension of replay files.
const Ext = ".gioreplay"

// Replay is a recorded game.
type Replay struct {
	ID         string   `json:"id"`
	MapWidth   int      `json:"mapWidth"`
	MapHeight  int      `json:"mapHeight"`
	Usernames  []string `json:"usernames"`
	Stars      []int    `json:"stars"`
	Cities     []int    `json:"cities"`
	CityArmies []int    `json:"cityArmies"`
	Generals   []int    `json:"generals"`
	Mountains  []int    `json:"mountains"`
	Moves      []Move   `json:"moves"`
}

// Move is one recorded player move. It is serialized as the array
// [player, start, end, isHalf, turn].
type Move struct {
	Player int
	Start  int
	End    int
	Half   bool
	Turn   int
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Move) UnmarshalJSON(buf []byte) error {
	var fields []interface{}
	if err := json.Unmarshal(buf, &fields); err != nil {
		return err
	}

	if len(fields) != 5 {
		return errors.Errorf("move has %d fields, expected 5", len(fields))
	}

	ints := make([]int, len(fields))
	for i, f := range fields {
		switch v := f.(type) {
		case float64:
			ints[i] = int(v)
		case bool:
			if v {
				ints[i] = 1
			}
		default:
			return errors.Errorf("invalid move field %d: %v", i, f)
		}
	}

	*m = Move{
		Player: ints[0],
		Start:  ints[1],
		End:    ints[2],
		Half:   ints[3] != 0,
		Turn:   ints[4],
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (m Move) MarshalJSON() ([]byte, error) {
	half := 0
	if m.Half {
		half = 1
	}

	return json.Marshal([]int{m.Player, m.Start, m.End, half, m.Turn})
}

// NumPlayers returns the number of players in the game.
func (r *Replay) NumPlayers() int {
	return len(r.Generals)
}

// MapSpec returns the initial layout of the replay's map.
func (r *Replay) MapSpec() generals.MapSpec {
	return generals.MapSpec{
		Height:     r.MapHeight,
		Width:      r.MapWidth,
		Generals:   r.Generals,
		Mountains:  r.Mountains,
		Cities:     r.Cities,
		CityArmies: r.CityArmies,
	}
}

// Load reads and parses the replay file at path.
func Load(path string) (*Replay, error) {
	buf, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var r Replay
	if err := json.Unmarshal(buf, &r); err != nil {
		return nil, errors.Wrapf(err, "error parsing replay %s", path)
	}

	return &r, nil
}

// ListReplays returns the paths of all regular replay files in dir,
// in lexical order.
func ListReplays(dir string) ([]string, error) {
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, fi := range entries {
		if fi.Mode()&os.ModeType != 0 || !strings.HasSuffix(fi.Name(), Ext) {
			continue
		}

		paths = append(paths, filepath.Join(dir, fi.Name()))
	}

	sort.Strings(paths)
	return paths, nil
}
