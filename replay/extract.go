package replay

import (
	"context"
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/timpalpant/go-a3c/generals"
)

const (
	reportInterval = 10000

	// maxTurnGap bounds how far a move may be recorded past the current
	// turn of the simulated game.
	maxTurnGap = 2000
)

// Filter selects which replays are extracted.
type Filter struct {
	MinStars   int // Every player must have at least this rating.
	NumPlayers int // The game must have exactly this many players.
}

// Accept reports whether the replay passes the filter. Players without a
// recorded rating are treated as having zero stars.
func (f Filter) Accept(r *Replay) bool {
	if r.NumPlayers() != f.NumPlayers {
		return false
	}

	for p := 0; p < r.NumPlayers(); p++ {
		stars := 0
		if p < len(r.Stars) {
			stars = r.Stars[p]
		}

		if stars < f.MinStars {
			return false
		}
	}

	return true
}

// Game holds the examples extracted from one replay, aligned by move.
type Game struct {
	X [][]float64 // State planes seen by the moving player.
	Y []int       // Action index of the move.
	Z []float64   // 1 if the moving player won the game, else 0.
}

// Len returns the number of examples.
func (g *Game) Len() int {
	return len(g.Y)
}

// ExtractGame re-simulates the replay and returns one example per
// recorded move. Moves that cannot be applied to the simulated game are
// skipped. A replay that does not pass the filter yields an empty Game.
func ExtractGame(r *Replay, filter Filter) (*Game, error) {
	if !filter.Accept(r) {
		return &Game{}, nil
	}

	g, err := generals.NewGame(r.MapSpec(), generals.DefaultRules())
	if err != nil {
		return nil, errors.Wrapf(err, "invalid map in replay %s", r.ID)
	}

	var movers []int
	result := &Game{}
	for _, m := range r.Moves {
		if m.Turn-g.Turn() > maxTurnGap {
			return nil, errors.Errorf("replay %s: move at turn %d is more than %d turns past turn %d",
				r.ID, m.Turn, maxTurnGap, g.Turn())
		}
		for g.Turn() < m.Turn {
			g.EndTurn()
		}

		if m.Player < 0 || m.Player >= g.NumPlayers() {
			return nil, errors.Errorf("replay %s: move by unknown player %d", r.ID, m.Player)
		}

		d, ok := g.DirectionTo(m.Start, m.End)
		if !ok || !g.CanMove(m.Player, m.Start, m.End) {
			glog.V(3).Infof("replay %s: skipping move %+v at turn %d", r.ID, m, g.Turn())
			continue
		}

		s := g.Observe(m.Player)
		result.X = append(result.X, s.Data)
		result.Y = append(result.Y, g.ActionIndex(m.Start, d))
		movers = append(movers, m.Player)

		if err := g.Move(m.Player, m.Start, m.End, m.Half); err != nil {
			return nil, err
		}
	}

	winner := g.Winner()
	if winner < 0 {
		winner = g.Leader()
	}

	result.Z = make([]float64, len(movers))
	for i, p := range movers {
		if p == winner {
			result.Z[i] = 1
		}
	}

	return result, nil
}

// ExtractFile loads and extracts the replay at path. Files that cannot be
// read or parsed are logged and yield an empty Game.
func ExtractFile(path string, filter Filter) *Game {
	r, err := Load(path)
	if err != nil {
		glog.Warningf("Skipping %s: %v", path, err)
		return &Game{}
	}

	g, err := ExtractGame(r, filter)
	if err != nil {
		glog.Warningf("Skipping %s: %v", path, err)
		return &Game{}
	}

	return g
}

// Dataset is the three aligned collections extracted from many replays.
// Entry i of X, Y and Z all come from the same game.
type Dataset struct {
	X [][][]float64
	Y [][]int
	Z [][]float64
}

// Len returns the number of games.
func (ds *Dataset) Len() int {
	return len(ds.Y)
}

// Add appends the game to the dataset if it is not empty.
func (ds *Dataset) Add(g *Game) {
	if g.Len() == 0 {
		return
	}

	ds.X = append(ds.X, g.X)
	ds.Y = append(ds.Y, g.Y)
	ds.Z = append(ds.Z, g.Z)
}

// Extract extracts every replay in paths using the given number of
// parallel workers. Games are kept in the order of paths, and those that
// are empty are dropped.
func Extract(ctx context.Context, paths []string, filter Filter, threads int) (*Dataset, error) {
	if threads <= 0 {
		threads = 1
	}

	games := make([]*Game, len(paths))
	var wg sync.WaitGroup
	sem := make(chan struct{}, threads)
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, err
		}

		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, path string) {
			defer func() {
				<-sem
				wg.Done()
			}()

			games[i] = ExtractFile(path, filter)
		}(i, path)

		if (i+1)%reportInterval == 0 {
			glog.Infof("Processing replay %d/%d", i+1, len(paths))
		}
	}
	wg.Wait()

	ds := &Dataset{}
	for _, g := range games {
		ds.Add(g)
	}

	glog.Infof("Extracted %d games from %d replays", ds.Len(), len(paths))
	return ds, nil
}
