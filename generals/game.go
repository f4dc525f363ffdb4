// Package generals implements a territory-control strategy game in the
// style of generals.io, used as a reference environment for training and
// to replay recorded games.
package generals

import (
	"fmt"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/timpalpant/go-a3c"
)

// Neutral is the owner of unclaimed tiles.
const Neutral = -1

type TileType uint8

const (
	Plain TileType = iota
	Mountain
	City
	General
)

var tileTypeStr = [...]string{
	"plain",
	"mountain",
	"city",
	"general",
}

func (t TileType) String() string {
	return tileTypeStr[t]
}

type Tile struct {
	Owner int
	Army  int
	Type  TileType
}

// Direction is one of the 8 move directions, ordered clockwise from north.
type Direction int

const (
	North Direction = iota
	NorthEast
	East
	SouthEast
	South
	SouthWest
	West
	NorthWest
)

var (
	dRow = [a3c.NumDirections]int{-1, -1, 0, 1, 1, 1, 0, -1}
	dCol = [a3c.NumDirections]int{0, 1, 1, 1, 0, -1, -1, -1}
)

// Rules control army growth.
type Rules struct {
	// Generals and owned cities gain one army every GeneralGrowth turns.
	GeneralGrowth int
	// Every owned tile gains one army every LandGrowth turns.
	LandGrowth int
}

// DefaultRules match the turn counting of recorded replays, in which each
// player move advances the turn counter by one half-turn.
func DefaultRules() Rules {
	return Rules{GeneralGrowth: 2, LandGrowth: 50}
}

// Game is the full state of one game.
type Game struct {
	rules    Rules
	height   int
	width    int
	tiles    []Tile
	generals []int // Tile index of each player's general.
	alive    []bool
	turn     int
}

// MapSpec describes the initial layout of a map.
type MapSpec struct {
	Height     int
	Width      int
	Generals   []int // One tile index per player.
	Mountains  []int
	Cities     []int
	CityArmies []int // Initial neutral army of each city.
}

// NewGame creates a game from the given map layout.
func NewGame(spec MapSpec, rules Rules) (*Game, error) {
	if spec.Height <= 0 || spec.Width <= 0 {
		return nil, errors.Errorf("invalid map size %dx%d", spec.Height, spec.Width)
	}

	if len(spec.Generals) < 2 {
		return nil, errors.Errorf("game requires at least 2 players, got %d", len(spec.Generals))
	}

	if len(spec.CityArmies) != len(spec.Cities) {
		return nil, errors.Errorf("%d cities but %d city armies", len(spec.Cities), len(spec.CityArmies))
	}

	n := spec.Height * spec.Width
	g := &Game{
		rules:    rules,
		height:   spec.Height,
		width:    spec.Width,
		tiles:    make([]Tile, n),
		generals: append([]int(nil), spec.Generals...),
		alive:    make([]bool, len(spec.Generals)),
	}

	for i := range g.tiles {
		g.tiles[i].Owner = Neutral
	}

	inBounds := func(i int) bool { return i >= 0 && i < n }
	for _, i := range spec.Mountains {
		if !inBounds(i) {
			return nil, errors.Errorf("mountain at %d is off the map", i)
		}
		g.tiles[i].Type = Mountain
	}

	for k, i := range spec.Cities {
		if !inBounds(i) {
			return nil, errors.Errorf("city at %d is off the map", i)
		}
		g.tiles[i] = Tile{Owner: Neutral, Army: spec.CityArmies[k], Type: City}
	}

	for p, i := range spec.Generals {
		if !inBounds(i) {
			return nil, errors.Errorf("general of player %d at %d is off the map", p, i)
		}
		g.tiles[i] = Tile{Owner: p, Army: 1, Type: General}
		g.alive[p] = true
	}

	return g, nil
}

// RandomMapSpec generates a random two-player map.
func RandomMapSpec(rng *rand.Rand, height, width, nMountains, nCities int) MapSpec {
	n := height * width
	perm := rng.Perm(n)
	spec := MapSpec{
		Height:   height,
		Width:    width,
		Generals: []int{perm[0], perm[1]},
	}

	rest := perm[2:]
	for i := 0; i < nMountains && len(rest) > 0; i++ {
		spec.Mountains = append(spec.Mountains, rest[0])
		rest = rest[1:]
	}

	for i := 0; i < nCities && len(rest) > 0; i++ {
		spec.Cities = append(spec.Cities, rest[0])
		spec.CityArmies = append(spec.CityArmies, 40+rng.Intn(11))
		rest = rest[1:]
	}

	return spec
}

func (g *Game) Height() int     { return g.height }
func (g *Game) Width() int      { return g.width }
func (g *Game) Turn() int       { return g.turn }
func (g *Game) NumPlayers() int { return len(g.generals) }

// Tile returns the tile at index i.
func (g *Game) Tile(i int) Tile {
	return g.tiles[i]
}

func (g *Game) Alive(player int) bool {
	return g.alive[player]
}

// Neighbor returns the index of the tile adjacent to i in direction d.
func (g *Game) Neighbor(i int, d Direction) (int, bool) {
	r, c := i/g.width+dRow[d], i%g.width+dCol[d]
	if r < 0 || r >= g.height || c < 0 || c >= g.width {
		return -1, false
	}

	return r*g.width + c, true
}

// DirectionTo returns the direction from tile start to the adjacent tile end.
func (g *Game) DirectionTo(start, end int) (Direction, bool) {
	for d := North; d <= NorthWest; d++ {
		if j, ok := g.Neighbor(start, d); ok && j == end {
			return d, true
		}
	}

	return 0, false
}

// CanMove reports whether the player may move from tile start to end.
func (g *Game) CanMove(player, start, end int) bool {
	if start < 0 || start >= len(g.tiles) || end < 0 || end >= len(g.tiles) {
		return false
	}

	if _, ok := g.DirectionTo(start, end); !ok {
		return false
	}

	src := g.tiles[start]
	return g.alive[player] && src.Owner == player && src.Army > 1 && g.tiles[end].Type != Mountain
}

// Move moves armies from tile start to the adjacent tile end. If half is
// true, half of the movable army moves; otherwise all but one.
func (g *Game) Move(player, start, end int, half bool) error {
	if !g.CanMove(player, start, end) {
		return errors.Errorf("illegal move for player %d from %d to %d", player, start, end)
	}

	src := &g.tiles[start]
	moved := src.Army - 1
	if half {
		moved = src.Army / 2
	}
	src.Army -= moved

	dst := &g.tiles[end]
	if dst.Owner == player {
		dst.Army += moved
		return nil
	}

	if moved <= dst.Army {
		dst.Army -= moved
		return nil
	}

	defender := dst.Owner
	dst.Army = moved - dst.Army
	dst.Owner = player
	if dst.Type == General && defender != Neutral {
		g.capture(player, defender)
		dst.Type = City
	}

	return nil
}

// capture transfers all of the defender's tiles to the attacker, halving
// their armies.
func (g *Game) capture(attacker, defender int) {
	for i := range g.tiles {
		t := &g.tiles[i]
		if t.Owner == defender {
			t.Owner = attacker
			t.Army = (t.Army + 1) / 2
		}
	}

	g.alive[defender] = false
}

// EndTurn advances the turn counter and grows armies.
func (g *Game) EndTurn() {
	g.turn++
	growGenerals := g.rules.GeneralGrowth > 0 && g.turn%g.rules.GeneralGrowth == 0
	growLand := g.rules.LandGrowth > 0 && g.turn%g.rules.LandGrowth == 0
	for i := range g.tiles {
		t := &g.tiles[i]
		if t.Owner == Neutral {
			continue
		}

		if growGenerals && (t.Type == General || t.Type == City) {
			t.Army++
		}

		if growLand {
			t.Army++
		}
	}
}

// Winner returns the last player alive, or -1 if the game is not over.
func (g *Game) Winner() int {
	winner := -1
	for p, alive := range g.alive {
		if alive {
			if winner != -1 {
				return -1
			}
			winner = p
		}
	}

	return winner
}

// Leader returns the player holding the most land, breaking ties by army.
func (g *Game) Leader() int {
	land := make([]int, len(g.generals))
	army := make([]int, len(g.generals))
	for _, t := range g.tiles {
		if t.Owner != Neutral {
			land[t.Owner]++
			army[t.Owner] += t.Army
		}
	}

	best := 0
	for p := range land {
		if land[p] > land[best] || (land[p] == land[best] && army[p] > army[best]) {
			best = p
		}
	}

	return best
}

// OwnedTiles returns the number of tiles owned by the player.
func (g *Game) OwnedTiles(player int) int {
	n := 0
	for _, t := range g.tiles {
		if t.Owner == player {
			n++
		}
	}

	return n
}

// PassableTiles returns the number of tiles that are not mountains.
func (g *Game) PassableTiles() int {
	n := 0
	for _, t := range g.tiles {
		if t.Type != Mountain {
			n++
		}
	}

	return n
}

// LegalMoves returns all (start, direction) pairs the player may move,
// encoded as action indices.
func (g *Game) LegalMoves(player int) []int {
	var moves []int
	for i := range g.tiles {
		for d := North; d <= NorthWest; d++ {
			if j, ok := g.Neighbor(i, d); ok && g.CanMove(player, i, j) {
				moves = append(moves, g.ActionIndex(i, d))
			}
		}
	}

	return moves
}

// ActionIndex returns the flattened action index for a move from tile in
// direction d.
func (g *Game) ActionIndex(tile int, d Direction) int {
	return int(d)*g.height*g.width + tile
}

// DecodeAction is the inverse of ActionIndex.
func (g *Game) DecodeAction(action int) (tile int, d Direction) {
	n := g.height * g.width
	return action % n, Direction(action / n)
}

// String implements fmt.Stringer.
func (g *Game) String() string {
	return fmt.Sprintf("Game(%dx%d, turn %d, alive %v)", g.height, g.width, g.turn, g.alive)
}
