package generals

import (
	"github.com/timpalpant/go-a3c"
)

// State planes produced by Observe.
const (
	ArmyPlane = a3c.ArmyChannel // Armies on tiles owned by the observer.
	OwnPlane  = iota
	EnemyArmyPlane
	NeutralArmyPlane
	MountainPlane
	CityPlane
	GeneralPlane
	NumPlanes
)

// Observe returns the game state from the point of view of the player.
func (g *Game) Observe(player int) *a3c.State {
	s := a3c.NewState(NumPlanes, g.height, g.width)
	army := s.Plane(ArmyPlane)
	own := s.Plane(OwnPlane)
	enemy := s.Plane(EnemyArmyPlane)
	neutral := s.Plane(NeutralArmyPlane)
	mountain := s.Plane(MountainPlane)
	city := s.Plane(CityPlane)
	general := s.Plane(GeneralPlane)

	for i, t := range g.tiles {
		switch {
		case t.Owner == player:
			army[i] = float64(t.Army)
			own[i] = 1
		case t.Owner == Neutral:
			neutral[i] = float64(t.Army)
		default:
			enemy[i] = float64(t.Army)
		}

		switch t.Type {
		case Mountain:
			mountain[i] = 1
		case City:
			city[i] = 1
		case General:
			general[i] = 1
		}
	}

	return s
}
