package game

import (
	"math"
	"time"
)

// Movement tuning.
const (
	MoveSpeed      = 5.0 // units per second
	RotationEase   = 0.1
	headingEpsilon = 1e-9
)

// Tick advances the player by dt using the current controls. The player
// moves at MoveSpeed along the normalized input direction and turns a
// fraction RotationEase of the way toward the travel heading per tick.
// Nothing is dispatched while the player stays idle.
func (s *Store) Tick(dt time.Duration) {
	s.dispatch(ActionTick, true, func(st *State) bool {
		var dx, dz float64
		c := st.Controls
		if c.Forward {
			dz--
		}
		if c.Backward {
			dz++
		}
		if c.Left {
			dx--
		}
		if c.Right {
			dx++
		}

		length := math.Hypot(dx, dz)
		if length < headingEpsilon {
			if !st.Player.IsMoving {
				return false
			}
			st.Player.IsMoving = false
			return true
		}

		dx, dz = dx/length, dz/length
		step := MoveSpeed * dt.Seconds()
		st.Player.Position.X += dx * step
		st.Player.Position.Z += dz * step

		target := math.Atan2(dx, dz)
		st.Player.Rotation.Y = lerp(st.Player.Rotation.Y, target, RotationEase)
		st.Player.IsMoving = true
		return true
	})
}

func lerp(from, to, t float64) float64 {
	return from + (to-from)*t
}
