package sim

import (
	"math"
	"math/rand/v2"
)

// Point is a position in arena coordinates
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned obstacle
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Contains reports whether (x,y) lies inside the rect grown by buffer
func (r Rect) Contains(x, y, buffer float64) bool {
	return x > r.X-buffer && x < r.X+r.W+buffer && y > r.Y-buffer && y < r.Y+r.H+buffer
}

// Arena is the static map geometry of a match
type Arena struct {
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Obstacles   []Rect  `json:"obstacles"`
	SpawnPoints []Point `json:"-"`
}

// DefaultArena returns the city-1 layout
func DefaultArena() Arena {
	return Arena{
		Width:  1600,
		Height: 900,
		Obstacles: []Rect{
			{X: 280, Y: 120, W: 200, H: 120},
			{X: 900, Y: 80, W: 300, H: 100},
			{X: 520, Y: 380, W: 160, H: 260},
			{X: 1200, Y: 300, W: 200, H: 200},
			{X: 100, Y: 600, W: 220, H: 140},
		},
		SpawnPoints: []Point{
			{X: 80, Y: 80}, {X: 1520, Y: 80}, {X: 80, Y: 820}, {X: 1520, Y: 820}, {X: 800, Y: 450},
		},
	}
}

// CollidesWithMap is a point-in-rect test against every obstacle
func (a Arena) CollidesWithMap(x, y, buffer float64) bool {
	for _, r := range a.Obstacles {
		if r.Contains(x, y, buffer) {
			return true
		}
	}
	return false
}

// InsideObstacle reports whether a point is strictly inside an obstacle
func (a Arena) InsideObstacle(x, y float64) bool {
	return a.CollidesWithMap(x, y, 0)
}

// Clamp keeps a player position inside the movement margin
func (a Arena) Clamp(x, y float64) (float64, float64) {
	return Clamp(x, MoveMargin, a.Width-MoveMargin), Clamp(y, MoveMargin, a.Height-MoveMargin)
}

// OutOfBounds reports whether a point is more than margin outside the arena
func (a Arena) OutOfBounds(x, y, margin float64) bool {
	return x < -margin || y < -margin || x > a.Width+margin || y > a.Height+margin
}

// FindSpawnPoint picks a shuffled spawn point clear of obstacles, then falls
// back to random positions, then to (100,100).
func (a Arena) FindSpawnPoint(rng *rand.Rand) Point {
	order := rng.Perm(len(a.SpawnPoints))
	for _, i := range order {
		s := a.SpawnPoints[i]
		if !a.CollidesWithMap(s.X, s.Y, SpawnBuffer) {
			return s
		}
	}
	for tries := 0; tries < 50; tries++ {
		x := float64(randInt(rng, 80, int(a.Width)-80))
		y := float64(randInt(rng, 80, int(a.Height)-80))
		if !a.CollidesWithMap(x, y, SpawnBuffer) {
			return Point{X: x, Y: y}
		}
	}
	return Point{X: 100, Y: 100}
}

// randInt returns an int in [min, max]
func randInt(rng *rand.Rand, min, max int) int {
	if max <= min {
		return min
	}
	return min + rng.IntN(max-min+1)
}

// Clamp restricts v to [min, max]
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Distance returns the distance between two points
func Distance(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x2-x1, y2-y1)
}

// NormalizeAngle wraps angle to [-PI, PI]
func NormalizeAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
