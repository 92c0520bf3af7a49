package store

import (
	"math/rand"
	"time"

	"cyberspace/wire"
	"cyberspace/world"
)

// parcelCoords is the base "town square" block layout, ported verbatim from
// the original server's bootstrap table.
var parcelCoords = [10][4][2]float64{
	{{5, 50}, {25, 50}, {25, 70}, {5, 70}},
	{{25, 50}, {45, 50}, {45, 70}, {25, 70}},
	{{45, 50}, {45, 50}, {65, 70}, {45, 70}},
	{{5, 70}, {25, 70}, {25, 90}, {5, 90}},
	{{25, 70}, {45, 70}, {45, 90}, {25, 90}},
	{{45, 70}, {65, 70}, {65, 90}, {45, 90}},
	{{45, 90}, {65, 90}, {65, 115}, {45, 115}},
	{{5, 115}, {25, 115}, {25, 135}, {5, 135}},
	{{25, 115}, {45, 115}, {45, 135}, {25, 135}},
	{{45, 115}, {65, 115}, {65, 135}, {45, 135}},
}

// matrix2d is a 2x2 linear transform (reflection/rotation) applied to the
// base parcel table to tile it into 8 symmetric copies around the origin.
type matrix2d struct{ a, b, c, d float64 }

func (m matrix2d) apply(x, y float64) (float64, float64) {
	return m.a*x + m.b*y, m.c*x + m.d*y
}

var bootstrapTransforms = []matrix2d{
	{1, 0, 0, 1},   // identity
	{-1, 0, 0, 1},  // mirror in y axis (x' = -x)
	{0, 1, 1, 0},   // mirror in x=y line (x' = y, y' = x)
	{0, 1, -1, 0},  // rotate right 90 (x' = y, y' = -x)
	{1, 0, 0, -1},  // mirror in x axis (y' = -y)
	{-1, 0, 0, -1}, // rotate 180 (x' = -x, y' = -y)
	{0, -1, -1, 0}, // mirror in x=-y line (x' = -y, y' = -x)
	{0, -1, 1, 0},  // rotate left 90 (x' = -y, y' = x)
}

const bootstrapZMin, bootstrapZMax = -1.0, 10.0

// GenerateBootstrapParcels reproduces the deterministic "town square" world
// generated when no snapshot is present: the 8 symmetric copies of the base
// block via bootstrapTransforms, plus an 8x8 grid (minus its central 4x4) of randomly
// perforated 3x3 blocks seeded from a fixed PRNG seed, then a handful of
// fixed-owner permission assignments.
func GenerateBootstrapParcels() []world.Parcel {
	var parcels []world.Parcel
	nextID := uint64(10)
	now := time.Now()

	for _, m := range bootstrapTransforms {
		for i := 0; i < 10; i++ {
			id := nextID
			nextID++
			var verts [4]wire.Vec2F64
			for v := 0; v < 4; v++ {
				x, y := m.apply(parcelCoords[i][v][0], parcelCoords[i][v][1])
				verts[v] = wire.Vec2F64{X: x, Y: y}
			}
			parcels = append(parcels, world.Parcel{
				ID:            world.ParcelID(id),
				OwnerUserID:   0,
				AdminUserIDs:  []world.UserID{0},
				WriterUserIDs: []world.UserID{0},
				AllWriteable:  false,
				Verts:         verts,
				ZBoundsMin:  bootstrapZMin,
				ZBoundsMax:  bootstrapZMax,
				CreatedTime: now,
				Lifecycle:   world.Alive,
			})
		}
	}

	// PCG32 seed 1 in the original; math/rand with a fixed seed reproduces
	// the same "deterministic initial world" property (a fixed, reproducible
	// layout), though not the original generator's exact bit sequence.
	rng := rand.New(rand.NewSource(1))
	const d = 4
	for x := -d; x < d; x++ {
		for y := -d; y < d; y++ {
			if x >= -2 && x <= 1 && y >= -2 && y <= 1 {
				continue // reserved for the town square blocks above
			}
			parcels = append(parcels, makeBlock(float64(5+x*70), float64(5+y*70), rng, &nextID, now)...)
		}
	}

	assignParcelOwner(parcels, 10, 1)
	assignParcelOwner(parcels, 11, 2)
	assignParcelOwner(parcels, 12, 3)
	assignParcelOwner(parcels, 32, 4)
	assignParcelOwner(parcels, 31, 5)
	assignParcelOwner(parcels, 40, 8)
	assignParcelOwner(parcels, 30, 9)
	makeAllWriteable(parcels, 20)

	return parcels
}

// makeBlock lays out a 3x3 grid of 20x20 parcels from botleft, randomly
// omitting one of the 4 edge parcels (never the corners or the center).
func makeBlock(botX, botY float64, rng *rand.Rand, nextID *uint64, now time.Time) []world.Parcel {
	e := int(rng.Float64() * 3.9999)
	var out []world.Parcel
	for xi := 0; xi < 3; xi++ {
		for yi := 0; yi < 3; yi++ {
			switch {
			case xi == 1 && yi == 1:
				continue // center left empty
			case xi == 1 && yi == 0 && e == 0:
				continue
			case xi == 2 && yi == 1 && e == 1:
				continue
			case xi == 1 && yi == 2 && e == 2:
				continue
			case xi == 0 && yi == 1 && e == 3:
				continue
			}
			id := *nextID
			*nextID++
			x0, y0 := botX+float64(xi)*20, botY+float64(yi)*20
			out = append(out, world.Parcel{
				ID:            world.ParcelID(id),
				OwnerUserID:   0,
				AdminUserIDs:  []world.UserID{0},
				WriterUserIDs: []world.UserID{0},
				Verts: [4]wire.Vec2F64{
					{X: x0, Y: y0},
					{X: x0 + 20, Y: y0},
					{X: x0 + 20, Y: y0 + 20},
					{X: x0, Y: y0 + 20},
				},
				ZBoundsMin:  bootstrapZMin,
				ZBoundsMax:  bootstrapZMax,
				CreatedTime: now,
				Lifecycle:   world.Alive,
			})
		}
	}
	return out
}

func assignParcelOwner(parcels []world.Parcel, id uint64, owner uint64) {
	for i := range parcels {
		if uint64(parcels[i].ID) == id {
			parcels[i].OwnerUserID = world.UserID(owner)
			parcels[i].AdminUserIDs = []world.UserID{world.UserID(owner)}
			parcels[i].WriterUserIDs = []world.UserID{world.UserID(owner)}
			return
		}
	}
}

func makeAllWriteable(parcels []world.Parcel, id uint64) {
	for i := range parcels {
		if uint64(parcels[i].ID) == id {
			parcels[i].AllWriteable = true
			return
		}
	}
}
