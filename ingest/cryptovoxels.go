package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"cyberspace/wire"
	"cyberspace/world"
)

// cryptoVoxelsParcelPrefix is the stable-identifier convention used to find
// an already-ingested parcel object again on a later sync: the object's
// Content field always starts with this prefix followed by the parcel id.
const cryptoVoxelsParcelPrefix = "CryptoVoxels Parcel #"

// cryptoVoxelsParcel mirrors the handful of fields this adapter needs out
// of https://www.cryptovoxels.com/grid/parcels; the upstream payload carries
// more fields, which are read and discarded.
type cryptoVoxelsParcel struct {
	ID            int         `json:"id"`
	Coordinates   [][2]float64 `json:"coordinates"`
	MaxBuildHeight float64    `json:"max_build_height"`
}

// CryptoVoxelsAdapter ingests the public CryptoVoxels parcel grid as
// generic world objects, one per parcel, keyed by parcel id.
type CryptoVoxelsAdapter struct {
	client *http.Client
	url    string
}

func NewCryptoVoxelsAdapter() *CryptoVoxelsAdapter {
	return &CryptoVoxelsAdapter{
		client: &http.Client{},
		url:    "https://www.cryptovoxels.com/grid/parcels",
	}
}

func (a *CryptoVoxelsAdapter) Name() string { return "cryptovoxels" }

func (a *CryptoVoxelsAdapter) Sync(ctx context.Context, w *world.World) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch parcels: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch parcels: unexpected status %d", resp.StatusCode)
	}

	var parcels []cryptoVoxelsParcel
	if err := json.NewDecoder(resp.Body).Decode(&parcels); err != nil {
		return fmt.Errorf("decode parcels: %w", err)
	}

	existing := existingByContentID(w, cryptoVoxelsParcelPrefix)

	for _, p := range parcels {
		content := fmt.Sprintf("%s%d", cryptoVoxelsParcelPrefix, p.ID)
		transform := footprintTransform(p.Coordinates, p.MaxBuildHeight)

		if uid, ok := existing[p.ID]; ok {
			patch := world.ObjectPatch{Transform: &transform, Content: &content}
			if err := w.ApplyObjectUpdate(uid, patch); err != nil {
				continue
			}
			continue
		}

		ob := world.Object{
			Type:      world.ObjectGeneric,
			Transform: transform,
			Content:   content,
			Lifecycle: world.JustCreated,
		}
		if _, err := w.ApplyObjectCreate(ob, world.InvalidUID); err != nil {
			continue
		}
	}
	return nil
}

// existingByContentID scans every object already in the world for one whose
// Content starts with prefix, returning a map from the trailing numeric id
// to that object's uid.
func existingByContentID(w *world.World, prefix string) map[int]world.UID {
	out := make(map[int]world.UID)
	for _, ob := range w.AllObjects() {
		if !strings.HasPrefix(ob.Content, prefix) {
			continue
		}
		idStr := strings.TrimPrefix(ob.Content, prefix)
		id, err := strconv.Atoi(idStr)
		if err != nil {
			continue
		}
		out[id] = ob.UID
	}
	return out
}

// footprintTransform places the object at the centroid of its footprint
// polygon, scaled to the polygon's bounding box and the parcel's configured
// build height.
func footprintTransform(coords [][2]float64, height float64) world.Transform {
	if len(coords) == 0 {
		return world.Transform{Scale: wire.Vec3F32{X: 1, Y: 1, Z: 1}}
	}
	var sumX, sumY float64
	minX, minY := coords[0][0], coords[0][1]
	maxX, maxY := coords[0][0], coords[0][1]
	for _, c := range coords {
		sumX += c[0]
		sumY += c[1]
		if c[0] < minX {
			minX = c[0]
		}
		if c[0] > maxX {
			maxX = c[0]
		}
		if c[1] < minY {
			minY = c[1]
		}
		if c[1] > maxY {
			maxY = c[1]
		}
	}
	n := float64(len(coords))
	return world.Transform{
		Pos:   wire.Vec3F64{X: sumX / n, Y: sumY / n, Z: 0},
		Scale: wire.Vec3F32{X: float32(maxX - minX), Y: float32(maxY - minY), Z: float32(height)},
	}
}
