package store

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"cyberspace/wire"
	"cyberspace/world"
)

// yamlParcel is the optional bootstrap-world override shape: a hand-authored
// alternative to the generated "town square" layout, in the same loose,
// human-editable style as the teacher's YAML scene configuration.
type yamlParcel struct {
	ID           uint64      `yaml:"id"`
	OwnerUserID  uint64      `yaml:"owner_user_id"`
	AllWriteable bool        `yaml:"all_writeable"`
	Verts        [4][2]float64 `yaml:"verts"`
	ZBoundsMin   float64     `yaml:"zbounds_min"`
	ZBoundsMax   float64     `yaml:"zbounds_max"`
	Description  string      `yaml:"description"`
}

type bootstrapWorldFile struct {
	Parcels []yamlParcel `yaml:"parcels"`
}

// LoadBootstrapWorld returns the bootstrap parcel set for a fresh world: the
// override file at <stateDir>/bootstrap_world.yaml if present, otherwise the
// generated deterministic "town square" layout.
func LoadBootstrapWorld(stateDir string) ([]world.Parcel, error) {
	path := filepath.Join(stateDir, "bootstrap_world.yaml")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return GenerateBootstrapParcels(), nil
		}
		return nil, err
	}

	var file bootstrapWorldFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, err
	}

	now := time.Now()
	parcels := make([]world.Parcel, 0, len(file.Parcels))
	for _, yp := range file.Parcels {
		var verts [4]wire.Vec2F64
		for i, v := range yp.Verts {
			verts[i] = wire.Vec2F64{X: v[0], Y: v[1]}
		}
		parcels = append(parcels, world.Parcel{
			ID:            world.ParcelID(yp.ID),
			OwnerUserID:   world.UserID(yp.OwnerUserID),
			AdminUserIDs:  []world.UserID{world.UserID(yp.OwnerUserID)},
			WriterUserIDs: []world.UserID{world.UserID(yp.OwnerUserID)},
			AllWriteable:  yp.AllWriteable,
			Verts:         verts,
			ZBoundsMin:    yp.ZBoundsMin,
			ZBoundsMax:    yp.ZBoundsMax,
			CreatedTime:   now,
			Description:   yp.Description,
			Lifecycle:     world.Alive,
		})
	}
	return parcels, nil
}
