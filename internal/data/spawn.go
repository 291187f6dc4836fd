package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/l1jgo/entityindex/internal/spatial"
)

// SpawnEntry defines where and how many entities of one template to create.
// Entities are scattered over [X, X+RandomX] x [Y, Y+RandomY].
type SpawnEntry struct {
	Name     string  `yaml:"name"`
	Kind     string  `yaml:"kind"` // "unit" or "resource"
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	Width    int     `yaml:"width"`
	Height   int     `yaml:"height"`
	Count    int     `yaml:"count"`
	RandomX  int     `yaml:"randomx"`
	RandomY  int     `yaml:"randomy"`
	Solid    *bool   `yaml:"solid,omitempty"`    // units only, default true
	Behavior string  `yaml:"behavior,omitempty"` // Lua function, units only
	Respawn  bool    `yaml:"respawn"`            // resources only
}

// EntityKind maps the YAML kind to spatial.Kind.
func (s *SpawnEntry) EntityKind() spatial.Kind {
	if s.Kind == "resource" {
		return spatial.KindResource
	}
	return spatial.KindUnit
}

// IsSolid reports whether spawned entities occupy the grid.
func (s *SpawnEntry) IsSolid() bool {
	return s.EntityKind() == spatial.KindResource || s.Solid == nil || *s.Solid
}

// Size returns the footprint of spawned entities.
func (s *SpawnEntry) Size() spatial.Size {
	return spatial.Size{W: s.Width, H: s.Height}
}

type spawnListFile struct {
	Spawns []SpawnEntry `yaml:"spawns"`
}

// LoadSpawnList loads spawn entries from a YAML file.
func LoadSpawnList(path string) ([]SpawnEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spawn_list: %w", err)
	}
	return ParseSpawnList(raw)
}

// ParseSpawnList decodes and checks a YAML spawn list. Width, height and
// count default to 1.
func ParseSpawnList(raw []byte) ([]SpawnEntry, error) {
	var f spawnListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse spawn_list: %w", err)
	}
	for i := range f.Spawns {
		s := &f.Spawns[i]
		if s.Width == 0 {
			s.Width = 1
		}
		if s.Height == 0 {
			s.Height = 1
		}
		if s.Count == 0 {
			s.Count = 1
		}
		switch {
		case s.Kind != "unit" && s.Kind != "resource":
			return nil, fmt.Errorf("spawn %d (%s): unknown kind %q", i, s.Name, s.Kind)
		case s.Width < 0 || s.Height < 0 || s.Count < 0 || s.RandomX < 0 || s.RandomY < 0:
			return nil, fmt.Errorf("spawn %d (%s): negative size, count or spread", i, s.Name)
		case s.Kind == "resource" && s.Behavior != "":
			return nil, fmt.Errorf("spawn %d (%s): resources cannot have a behavior", i, s.Name)
		}
	}
	return f.Spawns, nil
}
