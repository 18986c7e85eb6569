package timer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"

	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/shared/types"
)

// persistedItem is the on-disk shape. Running state and the start
// instant never persist: a reload always yields stopped items.
type persistedItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Mode     types.TimerMode `json:"mode"`
	TargetMs int64           `json:"targetMs"`
	ValueMs  int64           `json:"valueMs"`
}

// Store persists the timer list as JSON. Writes go through a temp file
// rename so a crash mid-write cannot corrupt the record.
type Store struct {
	path string
}

// NewStore creates a store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the persisted items. A missing file is an empty list.
func (s *Store) Load() ([]types.TimerItem, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read timers: %w", err)
	}

	var persisted []persistedItem
	if err := sonic.Unmarshal(data, &persisted); err != nil {
		return nil, fmt.Errorf("decode timers: %w", err)
	}

	items := make([]types.TimerItem, 0, len(persisted))
	for _, p := range persisted {
		items = append(items, types.TimerItem{
			ID:       p.ID,
			Name:     p.Name,
			Mode:     p.Mode,
			TargetMs: p.TargetMs,
			ValueMs:  p.ValueMs,
		})
	}
	return items, nil
}

// Save writes the item list, stripping runtime state.
func (s *Store) Save(items []types.TimerItem) error {
	persisted := make([]persistedItem, 0, len(items))
	for _, item := range items {
		persisted = append(persisted, persistedItem{
			ID:       item.ID,
			Name:     item.Name,
			Mode:     item.Mode,
			TargetMs: item.TargetMs,
			ValueMs:  item.ValueMs,
		})
	}

	data, err := sonic.Marshal(persisted)
	if err != nil {
		return fmt.Errorf("encode timers: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write timers: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace timers: %w", err)
	}
	return nil
}
