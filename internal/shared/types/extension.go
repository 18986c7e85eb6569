package types

// Icon references a glyph for an extension: either ["glyph"] or a
// ["style", "glyph"] pair.
type Icon []string

// ExtensionDescriptor is the identity and presentation metadata for one
// installed extension. Created by the installer or a registry scan,
// mutated only by the visibility toggle and reinstall.
type ExtensionDescriptor struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Version          string `json:"version"`
	Description      string `json:"description,omitempty"`
	Author           string `json:"author,omitempty"`
	Folder           string `json:"folder,omitempty"`
	UIUrl            string `json:"uiUrl,omitempty"`
	TitleBarColor    string `json:"titleBarColor,omitempty"`
	Icon             Icon   `json:"icon,omitempty"`
	VisibleToPlayers bool   `json:"visibleToPlayers"`
}

// HasUI reports whether the extension contributes a sandboxed UI surface.
// Descriptors without one are "singleton" extensions rendered by bespoke
// host code.
func (d ExtensionDescriptor) HasUI() bool {
	return d.UIUrl != ""
}

// Manifest is the extension.toml file required at an extension package's
// root. Only id, name and version are mandatory.
type Manifest struct {
	Extension ManifestEntry `toml:"extension"`
}

// ManifestEntry is the [extension] table of the manifest.
type ManifestEntry struct {
	ID            string      `toml:"id"`
	Name          string      `toml:"name"`
	Version       string      `toml:"version"`
	Description   string      `toml:"description"`
	Author        string      `toml:"author"`
	Entry         string      `toml:"entry"`
	TitleBarColor string      `toml:"titleBarColor"`
	Icon          interface{} `toml:"icon"`
}

// NormalizeIcon converts the loosely typed manifest icon value (a single
// glyph string or a [style, glyph] array) into an Icon. Unrecognized
// shapes yield nil.
func NormalizeIcon(v interface{}) Icon {
	switch icon := v.(type) {
	case string:
		if icon == "" {
			return nil
		}
		return Icon{icon}
	case []interface{}:
		if len(icon) != 2 {
			return nil
		}
		style, ok1 := icon[0].(string)
		glyph, ok2 := icon[1].(string)
		if !ok1 || !ok2 {
			return nil
		}
		return Icon{style, glyph}
	default:
		return nil
	}
}

// RoomContext identifies the game room a registry query is scoped to.
// Viewer is the requesting user; players (viewer != creator) only see
// extensions the creator made visible for that room.
type RoomContext struct {
	Creator string `json:"roomCreator"`
	Name    string `json:"roomName"`
	Viewer  string `json:"viewer,omitempty"`
}

// Key returns the visibility-store key for the room.
func (r RoomContext) Key() string {
	return r.Creator + "/" + r.Name
}

// Valid reports whether both room fields are present.
func (r RoomContext) Valid() bool {
	return r.Creator != "" && r.Name != ""
}

// PlayerView reports whether the viewer is a player rather than the
// room's creator.
func (r RoomContext) PlayerView() bool {
	return r.Valid() && r.Viewer != r.Creator
}

// RegistryStats summarizes the installed-extension catalog.
type RegistryStats struct {
	TotalExtensions int              `json:"total_extensions"`
	WithUI          int              `json:"with_ui"`
	DiskUsageBytes  int64            `json:"disk_usage_bytes"`
	PerExtension    map[string]int64 `json:"per_extension,omitempty"`
}
