package types

// InstallURLRequest asks the installer to fetch and install a package.
type InstallURLRequest struct {
	URL string `json:"url" binding:"required"`
}

// UninstallRequest removes an installed extension by folder name.
type UninstallRequest struct {
	Folder string `json:"folder" binding:"required"`
}

// VisibilityRequest toggles the per-room player visibility of an
// extension.
type VisibilityRequest struct {
	Folder           string `json:"folder" binding:"required"`
	VisibleToPlayers bool   `json:"visibleToPlayers"`
	RoomCreator      string `json:"roomCreator" binding:"required"`
	RoomName         string `json:"roomName" binding:"required"`
}

// OpenModalRequest opens an extension's UI surface, optionally deep
// linking to a sheet consumed once on open.
type OpenModalRequest struct {
	OpenSheetID string `json:"openSheetId,omitempty"`
}
