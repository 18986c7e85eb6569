package types

// ModalState is the lifecycle state of an open modal surface. Closed
// surfaces are simply absent from the open set.
type ModalState string

const (
	ModalOpen      ModalState = "open"
	ModalMinimized ModalState = "minimized"
)

// FocusToken is the single source of truth for which surface is frontmost:
// empty (nothing focused), FocusStack (the rearrangeable modal stack), a
// well-known singleton name, or a generic extension id.
type FocusToken string

const (
	FocusNone  FocusToken = ""
	FocusStack FocusToken = "stack"
)

// OpenModalEntry is a live extension UI instance. At most one per
// extension id.
type OpenModalEntry struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Folder        string     `json:"folder,omitempty"`
	UIUrl         string     `json:"uiUrl"`
	TitleBarColor string     `json:"titleBarColor,omitempty"`
	Icon          Icon       `json:"icon,omitempty"`
	OpenSheetID   string     `json:"openSheetId,omitempty"`
	State         ModalState `json:"state"`
}

// ModalStats summarizes the modal window manager.
type ModalStats struct {
	Open        int        `json:"open"`
	Minimized   int        `json:"minimized"`
	Focused     FocusToken `json:"focused"`
	AudioActive bool       `json:"audio_active"`
}
