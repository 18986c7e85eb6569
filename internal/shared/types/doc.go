// Package types provides shared data structures for the extension host.
//
// This package defines core types used across all host components,
// ensuring type safety and consistent data structures.
//
// Core Types:
//   - ExtensionDescriptor: Installed extension identity and presentation
//   - Manifest: The extension.toml file at an extension package's root
//   - OpenModalEntry: A live extension UI surface
//   - TimerItem: A countdown or stopwatch tracked by the timer service
//   - Message: The host/guest bridge envelope
//
// State Management:
//   - ModalState: Modal lifecycle enum (open, minimized)
//   - FocusToken: Single source of truth for the frontmost surface
//
// Example Usage:
//
//	desc := types.ExtensionDescriptor{
//	    ID:      "dice-roller",
//	    Name:    "Dice Roller",
//	    Version: "1.0.0",
//	    Folder:  "dice-roller-1.0.0",
//	}
package types
