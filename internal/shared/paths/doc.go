// Package paths defines the host's on-disk layout.
//
// Everything lives under a single data directory:
//
//	<data>/
//	  ├── extensions/                   (one dir per installed package,
//	  │     └── <id>-<version>/          named from the manifest)
//	  ├── extension_visibility.json    (per-room player visibility)
//	  └── timers.json                  (durable timer state)
//
// The extensions directory can be relocated independently; all path
// construction goes through Layout so nothing else hardcodes names.
package paths
