package installer

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/klauspost/compress/gzip"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"

	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/domain/extension"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/infrastructure/logging"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/shared/paths"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/shared/types"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/shared/utils"
)

// Error kinds. Callers classify with errors.Is; the wrapped text is the
// user-visible message.
var (
	// ErrValidation marks a malformed package or manifest, rejected
	// before any filesystem mutation.
	ErrValidation = errors.New("validation failed")
	// ErrTransport marks a network failure during a URL install.
	ErrTransport = errors.New("download failed")
	// ErrNotFound marks an uninstall of an unknown folder.
	ErrNotFound = errors.New("not found")
)

// Registry is the catalog the installer refreshes after every mutation.
type Registry interface {
	Refresh(ctx context.Context) error
	Get(ctx context.Context, folder string) (types.ExtensionDescriptor, bool)
}

// ModalCloser force-closes any open surface for an uninstalled extension.
type ModalCloser interface {
	ForceClose(id string) bool
}

// VisibilityStore forgets room visibility for removed folders.
type VisibilityStore interface {
	Forget(folder string) error
}

// Installer validates, persists, and removes extension packages.
type Installer struct {
	layout     paths.Layout
	registry   Registry
	modals     ModalCloser
	visibility VisibilityStore
	client     *retryablehttp.Client
	logger     *logging.Logger
	maxBytes   int64
}

// New creates an installer. maxArchiveBytes bounds both uploaded and
// downloaded package sizes.
func New(layout paths.Layout, registry Registry, modals ModalCloser, visibility VisibilityStore, maxArchiveBytes int64, logger *logging.Logger) *Installer {
	if logger == nil {
		logger = logging.NewNop()
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil

	return &Installer{
		layout:     layout,
		registry:   registry,
		modals:     modals,
		visibility: visibility,
		client:     client,
		logger:     logger,
		maxBytes:   maxArchiveBytes,
	}
}

// InstallFromArchive validates and extracts an extension package given as
// raw bytes (zip or tar.gz). The manifest is parsed and validated before
// anything touches the filesystem; a directory-name collision supersedes
// the previous installation rather than merging into it.
func (i *Installer) InstallFromArchive(ctx context.Context, data []byte) (*types.ExtensionDescriptor, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no file uploaded", ErrValidation)
	}
	if i.maxBytes > 0 && int64(len(data)) > i.maxBytes {
		return nil, fmt.Errorf("%w: package exceeds %d bytes", ErrValidation, i.maxBytes)
	}

	archive, err := openArchive(data)
	if err != nil {
		return nil, err
	}

	manifest, err := archive.Manifest()
	if err != nil {
		return nil, err
	}
	if err := validateManifest(manifest); err != nil {
		return nil, err
	}

	folder := fmt.Sprintf("%s-%s",
		utils.SanitizePathComponent(manifest.Extension.ID),
		utils.SanitizePathComponent(manifest.Extension.Version))
	target := i.layout.Extension(folder)

	// Supersede: an existing install under the same name is removed so
	// old files never leak into the new version.
	if _, err := os.Stat(target); err == nil {
		i.logger.Info("Superseding existing installation", zap.String("folder", folder))
		if err := os.RemoveAll(target); err != nil {
			return nil, fmt.Errorf("failed to supersede %s: %w", folder, err)
		}
	}

	if err := os.MkdirAll(target, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create install dir: %w", err)
	}

	if err := archive.ExtractTo(target); err != nil {
		// A failed extraction never leaves a partial install behind.
		os.RemoveAll(target)
		return nil, err
	}

	i.logger.Info("Installed extension",
		zap.String("id", manifest.Extension.ID),
		zap.String("version", manifest.Extension.Version),
		zap.String("folder", folder),
		zap.String("digest", utils.ShortDigest(utils.ArchiveDigest(data))),
	)

	if err := i.registry.Refresh(ctx); err != nil {
		i.logger.Warn("Registry refresh after install failed", zap.Error(err))
	}

	if desc, ok := i.registry.Get(ctx, folder); ok {
		return &desc, nil
	}
	return &types.ExtensionDescriptor{
		ID:      manifest.Extension.ID,
		Name:    manifest.Extension.Name,
		Version: manifest.Extension.Version,
		Folder:  folder,
	}, nil
}

// InstallFromURL dereferences a package URL and installs it like an
// uploaded archive. Network failures and non-2xx statuses surface as a
// transport error carrying the server's message when one is present.
func (i *Installer) InstallFromURL(ctx context.Context, url string) (*types.ExtensionDescriptor, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("%w: URL is required", ErrValidation)
	}
	lower := strings.ToLower(url)
	if !strings.HasSuffix(lower, ".zip") && !strings.HasSuffix(lower, ".tar.gz") && !strings.HasSuffix(lower, ".tgz") {
		return nil, fmt.Errorf("%w: URL must point to a .zip or .tar.gz package", ErrValidation)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(readLimited(resp.Body, 4096)))
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %s", ErrTransport, msg)
	}

	limit := i.maxBytes
	if limit <= 0 {
		limit = 1 << 30
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: package exceeds %d bytes", ErrValidation, limit)
	}

	return i.InstallFromArchive(ctx, data)
}

// Uninstall removes an installed extension by folder name, force-closing
// any open modal for it first so sandboxed content cannot keep running.
func (i *Installer) Uninstall(ctx context.Context, folder string) error {
	if err := utils.ValidateFolderName(folder); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	target := i.layout.Extension(folder)
	info, err := os.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: extension folder '%s'", ErrNotFound, folder)
		}
		return fmt.Errorf("failed to stat %s: %w", folder, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: '%s' is not an extension folder", ErrValidation, folder)
	}

	// Close the modal before the files go away; minimize never applies
	// to an uninstall.
	if desc, ok := i.registry.Get(ctx, folder); ok {
		i.modals.ForceClose(desc.ID)
	}

	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("failed to remove extension: %w", err)
	}

	if i.visibility != nil {
		if err := i.visibility.Forget(folder); err != nil {
			i.logger.Warn("Failed to drop visibility entries", zap.String("folder", folder), zap.Error(err))
		}
	}

	i.logger.Info("Uninstalled extension", zap.String("folder", folder))

	if err := i.registry.Refresh(ctx); err != nil {
		i.logger.Warn("Registry refresh after uninstall failed", zap.Error(err))
	}
	return nil
}

func validateManifest(m *types.Manifest) error {
	e := m.Extension
	if e.ID == "" || e.Name == "" || e.Version == "" {
		return fmt.Errorf("%w: manifest must declare id, name, and version", ErrValidation)
	}
	if utils.SanitizePathComponent(e.ID) == "" || utils.SanitizePathComponent(e.Version) == "" {
		return fmt.Errorf("%w: manifest id or version is not installable", ErrValidation)
	}
	return nil
}

func parseManifest(raw []byte) (*types.Manifest, error) {
	var manifest types.Manifest
	if err := toml.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("%w: invalid %s: %v", ErrValidation, extension.ManifestName, err)
	}
	return &manifest, nil
}

func readLimited(r io.Reader, n int64) []byte {
	data, _ := io.ReadAll(io.LimitReader(r, n))
	return data
}

// secureJoin resolves an archive entry name inside target, rejecting
// anything that would escape it.
func secureJoin(target, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(os.PathSeparator)) || filepath.IsAbs(clean) {
		return "", fmt.Errorf("%w: archive entry escapes package root: %s", ErrValidation, name)
	}
	return filepath.Join(target, clean), nil
}

func writeEntry(path string, mode os.FileMode, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create dir for %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode.Perm()|0o400)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// archive abstracts the two supported package formats.
type archive interface {
	Manifest() (*types.Manifest, error)
	ExtractTo(target string) error
}

// openArchive sniffs the package format from magic bytes.
func openArchive(data []byte) (archive, error) {
	switch {
	case len(data) >= 4 && bytes.HasPrefix(data, []byte("PK")):
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("%w: not a valid zip file", ErrValidation)
		}
		return &zipArchive{reader: zr}, nil
	case len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b:
		return &tarGzArchive{data: data}, nil
	default:
		return nil, fmt.Errorf("%w: unrecognized package format", ErrValidation)
	}
}

type zipArchive struct {
	reader *zip.Reader
}

func (a *zipArchive) Manifest() (*types.Manifest, error) {
	for _, f := range a.reader.File {
		if f.Name != extension.ManifestName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: unreadable %s", ErrValidation, extension.ManifestName)
		}
		defer rc.Close()
		raw, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: unreadable %s", ErrValidation, extension.ManifestName)
		}
		return parseManifest(raw)
	}
	return nil, fmt.Errorf("%w: %s not found at package root", ErrValidation, extension.ManifestName)
}

func (a *zipArchive) ExtractTo(target string) error {
	for _, f := range a.reader.File {
		path, err := secureJoin(target, f.Name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(path, 0o755); err != nil {
				return fmt.Errorf("failed to create %s: %w", path, err)
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("failed to open archive entry %s: %w", f.Name, err)
		}
		err = writeEntry(path, f.Mode(), rc)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

type tarGzArchive struct {
	data []byte
}

func (a *tarGzArchive) walk(fn func(hdr *tar.Header, r io.Reader) (stop bool, err error)) error {
	gz, err := gzip.NewReader(bytes.NewReader(a.data))
	if err != nil {
		return fmt.Errorf("%w: not a valid gzip stream", ErrValidation)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: corrupt tar archive", ErrValidation)
		}
		stop, err := fn(hdr, tr)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}

func (a *tarGzArchive) Manifest() (*types.Manifest, error) {
	var manifest *types.Manifest
	err := a.walk(func(hdr *tar.Header, r io.Reader) (bool, error) {
		if filepath.Clean(hdr.Name) != extension.ManifestName {
			return false, nil
		}
		raw, err := io.ReadAll(r)
		if err != nil {
			return true, fmt.Errorf("%w: unreadable %s", ErrValidation, extension.ManifestName)
		}
		m, err := parseManifest(raw)
		if err != nil {
			return true, err
		}
		manifest = m
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if manifest == nil {
		return nil, fmt.Errorf("%w: %s not found at package root", ErrValidation, extension.ManifestName)
	}
	return manifest, nil
}

func (a *tarGzArchive) ExtractTo(target string) error {
	return a.walk(func(hdr *tar.Header, r io.Reader) (bool, error) {
		path, err := secureJoin(target, hdr.Name)
		if err != nil {
			return true, err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, 0o755); err != nil {
				return true, fmt.Errorf("failed to create %s: %w", path, err)
			}
		case tar.TypeReg:
			if err := writeEntry(path, os.FileMode(hdr.Mode), r); err != nil {
				return true, err
			}
		default:
			// Links and specials are silently skipped; packages are
			// plain file trees.
		}
		return false, nil
	})
}
