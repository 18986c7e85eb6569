package installer

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/shared/paths"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/shared/types"
)

const validManifest = `[extension]
id = "dice-roller"
name = "Dice Roller"
version = "1.2.0"
entrypoint = "ui/index.html"
`

type fakeRegistry struct {
	refreshed int
	byFolder  map[string]types.ExtensionDescriptor
}

func (f *fakeRegistry) Refresh(ctx context.Context) error {
	f.refreshed++
	return nil
}

func (f *fakeRegistry) Get(ctx context.Context, folder string) (types.ExtensionDescriptor, bool) {
	d, ok := f.byFolder[folder]
	return d, ok
}

type fakeModals struct {
	closed []string
}

func (f *fakeModals) ForceClose(id string) bool {
	f.closed = append(f.closed, id)
	return true
}

type fakeVisibility struct {
	forgotten []string
}

func (f *fakeVisibility) Forget(folder string) error {
	f.forgotten = append(f.forgotten, folder)
	return nil
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func buildTarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func newTestInstaller(t *testing.T) (*Installer, *fakeRegistry, *fakeModals, *fakeVisibility, paths.Layout) {
	t.Helper()
	layout := paths.NewLayout(t.TempDir(), "")
	registry := &fakeRegistry{byFolder: map[string]types.ExtensionDescriptor{}}
	modals := &fakeModals{}
	vis := &fakeVisibility{}
	inst := New(layout, registry, modals, vis, 10*1024*1024, nil)
	return inst, registry, modals, vis, layout
}

func TestInstallZip(t *testing.T) {
	inst, registry, _, _, layout := newTestInstaller(t)

	pkg := buildZip(t, map[string]string{
		"extension.toml": validManifest,
		"ui/index.html":  "<html></html>",
		"ui/app.js":      "console.log('hi')",
	})

	desc, err := inst.InstallFromArchive(context.Background(), pkg)
	require.NoError(t, err)
	assert.Equal(t, "dice-roller-1.2.0", desc.Folder)
	assert.Equal(t, "dice-roller", desc.ID)
	assert.Equal(t, 1, registry.refreshed)

	assert.FileExists(t, filepath.Join(layout.Extension(desc.Folder), "ui", "index.html"))
	assert.FileExists(t, filepath.Join(layout.Extension(desc.Folder), "extension.toml"))
}

func TestInstallTarGz(t *testing.T) {
	inst, _, _, _, layout := newTestInstaller(t)

	pkg := buildTarGz(t, map[string]string{
		"extension.toml": validManifest,
		"ui/index.html":  "<html></html>",
	})

	desc, err := inst.InstallFromArchive(context.Background(), pkg)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(layout.Extension(desc.Folder), "ui", "index.html"))
}

func TestInstallRejectsMissingManifest(t *testing.T) {
	inst, registry, _, _, layout := newTestInstaller(t)

	pkg := buildZip(t, map[string]string{"ui/index.html": "<html></html>"})

	_, err := inst.InstallFromArchive(context.Background(), pkg)
	require.ErrorIs(t, err, ErrValidation)

	// Rejection must leave no trace on disk and never touch the registry.
	entries, _ := os.ReadDir(layout.ExtensionsDir)
	assert.Empty(t, entries)
	assert.Zero(t, registry.refreshed)
}

func TestInstallRejectsIncompleteManifest(t *testing.T) {
	inst, _, _, _, _ := newTestInstaller(t)

	pkg := buildZip(t, map[string]string{
		"extension.toml": "[extension]\nid = \"x\"\n",
	})

	_, err := inst.InstallFromArchive(context.Background(), pkg)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestInstallRejectsGarbage(t *testing.T) {
	inst, _, _, _, _ := newTestInstaller(t)

	_, err := inst.InstallFromArchive(context.Background(), []byte("not an archive"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = inst.InstallFromArchive(context.Background(), nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestInstallRejectsOversizedPackage(t *testing.T) {
	layout := paths.NewLayout(t.TempDir(), "")
	inst := New(layout, &fakeRegistry{}, &fakeModals{}, &fakeVisibility{}, 64, nil)

	pkg := buildZip(t, map[string]string{"extension.toml": validManifest})
	_, err := inst.InstallFromArchive(context.Background(), pkg)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestInstallRejectsZipSlip(t *testing.T) {
	inst, _, _, _, layout := newTestInstaller(t)

	pkg := buildTarGz(t, map[string]string{
		"extension.toml": validManifest,
		"../escaped.txt": "nope",
	})

	_, err := inst.InstallFromArchive(context.Background(), pkg)
	require.ErrorIs(t, err, ErrValidation)
	assert.NoFileExists(t, filepath.Join(layout.DataDir, "escaped.txt"))
	// The partial extraction must have been rolled back.
	assert.NoDirExists(t, layout.Extension("dice-roller-1.2.0"))
}

func TestInstallSupersedesPreviousVersionFolder(t *testing.T) {
	inst, _, _, _, layout := newTestInstaller(t)
	ctx := context.Background()

	first := buildZip(t, map[string]string{
		"extension.toml": validManifest,
		"old-asset.txt":  "stale",
	})
	_, err := inst.InstallFromArchive(ctx, first)
	require.NoError(t, err)

	second := buildZip(t, map[string]string{
		"extension.toml": validManifest,
		"new-asset.txt":  "fresh",
	})
	desc, err := inst.InstallFromArchive(ctx, second)
	require.NoError(t, err)

	// Old files must not leak into the superseding install.
	assert.NoFileExists(t, filepath.Join(layout.Extension(desc.Folder), "old-asset.txt"))
	assert.FileExists(t, filepath.Join(layout.Extension(desc.Folder), "new-asset.txt"))
}

func TestInstallFromURL(t *testing.T) {
	inst, _, _, _, _ := newTestInstaller(t)
	pkg := buildZip(t, map[string]string{
		"extension.toml": validManifest,
		"ui/index.html":  "<html></html>",
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pkg)
	}))
	defer srv.Close()

	desc, err := inst.InstallFromURL(context.Background(), srv.URL+"/dice.zip")
	require.NoError(t, err)
	assert.Equal(t, "dice-roller-1.2.0", desc.Folder)
}

func TestInstallFromURLRejectsBadSuffix(t *testing.T) {
	inst, _, _, _, _ := newTestInstaller(t)

	_, err := inst.InstallFromURL(context.Background(), "https://example.com/package.rar")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = inst.InstallFromURL(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestInstallFromURLSurfacesServerError(t *testing.T) {
	inst, _, _, _, _ := newTestInstaller(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "package quarantined", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := inst.InstallFromURL(context.Background(), srv.URL+"/dice.zip")
	require.ErrorIs(t, err, ErrTransport)
	assert.Contains(t, err.Error(), "package quarantined")
}

func TestUninstall(t *testing.T) {
	inst, registry, modals, vis, _ := newTestInstaller(t)
	ctx := context.Background()

	pkg := buildZip(t, map[string]string{"extension.toml": validManifest})
	desc, err := inst.InstallFromArchive(ctx, pkg)
	require.NoError(t, err)

	registry.byFolder[desc.Folder] = types.ExtensionDescriptor{ID: "dice-roller", Folder: desc.Folder}

	require.NoError(t, inst.Uninstall(ctx, desc.Folder))
	assert.Equal(t, []string{"dice-roller"}, modals.closed)
	assert.Equal(t, []string{desc.Folder}, vis.forgotten)
	assert.Equal(t, 2, registry.refreshed)
}

func TestUninstallUnknownFolder(t *testing.T) {
	inst, _, _, _, _ := newTestInstaller(t)

	err := inst.Uninstall(context.Background(), "never-installed-1.0.0")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUninstallRejectsTraversal(t *testing.T) {
	inst, _, _, _, _ := newTestInstaller(t)

	for _, folder := range []string{"../data", "a/b", "", ".hidden"} {
		err := inst.Uninstall(context.Background(), folder)
		assert.ErrorIs(t, err, ErrValidation, "folder %q", folder)
	}
}
