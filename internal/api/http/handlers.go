package http

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/domain/extension"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/domain/installer"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/domain/modal"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/domain/timer"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/domain/visibility"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/infrastructure/logging"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/infrastructure/monitoring"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/shared/paths"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/shared/types"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/shared/utils"
)

// Handlers holds the HTTP endpoint dependencies.
type Handlers struct {
	registry   *extension.Manager
	installer  *installer.Installer
	modals     *modal.Manager
	visibility *visibility.Store
	timers     *timer.Service
	layout     paths.Layout

	maxArchiveBytes int64
	allowURLInstall bool
	startTime       time.Time
	metrics         *monitoring.Metrics
	logger          *logging.Logger
}

// NewHandlers creates the endpoint set.
func NewHandlers(
	registry *extension.Manager,
	inst *installer.Installer,
	modals *modal.Manager,
	vis *visibility.Store,
	timers *timer.Service,
	layout paths.Layout,
	maxArchiveBytes int64,
	allowURLInstall bool,
	metrics *monitoring.Metrics,
	logger *logging.Logger,
) *Handlers {
	return &Handlers{
		registry:        registry,
		installer:       inst,
		modals:          modals,
		visibility:      vis,
		timers:          timers,
		layout:          layout,
		maxArchiveBytes: maxArchiveBytes,
		allowURLInstall: allowURLInstall,
		startTime:       time.Now(),
		metrics:         metrics,
		logger:          logger,
	}
}

// Root handles GET /
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "extension-host",
		"version": "1.0.0",
		"status":  "running",
	})
}

// Health handles GET /health
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
	})
}

// Stats handles GET /api/stats
func (h *Handlers) Stats(c *gin.Context) {
	registryStats, err := h.registry.Stats(c.Request.Context())
	if err != nil {
		h.logger.Warn("Registry stats incomplete", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{
		"registry": registryStats,
		"modals":   h.modals.Stats(),
	})
}

// roomFromQuery extracts the optional room context. Both room params
// must be present together; viewer defaults to the creator.
func roomFromQuery(c *gin.Context) *types.RoomContext {
	creator := c.Query("room_creator")
	name := c.Query("room_name")
	if creator == "" || name == "" {
		return nil
	}
	viewer := c.Query("viewer")
	if viewer == "" {
		viewer = creator
	}
	return &types.RoomContext{Creator: creator, Name: name, Viewer: viewer}
}

// ListExtensions handles GET /api/extensions
func (h *Handlers) ListExtensions(c *gin.Context) {
	room := roomFromQuery(c)

	list, err := h.registry.List(c.Request.Context(), room)
	if err != nil {
		h.logger.Warn("Extension scan failed, serving cached list", zap.Error(err))
	}
	if query := c.Query("query"); query != "" {
		list = extension.Filter(list, query)
	}

	c.JSON(http.StatusOK, gin.H{
		"extensions": list,
		"count":      len(list),
	})
}

// GetExtension handles GET /api/extensions/:folder
func (h *Handlers) GetExtension(c *gin.Context) {
	folder := c.Param("folder")
	if err := utils.ValidateFolderName(folder); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	desc, ok := h.registry.Get(c.Request.Context(), folder)
	if !ok {
		c.String(http.StatusNotFound, "extension not found")
		return
	}
	c.JSON(http.StatusOK, desc)
}

// InstallZip handles POST /api/extensions/install/zip with the archive
// as the raw request body.
func (h *Handlers) InstallZip(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxArchiveBytes+1))
	if err != nil {
		c.String(http.StatusBadRequest, "failed to read archive body")
		return
	}

	desc, err := h.installer.InstallFromArchive(c.Request.Context(), body)
	h.recordInstall(c, "zip", err)
	if err != nil {
		h.respondInstallError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"installed": desc})
}

// InstallURL handles POST /api/extensions/install/url
func (h *Handlers) InstallURL(c *gin.Context) {
	if !h.allowURLInstall {
		c.String(http.StatusForbidden, "url installs are disabled")
		return
	}

	var req types.InstallURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "url is required")
		return
	}

	desc, err := h.installer.InstallFromURL(c.Request.Context(), req.URL)
	h.recordInstall(c, "url", err)
	if err != nil {
		h.respondInstallError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"installed": desc})
}

// Uninstall handles POST /api/extensions/uninstall
func (h *Handlers) Uninstall(c *gin.Context) {
	var req types.UninstallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "folder is required")
		return
	}

	err := h.installer.Uninstall(c.Request.Context(), req.Folder)
	if h.metrics != nil {
		h.metrics.RecordUninstall(err)
		h.publishInstalledGauge(c)
	}
	if err != nil {
		h.respondInstallError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"uninstalled": req.Folder})
}

// SetVisibility handles PATCH /api/extensions/visibility
func (h *Handlers) SetVisibility(c *gin.Context) {
	var req types.VisibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "folder, roomCreator and roomName are required")
		return
	}
	if err := utils.ValidateFolderName(req.Folder); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	if _, ok := h.registry.Get(c.Request.Context(), req.Folder); !ok {
		c.String(http.StatusNotFound, "extension not found")
		return
	}

	room := types.RoomContext{Creator: req.RoomCreator, Name: req.RoomName, Viewer: req.RoomCreator}
	if err := h.visibility.Set(room.Key(), req.Folder, req.VisibleToPlayers); err != nil {
		c.String(http.StatusInternalServerError, "failed to persist visibility")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"folder":           req.Folder,
		"visibleToPlayers": req.VisibleToPlayers,
	})
}

// ServeUI handles GET /api/extensions/:folder/ui/*filepath, serving
// extension assets off disk. Paths resolve strictly inside the
// extension's install directory.
func (h *Handlers) ServeUI(c *gin.Context) {
	folder := c.Param("folder")
	if err := utils.ValidateFolderName(folder); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	rel := strings.TrimPrefix(c.Param("filepath"), "/")
	if rel == "" {
		entry, ok := h.registry.Entry(folder)
		if !ok {
			c.String(http.StatusNotFound, "extension has no ui")
			return
		}
		rel = entry
	}

	base := h.layout.Extension(folder)
	full := filepath.Join(base, filepath.FromSlash(rel))
	if !strings.HasPrefix(full, base+string(os.PathSeparator)) {
		c.String(http.StatusBadRequest, "invalid asset path")
		return
	}

	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		c.String(http.StatusNotFound, "asset not found")
		return
	}

	// Sniff content instead of trusting extensions; packages carry
	// arbitrary asset names.
	if mt, err := mimetype.DetectFile(full); err == nil {
		c.Header("Content-Type", mt.String())
	}
	if strings.HasSuffix(rel, ".css") {
		c.Header("Content-Type", "text/css; charset=utf-8")
	} else if strings.HasSuffix(rel, ".js") || strings.HasSuffix(rel, ".mjs") {
		c.Header("Content-Type", "text/javascript; charset=utf-8")
	}
	c.File(full)
}

// ListModals handles GET /api/modals
func (h *Handlers) ListModals(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"modals":  h.modals.List(),
		"focused": h.modals.Focused(),
	})
}

// OpenModal handles POST /api/modals/:folder/open
func (h *Handlers) OpenModal(c *gin.Context) {
	folder := c.Param("folder")
	if err := utils.ValidateFolderName(folder); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	desc, ok := h.registry.Get(c.Request.Context(), folder)
	if !ok {
		c.String(http.StatusNotFound, "extension not found")
		return
	}
	if !desc.HasUI() {
		c.String(http.StatusBadRequest, "extension has no ui surface")
		return
	}

	var req types.OpenModalRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.String(http.StatusBadRequest, "malformed request body")
			return
		}
	}

	entry := h.modals.Open(desc, req.OpenSheetID)
	c.JSON(http.StatusOK, entry)
}

// FocusModal handles POST /api/modals/:folder/focus. The folder param
// doubles as a focus token: "none" and "stack" act on the shared
// layers, anything else must name an open modal.
func (h *Handlers) FocusModal(c *gin.Context) {
	token := types.FocusToken(c.Param("folder"))
	if token == "none" {
		token = types.FocusNone
	}
	if !h.modals.Focus(token) {
		c.String(http.StatusNotFound, "modal is not open")
		return
	}
	c.JSON(http.StatusOK, gin.H{"focused": h.modals.Focused()})
}

// RequestCloseModal handles POST /api/modals/:folder/request-close and
// runs the escape-key path: the background-audio extension minimizes
// while its audio plays, everything else closes.
func (h *Handlers) RequestCloseModal(c *gin.Context) {
	folder := c.Param("folder")
	state, closed := h.modals.RequestClose(folder)
	c.JSON(http.StatusOK, gin.H{
		"closed": closed,
		"state":  state,
	})
}

// CloseModal handles POST /api/modals/:folder/close (the title-bar X:
// always a true close).
func (h *Handlers) CloseModal(c *gin.Context) {
	folder := c.Param("folder")
	if !h.modals.Close(folder) {
		c.String(http.StatusNotFound, "modal is not open")
		return
	}
	c.Status(http.StatusNoContent)
}

// ConsumeOpenSheet handles POST /api/modals/:folder/open-sheet, the
// one-shot deep-link pickup by the extension frame.
func (h *Handlers) ConsumeOpenSheet(c *gin.Context) {
	folder := c.Param("folder")
	sheetID, ok := h.modals.ConsumeOpenSheet(folder)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"openSheetId": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"openSheetId": sheetID})
}

// ListTimers handles GET /api/timers
func (h *Handlers) ListTimers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": h.timers.Items()})
}

// respondInstallError maps installer sentinel errors onto status codes.
func (h *Handlers) recordInstall(c *gin.Context, source string, err error) {
	if h.metrics == nil {
		return
	}
	h.metrics.RecordInstall(source, err)
	h.publishInstalledGauge(c)
}

func (h *Handlers) publishInstalledGauge(c *gin.Context) {
	if list, err := h.registry.List(c.Request.Context(), nil); err == nil {
		h.metrics.ExtensionsInstalled.Set(float64(len(list)))
	}
}

func (h *Handlers) respondInstallError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, installer.ErrValidation):
		c.String(http.StatusBadRequest, err.Error())
	case errors.Is(err, installer.ErrNotFound):
		c.String(http.StatusNotFound, err.Error())
	case errors.Is(err, installer.ErrTransport):
		c.String(http.StatusBadGateway, err.Error())
	default:
		h.logger.Error("Install operation failed", zap.Error(err))
		c.String(http.StatusInternalServerError, "internal error")
	}
}
