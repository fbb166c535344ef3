package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/inventariate/backend-go/internal/drive"
)

// DriveBrowser lists Drive folders so a client can pick a file to import.
type DriveBrowser interface {
	ListFiles(ctx context.Context, folderID string) ([]*drive.File, error)
	FindFolderByPath(ctx context.Context, folderPath string) (string, error)
}

type DriveHandler struct {
	drive DriveBrowser
}

func NewDriveHandler(d DriveBrowser) *DriveHandler {
	return &DriveHandler{drive: d}
}

// ListFiles accepts either ?folderId= or a ?path= walked from root.
func (h *DriveHandler) ListFiles(c *gin.Context) {
	folderID := c.Query("folderId")
	if folderPath := c.Query("path"); folderPath != "" {
		id, err := h.drive.FindFolderByPath(c.Request.Context(), folderPath)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		folderID = id
	}

	files, err := h.drive.ListFiles(c.Request.Context(), folderID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, files)
}
