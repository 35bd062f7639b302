package graph

import (
	"log/slog"
	"time"
)

// Item is a single entry of a drive listing, normalized from the Graph API
// driveItem response. Path is the item's console-facing address: "/" + name,
// shallow, relative to the drive root.
type Item struct {
	ID         string
	Name       string
	Path       string
	Size       int64
	IsFolder   bool
	ModifiedAt time.Time
}

// driveItemResponse mirrors the Graph API driveItem JSON.
// Unexported — callers use Item via toItem() normalization.
type driveItemResponse struct {
	ID                   string       `json:"id"`
	Name                 string       `json:"name"`
	Size                 int64        `json:"size"`
	LastModifiedDateTime string       `json:"lastModifiedDateTime"`
	Folder               *folderFacet `json:"folder"`
}

type folderFacet struct {
	ChildCount int `json:"childCount"`
}

type listChildrenResponse struct {
	Value []driveItemResponse `json:"value"`
}

type createFolderRequest struct {
	Name             string      `json:"name"`
	Folder           folderFacet `json:"folder"`
	ConflictBehavior string      `json:"@microsoft.graph.conflictBehavior"` //nolint:tagliatelle // Graph API annotation key
}

// toItem normalizes a Graph API driveItem response into our Item type.
// The folder flag comes from the presence of the folder facet.
func (d *driveItemResponse) toItem(logger *slog.Logger) Item {
	item := Item{
		ID:       d.ID,
		Name:     d.Name,
		Path:     "/" + d.Name,
		Size:     d.Size,
		IsFolder: d.Folder != nil,
	}

	if d.LastModifiedDateTime != "" {
		t, err := time.Parse(time.RFC3339, d.LastModifiedDateTime)
		if err != nil {
			logger.Warn("invalid lastModifiedDateTime",
				slog.String("item_id", d.ID),
				slog.String("raw", d.LastModifiedDateTime),
			)
		} else {
			item.ModifiedAt = t
		}
	}

	return item
}
