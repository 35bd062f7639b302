package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// Drive performs drive operations against one drive root. The prefix selects
// the root: "/me/drive" for the signed-in user, "/users/{id}/drive" for an
// impersonated user (config.DrivePrefix computes it).
type Drive struct {
	client *Client
	prefix string
	logger *slog.Logger
}

// NewDrive creates a Drive gateway over the given client and root prefix.
func NewDrive(client *Client, prefix string) *Drive {
	return &Drive{
		client: client,
		prefix: prefix,
		logger: client.logger,
	}
}

// NormalizePath validates and canonicalizes a user-supplied remote path.
// The path must be absolute ("/docs/report.txt"); empty paths, bare "/",
// and "." or ".." segments are rejected. Trailing slashes are trimmed.
// User input is never interpolated into a Graph URL without passing here.
func NormalizePath(remotePath string) (string, error) {
	p := strings.TrimRight(remotePath, "/")
	if p == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	if !strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("%w: %q is not absolute", ErrInvalidPath, remotePath)
	}

	for _, seg := range strings.Split(p[1:], "/") {
		switch seg {
		case "":
			return "", fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, remotePath)
		case ".", "..":
			return "", fmt.Errorf("%w: %q has a relative segment", ErrInvalidPath, remotePath)
		}
	}

	return p, nil
}

// encodePathSegments URL-encodes each segment of a slash-separated path.
// Characters like #, ?, %, and spaces are encoded per-segment so the
// resulting path is safe for interpolation into Graph API URLs.
func encodePathSegments(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}

	return strings.Join(segments, "/")
}

// itemPath returns the Graph "root:{path}:" address for a normalized path.
func (d *Drive) itemPath(remotePath string) string {
	return d.prefix + "/root:" + encodePathSegments(remotePath) + ":"
}

// ListChildren returns the immediate children of the drive root.
// An empty drive yields an empty slice, not an error.
func (d *Drive) ListChildren(ctx context.Context) ([]Item, error) {
	d.logger.Info("listing drive root children", slog.String("drive", d.prefix))

	resp, err := d.client.Do(ctx, http.MethodGet, d.prefix+"/root/children", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var lcr listChildrenResponse
	if err := json.NewDecoder(resp.Body).Decode(&lcr); err != nil {
		return nil, fmt.Errorf("graph: decoding children response: %w", err)
	}

	items := make([]Item, 0, len(lcr.Value))
	for i := range lcr.Value {
		items = append(items, lcr.Value[i].toItem(d.logger))
	}

	d.logger.Debug("listed children", slog.Int("count", len(items)))

	return items, nil
}

// Upload writes the content of r to the given remote path using a single
// PUT. The server performs create-or-replace.
func (d *Drive) Upload(ctx context.Context, remotePath string, r io.Reader) (*Item, error) {
	p, err := NormalizePath(remotePath)
	if err != nil {
		return nil, err
	}

	d.logger.Info("uploading content",
		slog.String("drive", d.prefix),
		slog.String("path", p),
	)

	resp, err := d.client.DoRaw(ctx, http.MethodPut, d.itemPath(p)+"/content", "application/octet-stream", r)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var dir driveItemResponse
	if err := json.NewDecoder(resp.Body).Decode(&dir); err != nil {
		return nil, fmt.Errorf("graph: decoding upload response: %w", err)
	}

	item := dir.toItem(d.logger)

	return &item, nil
}

// CreateFolder creates a folder at the given remote path. The path is split
// into parent and leaf name: the folder payload is POSTed to the parent's
// children endpoint, or to the root children endpoint when the path has no
// parent. Uses conflictBehavior "rename" — the server renames on collision
// instead of failing.
func (d *Drive) CreateFolder(ctx context.Context, remotePath string) (*Item, error) {
	p, err := NormalizePath(remotePath)
	if err != nil {
		return nil, err
	}

	parent, name := splitPath(p)

	d.logger.Info("creating folder",
		slog.String("drive", d.prefix),
		slog.String("parent", parent),
		slog.String("name", name),
	)

	endpoint := d.prefix + "/root/children"
	if parent != "" {
		endpoint = d.itemPath(parent) + "/children"
	}

	reqBody := createFolderRequest{
		Name:             name,
		Folder:           folderFacet{},
		ConflictBehavior: "rename",
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("graph: marshaling create folder request: %w", err)
	}

	resp, err := d.client.Do(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var dir driveItemResponse
	if err := json.NewDecoder(resp.Body).Decode(&dir); err != nil {
		return nil, fmt.Errorf("graph: decoding create folder response: %w", err)
	}

	item := dir.toItem(d.logger)

	return &item, nil
}

// Delete removes the item at the given remote path. A missing item surfaces
// as a RemoteError wrapping ErrNotFound, never a silent success.
func (d *Drive) Delete(ctx context.Context, remotePath string) error {
	p, err := NormalizePath(remotePath)
	if err != nil {
		return err
	}

	d.logger.Info("deleting item",
		slog.String("drive", d.prefix),
		slog.String("path", p),
	)

	resp, err := d.client.Do(ctx, http.MethodDelete, d.itemPath(p), nil)
	if err != nil {
		return err
	}

	// 204 No Content — drain and close to reuse the connection.
	defer resp.Body.Close()

	if _, copyErr := io.Copy(io.Discard, resp.Body); copyErr != nil {
		return fmt.Errorf("graph: draining delete response body: %w", copyErr)
	}

	return nil
}

// Download streams the content of the item at the given remote path to w.
// Returns the number of bytes written. The caller owns w; nothing is
// buffered to disk.
func (d *Drive) Download(ctx context.Context, remotePath string, w io.Writer) (int64, error) {
	p, err := NormalizePath(remotePath)
	if err != nil {
		return 0, err
	}

	d.logger.Info("downloading content",
		slog.String("drive", d.prefix),
		slog.String("path", p),
	)

	resp, err := d.client.Do(ctx, http.MethodGet, d.itemPath(p)+"/content", nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, copyErr := io.Copy(w, resp.Body)
	if copyErr != nil {
		d.logger.Error("streaming download content failed",
			slog.String("path", p),
			slog.Int64("bytes_before_error", n),
			slog.String("error", copyErr.Error()),
		)

		return n, fmt.Errorf("graph: streaming download content: %w", copyErr)
	}

	d.logger.Debug("download complete",
		slog.String("path", p),
		slog.Int64("bytes_written", n),
	)

	return n, nil
}

// splitPath splits a normalized path into parent and leaf name.
// "/a/b" yields ("/a", "b"); "/b" yields ("", "b").
func splitPath(p string) (parent, name string) {
	idx := strings.LastIndex(p, "/")

	name = p[idx+1:]
	if idx > 0 {
		parent = p[:idx]
	}

	return parent, name
}
