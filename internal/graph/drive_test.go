package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPrefix = "/me/drive"

// newTestDrive wires a Drive to an httptest server handler.
func newTestDrive(t *testing.T, handler http.Handler) *Drive {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewDrive(newTestClient(t, srv.URL), testPrefix)
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"simple", "/a.txt", "/a.txt", false},
		{"nested", "/docs/report.txt", "/docs/report.txt", false},
		{"trailing slash trimmed", "/docs/", "/docs", false},
		{"empty", "", "", true},
		{"bare root", "/", "", true},
		{"relative", "a.txt", "", true},
		{"dot segment", "/docs/./a", "", true},
		{"traversal", "/docs/../etc/passwd", "", true},
		{"empty segment", "/docs//a", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePath(tt.in)

			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPath)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListChildren(t *testing.T) {
	drive := newTestDrive(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, testPrefix+"/root/children", r.URL.Path)

		_, _ = w.Write([]byte(`{"value": [
			{"id": "1", "name": "docs", "folder": {"childCount": 2}},
			{"id": "2", "name": "a.txt", "size": 5,
			 "lastModifiedDateTime": "2026-01-02T15:04:05Z"}
		]}`))
	}))

	items, err := drive.ListChildren(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "docs", items[0].Name)
	assert.Equal(t, "/docs", items[0].Path)
	assert.True(t, items[0].IsFolder)

	assert.Equal(t, "a.txt", items[1].Name)
	assert.Equal(t, "/a.txt", items[1].Path)
	assert.False(t, items[1].IsFolder)
	assert.Equal(t, int64(5), items[1].Size)
	assert.Equal(t, 2026, items[1].ModifiedAt.Year())
}

func TestListChildren_EmptyDrive(t *testing.T) {
	drive := newTestDrive(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"value": []}`))
	}))

	items, err := drive.ListChildren(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NotNil(t, items)
}

func TestUpload(t *testing.T) {
	var gotBody []byte

	drive := newTestDrive(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, testPrefix+"/root:/x.txt:/content", r.URL.Path)
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))

		var err error
		gotBody, err = io.ReadAll(r.Body)
		require.NoError(t, err)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": "new", "name": "x.txt", "size": 5}`))
	}))

	item, err := drive.Upload(context.Background(), "/x.txt", bytes.NewReader([]byte("hello")))
	require.NoError(t, err)

	assert.Equal(t, []byte("hello"), gotBody)
	assert.Equal(t, "x.txt", item.Name)
	assert.Equal(t, "/x.txt", item.Path)
}

func TestUpload_InvalidPath(t *testing.T) {
	drive := newTestDrive(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("no request must be issued for an invalid path")
	}))

	_, err := drive.Upload(context.Background(), "../x.txt", bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestCreateFolder_WithParent(t *testing.T) {
	drive := newTestDrive(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, testPrefix+"/root:/a:/children", r.URL.Path)

		var req createFolderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "b", req.Name)
		assert.Equal(t, "rename", req.ConflictBehavior)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": "f1", "name": "b", "folder": {}}`))
	}))

	item, err := drive.CreateFolder(context.Background(), "/a/b")
	require.NoError(t, err)
	assert.Equal(t, "b", item.Name)
	assert.True(t, item.IsFolder)
}

func TestCreateFolder_AtRoot(t *testing.T) {
	drive := newTestDrive(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testPrefix+"/root/children", r.URL.Path)

		var req createFolderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "b", req.Name)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": "f2", "name": "b", "folder": {}}`))
	}))

	item, err := drive.CreateFolder(context.Background(), "/b")
	require.NoError(t, err)
	assert.Equal(t, "b", item.Name)
}

func TestCreateFolder_ServerRenamesOnConflict(t *testing.T) {
	drive := newTestDrive(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": "f3", "name": "b 1", "folder": {}}`))
	}))

	item, err := drive.CreateFolder(context.Background(), "/b")
	require.NoError(t, err)
	assert.Equal(t, "b 1", item.Name)
}

func TestDelete(t *testing.T) {
	drive := newTestDrive(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, testPrefix+"/root:/old.txt:", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))

	err := drive.Delete(context.Background(), "/old.txt")
	assert.NoError(t, err)
}

func TestDelete_NotFound(t *testing.T) {
	drive := newTestDrive(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": {"code": "itemNotFound"}}`))
	}))

	err := drive.Delete(context.Background(), "/ghost.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDownload(t *testing.T) {
	drive := newTestDrive(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testPrefix+"/root:/x.txt:/content", r.URL.Path)
		_, _ = w.Write([]byte("hello"))
	}))

	var buf bytes.Buffer

	n, err := drive.Download(context.Background(), "/x.txt", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, "hello", buf.String())
}

func TestUploadDownload_RoundTrip(t *testing.T) {
	content := map[string][]byte{}

	drive := newTestDrive(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)

			content[r.URL.Path] = body

			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"id": "1", "name": "x.txt", "size": %d}`, len(body))
		case http.MethodGet:
			body, ok := content[r.URL.Path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}

			_, _ = w.Write(body)
		}
	}))

	_, err := drive.Upload(context.Background(), "/x.txt", bytes.NewReader([]byte("hello")))
	require.NoError(t, err)

	var buf bytes.Buffer

	_, err = drive.Download(context.Background(), "/x.txt", &buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", buf.String())
}

func TestItemPath_EncodesSegments(t *testing.T) {
	drive := newTestDrive(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	// Encoding itself is deterministic; exercise it directly.
	assert.Equal(t, testPrefix+"/root:/a%20b/c%231.txt:", drive.itemPath("/a b/c#1.txt"))
}
