package web

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"

	"github.com/labstack/echo/v4"

	"onedrive-console/internal/auth"
	"onedrive-console/internal/config"
	"onedrive-console/internal/graph"
)

// indexData feeds the listing template.
type indexData struct {
	Items []graph.Item
}

// loginData feeds the device-login template.
type loginData struct {
	State    string
	Prompt   *auth.DevicePrompt
	ErrorMsg string
}

// errorData feeds the error template.
type errorData struct {
	Status  int
	Title   string
	Message string
}

// statusResponse is the JSON body of the /auth/status polling endpoint.
type statusResponse struct {
	State           string `json:"state"`
	UserCode        string `json:"user_code,omitempty"`
	VerificationURI string `json:"verification_uri,omitempty"`
	Error           string `json:"error,omitempty"`
}

// index renders the drive listing, or the login page while the device flow
// has not produced a credential yet.
func (s *Server) index(c echo.Context) error {
	if s.auth.Flow() == config.FlowDevice {
		st := s.auth.Status()
		if st.State != auth.StateCached {
			data := loginData{
				State:  st.State.String(),
				Prompt: st.Prompt,
			}
			if st.Err != nil {
				data.ErrorMsg = st.Err.Error()
			}

			return c.Render(http.StatusOK, "login.html", data)
		}
	}

	items, err := s.drive.ListChildren(c.Request().Context())
	if err != nil {
		return s.renderError(c, err)
	}

	return c.Render(http.StatusOK, "index.html", indexData{Items: items})
}

// authLogin starts the background device-code flow and sends the browser
// back to the login page, which polls for the verification prompt.
func (s *Server) authLogin(c echo.Context) error {
	if err := s.auth.StartDeviceLogin(); err != nil {
		return s.renderError(c, err)
	}

	return c.Redirect(http.StatusSeeOther, "/")
}

// authStatus reports the credential lifecycle as JSON. The login page polls
// it to pick up the verification prompt and the completion signal without
// holding a request open.
func (s *Server) authStatus(c echo.Context) error {
	st := s.auth.Status()

	resp := statusResponse{State: st.State.String()}
	if st.Prompt != nil {
		resp.UserCode = st.Prompt.UserCode
		resp.VerificationURI = st.Prompt.VerificationURI
	}

	if st.Err != nil {
		resp.Error = st.Err.Error()
	}

	return c.JSON(http.StatusOK, resp)
}

// upload stores a multipart file at the remote path from the form. An empty
// remote path defaults to the uploaded file's own name at the drive root.
func (s *Server) upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return s.renderError(c, fmt.Errorf("%w: missing file field", graph.ErrInvalidPath))
	}

	remote := c.FormValue("remote")
	if remote == "" {
		remote = "/" + fh.Filename
	}

	src, err := fh.Open()
	if err != nil {
		return s.renderError(c, fmt.Errorf("opening uploaded file: %w", err))
	}
	defer src.Close()

	if _, err := s.drive.Upload(c.Request().Context(), remote, src); err != nil {
		return s.renderError(c, err)
	}

	return c.Redirect(http.StatusSeeOther, "/")
}

// mkdir creates a folder at the path from the form.
func (s *Server) mkdir(c echo.Context) error {
	if _, err := s.drive.CreateFolder(c.Request().Context(), c.FormValue("path")); err != nil {
		return s.renderError(c, err)
	}

	return c.Redirect(http.StatusSeeOther, "/")
}

// deleteItem removes the item at the path from the query string.
func (s *Server) deleteItem(c echo.Context) error {
	if err := s.drive.Delete(c.Request().Context(), c.QueryParam("path")); err != nil {
		return s.renderError(c, err)
	}

	return c.Redirect(http.StatusSeeOther, "/")
}

// download streams the item at the path from the query string back to the
// browser as an attachment. Content is streamed straight through — nothing
// is buffered to disk.
func (s *Server) download(c echo.Context) error {
	remote, err := graph.NormalizePath(c.QueryParam("path"))
	if err != nil {
		return s.renderError(c, err)
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, echo.MIMEOctetStream)
	resp.Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", path.Base(remote)))

	if _, err := s.drive.Download(c.Request().Context(), remote, resp); err != nil {
		// Once bytes have gone out the response cannot be rewritten into
		// an error page; the truncated transfer is logged instead.
		if resp.Committed {
			s.logger.Error("download aborted mid-stream",
				slog.String("path", remote),
				slog.String("error", err.Error()),
			)

			return nil
		}

		resp.Header().Del(echo.HeaderContentDisposition)
		resp.Header().Del(echo.HeaderContentType)

		return s.renderError(c, err)
	}

	return nil
}

// renderError maps an error to its category and renders a distinct,
// actionable page instead of propagating a raw fault.
func (s *Server) renderError(c echo.Context, err error) error {
	var (
		authErr   *auth.AuthError
		remoteErr *graph.RemoteError
		cfgErr    *config.ConfigError
	)

	data := errorData{
		Status:  http.StatusInternalServerError,
		Title:   "Internal error",
		Message: err.Error(),
	}

	switch {
	case errors.Is(err, graph.ErrInvalidPath):
		data.Status = http.StatusBadRequest
		data.Title = "Invalid path"
	case errors.Is(err, auth.ErrNotAuthenticated):
		data.Status = http.StatusUnauthorized
		data.Title = "Not signed in"
		data.Message = "Sign in from the start page before using the console."
	case errors.As(err, &authErr):
		data.Status = http.StatusUnauthorized
		data.Title = "Authentication failed"
	case errors.As(err, &remoteErr):
		data.Status = http.StatusBadGateway
		data.Title = fmt.Sprintf("OneDrive request failed (HTTP %d)", remoteErr.StatusCode)
	case errors.As(err, &cfgErr):
		data.Status = http.StatusInternalServerError
		data.Title = "Configuration error"
	}

	s.logger.Error("request failed",
		slog.String("uri", c.Request().RequestURI),
		slog.Int("status", data.Status),
		slog.String("error", err.Error()),
	)

	return c.Render(data.Status, "error.html", data)
}
