package api

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/hearthview/hearthview-core/internal/infrastructure/config"
)

// cameraInfo is the public view of a configured camera. Upstream URLs and
// tokens are never exposed to clients.
type cameraInfo struct {
	Name      string `json:"name"`
	StreamURL string `json:"stream_url"`
}

// handleListCameras returns the configured cameras with their proxied
// stream paths.
func (s *Server) handleListCameras(w http.ResponseWriter, _ *http.Request) {
	cameras := make([]cameraInfo, 0, len(s.cameras))
	for _, cam := range s.cameras {
		cameras = append(cameras, cameraInfo{
			Name:      cam.Name,
			StreamURL: "/api/v1/cameras/" + cam.Name + "/stream",
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cameras": cameras,
		"count":   len(cameras),
	})
}

// handleCameraStream reverse-proxies the camera's upstream stream. The
// upstream token stays server-side; clients authenticate with their JWT
// like any other endpoint.
func (s *Server) handleCameraStream(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var cam *config.CameraConfig
	for i := range s.cameras {
		if s.cameras[i].Name == name {
			cam = &s.cameras[i]
			break
		}
	}
	if cam == nil {
		writeNotFound(w, "camera not found: "+name)
		return
	}

	upstream, err := url.Parse(cam.StreamURL)
	if err != nil {
		s.logger.Error("invalid camera stream URL", "camera", cam.Name, "error", err)
		writeInternalError(w, "camera misconfigured")
		return
	}

	token := cam.Token
	proxy := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL = upstream
			req.Host = upstream.Host
			req.Header.Del("Authorization")
			req.Header.Del("Cookie")
			if token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
		},
		// MJPEG streams never terminate; flush each frame immediately.
		FlushInterval: -1,
		ErrorHandler: func(w http.ResponseWriter, _ *http.Request, err error) {
			s.logger.Warn("camera upstream error", "camera", name, "error", err)
			writeError(w, http.StatusBadGateway, ErrCodeUnavailable, "camera upstream unreachable")
		},
	}

	proxy.ServeHTTP(w, r)
}
