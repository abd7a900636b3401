package gateway

import (
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/mcdev12/rankparty/go/internal/randcode"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320 // mobile-friendly size

// QRHandler serves PNG QR codes for room join links and team pairing codes
type QRHandler struct {
	// PublicURL is the base URL phones open, e.g. http://192.168.1.20:3000.
	// Empty means derive it from the request.
	PublicURL string
	router    *httprouter.Router
}

// NewQRHandler creates a QR handler
func NewQRHandler(publicURL string) *QRHandler {
	h := &QRHandler{PublicURL: strings.TrimSuffix(publicURL, "/")}
	h.router = httprouter.New()
	h.router.GET("/qr/room/:code", h.serve("/join/"))
	h.router.GET("/qr/pairing/:code", h.serve("/pair/"))
	return h
}

func (h *QRHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *QRHandler) serve(prefix string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code := strings.ToUpper(ps.ByName("code"))
		if !randcode.Valid(code, randcode.Length) {
			http.Error(w, "invalid code", http.StatusBadRequest)
			return
		}

		png, err := qrcode.Encode(h.baseURL(r)+prefix+code, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(png)
	}
}

func (h *QRHandler) baseURL(r *http.Request) string {
	if h.PublicURL != "" {
		return h.PublicURL
	}
	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

// RegisterRoutes registers the QR routes with an HTTP mux
func (h *QRHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/qr/", h)
}
