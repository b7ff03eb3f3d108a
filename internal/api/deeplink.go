package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
)

// DeepLinkHandler serves the wa.me link that opens a chat with the bot.
type DeepLinkHandler struct {
	link string
}

// NewDeepLinkHandler builds the link for number with text pre-filled.
func NewDeepLinkHandler(number, text string) *DeepLinkHandler {
	number = strings.TrimPrefix(strings.TrimSpace(number), "+")
	return &DeepLinkHandler{
		link: "https://wa.me/" + number + "?text=" + url.QueryEscape(text),
	}
}

// QRCode handles GET /qr-code.
func (h *DeepLinkHandler) QRCode(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]string{
		"wa_link":      h.link,
		"message":      "Scan this QR code or click the link to start assessment",
		"instructions": "Use a QR code generator to create a QR code from wa_link",
	})
}

// RegisterRoutes mounts the deep-link route.
func (h *DeepLinkHandler) RegisterRoutes(r chi.Router) {
	r.Get("/qr-code", h.QRCode)
}
