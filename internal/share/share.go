// Package share builds the payload for the map's share action.
package share

import (
	"errors"
	"net/url"
	"strings"
)

// Default share texts.
const (
	DefaultTitle = "Mapa de Zonas Inundables - Comunitat Valenciana"
	DefaultText  = "Consulta las zonas inundables y cauces de ríos en la Comunitat Valenciana"
)

// WhatsAppBase is the fallback share endpoint for browsers without the Web
// Share API.
const WhatsAppBase = "https://wa.me/?text="

// Payload is what navigator.share receives, plus the fallback link.
type Payload struct {
	Title    string `json:"title" doc:"Share title"`
	Text     string `json:"text" doc:"Share text"`
	URL      string `json:"url" format:"uri" doc:"Page being shared"`
	Fallback string `json:"fallback" format:"uri" doc:"WhatsApp link used when native sharing is unavailable"`
}

// Link builds the share payload for pageURL. Empty title and text take the
// defaults.
func Link(title, text, pageURL string) (Payload, error) {
	if pageURL == "" {
		return Payload{}, errors.New("share: page url is required")
	}
	u, err := url.Parse(pageURL)
	if err != nil || !u.IsAbs() {
		return Payload{}, errors.New("share: page url must be absolute")
	}
	if title == "" {
		title = DefaultTitle
	}
	if text == "" {
		text = DefaultText
	}
	return Payload{
		Title:    title,
		Text:     text,
		URL:      u.String(),
		Fallback: WhatsAppBase + escapeComponent(text+": "+u.String()),
	}, nil
}

// escapeComponent encodes s like the browser's encodeURIComponent for the
// characters share texts contain: spaces become %20, not +.
func escapeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
