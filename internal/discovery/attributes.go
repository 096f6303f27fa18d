package discovery

import (
	"strings"

	"github.com/automonocle/automonocle/internal/hass"
)

// StreamFromAttributes returns the first camera attribute that carries
// a stream URL. Integrations disagree on the attribute name, so a
// fixed priority list is probed; a value qualifies when it contains a
// scheme separator.
func StreamFromAttributes(attrs hass.CameraAttributes) (string, bool) {
	candidates := []string{
		attrs.StreamSource,
		attrs.RTSPURL,
		attrs.VideoURL,
		attrs.StreamURL,
		attrs.RTSPStream,
	}
	for _, v := range candidates {
		if v != "" && strings.Contains(v, "://") {
			return v, true
		}
	}
	return "", false
}
