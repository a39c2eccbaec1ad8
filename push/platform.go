package push

import "strings"

// Platform identifies the client platform reported to the backend at
// registration time.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
	PlatformUnknown Platform = "unknown"
)

// DetectPlatform infers the client platform from a client-characteristics
// string (a user-agent analogue). It is a heuristic: anything that
// mentions an Apple mobile device wins over the embedded browser engine,
// Android is matched next, and any other browser engine falls through to
// web.
func DetectPlatform(characteristics string) Platform {
	c := strings.ToLower(characteristics)
	switch {
	case c == "":
		return PlatformUnknown
	case strings.Contains(c, "iphone"), strings.Contains(c, "ipad"), strings.Contains(c, "ipod"):
		return PlatformIOS
	case strings.Contains(c, "android"):
		return PlatformAndroid
	case strings.Contains(c, "mozilla"), strings.Contains(c, "webkit"), strings.Contains(c, "gecko"):
		return PlatformWeb
	default:
		return PlatformUnknown
	}
}
