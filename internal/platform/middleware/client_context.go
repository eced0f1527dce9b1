package middleware

import (
	"net"
	"net/http"

	"github.com/fossabot/authrim-sub007/pkg/requestcontext"
)

const (
	// DeviceIDCookie carries the long-lived device identifier minted at login.
	DeviceIDCookie = "device_id"
	// DeviceFingerprintHeader carries the client-computed fingerprint hash.
	DeviceFingerprintHeader = "X-Device-Fingerprint"
)

// ClientContext captures client metadata (IP, User-Agent, device identifiers)
// into the request context so that the evaluation context builder can read it
// without touching the HTTP request.
func ClientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), remoteIP(r), r.UserAgent())
		if cookie, err := r.Cookie(DeviceIDCookie); err == nil && cookie.Value != "" {
			ctx = requestcontext.WithDeviceID(ctx, cookie.Value)
		}
		if fp := r.Header.Get(DeviceFingerprintHeader); fp != "" {
			ctx = requestcontext.WithDeviceFingerprint(ctx, fp)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
