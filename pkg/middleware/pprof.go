package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/PackStore/pkg/httputil"
)

// RegisterPprof mounts /debug/pprof behind an IP allowlist. With no CIDRs
// configured nothing is mounted.
func RegisterPprof(r chi.Router, allowedCIDRs []string, l *slog.Logger) {
	if len(allowedCIDRs) == 0 {
		return
	}
	r.Group(func(r chi.Router) {
		r.Use(IPAllowlist(allowedCIDRs, l))
		r.HandleFunc("/debug/pprof/*", pprof.Index)
		r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		r.HandleFunc("/debug/pprof/profile", pprof.Profile)
		r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		r.HandleFunc("/debug/pprof/trace", pprof.Trace)
	})
}

// ParseCIDRs parses cidrs, logging and skipping invalid entries.
func ParseCIDRs(cidrs []string, l *slog.Logger) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			l.Warn("invalid allowlist CIDR, skipping",
				slog.String("cidr", cidr),
				slog.String("error", err.Error()),
			)
			continue
		}
		nets = append(nets, n)
	}
	return nets
}

// IPAllowlist rejects requests whose peer address is outside cidrs with 403.
// Forwarded headers are ignored so a client cannot spoof its way in.
func IPAllowlist(cidrs []string, l *slog.Logger) func(http.Handler) http.Handler {
	nets := ParseCIDRs(cidrs, l)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := remoteHost(r)
			if !containsIP(nets, net.ParseIP(host)) {
				l.Warn("access denied by IP allowlist",
					slog.String("ip", host),
					slog.String("path", r.URL.Path),
				)
				httputil.WriteJSON(w, http.StatusForbidden, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "FORBIDDEN", Message: "access restricted by IP allowlist"},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func containsIP(nets []*net.IPNet, ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
