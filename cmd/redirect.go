package main

import (
	"net/http"
	"strings"

	"geofence/internal/logger"

	"github.com/rs/zerolog"
)

// redirectHTTP：启动 HTTP 重定向到 HTTPS（不改变 HTTPS 运行端口）
func redirectHTTP(l *zerolog.Logger, redirAddr, httpsAddr string) {
	httpsPort := httpsAddr[strings.LastIndex(httpsAddr, ":")+1:]
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		baseHost := r.Host
		if i := strings.LastIndex(baseHost, ":"); i != -1 {
			baseHost = baseHost[:i]
		}
		target := "https://" + baseHost
		if httpsPort != "" && httpsPort != "443" {
			target += ":" + httpsPort
		}
		target += r.URL.RequestURI()
		http.Redirect(w, r, target, http.StatusMovedPermanently)
	})
	l.Info().Str("addr", redirAddr).Str("to", "https"+httpsAddr).Msg("http_redirect_listening")
	if err := http.ListenAndServe(redirAddr, logger.AccessMiddleware(l)(mux)); err != nil {
		l.Error().Err(err).Msg("http_redirect_error")
	}
}
