package main

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/punchdeck/go/internal/gateway"
	"github.com/mcdev12/punchdeck/go/internal/serverconfig"
)

// setupServer builds the HTTP server of one listener. Each listener owns its connection
// manager; the service mirrors broadcasts between them.
func setupServer(svc *gateway.Service, name, addr string, cfg serverconfig.Config, secure bool) *http.Server {
	mux := http.NewServeMux()

	cm := svc.NewListener(name)
	svc.RegisterRoutes(mux, cm)

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	var handler http.Handler = c.Handler(mux)
	if !secure && cfg.RedirectHTTPToHTTPS && cfg.TLSEnabled() {
		handler = redirectToHTTPS(handler, cfg.HTTPSPort)
	}
	if !secure {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// redirectToHTTPS sends page loads to the TLS listener. WebSocket upgrades stay on the
// plain listener so older displays keep working.
func redirectToHTTPS(next http.Handler, httpsPort int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			next.ServeHTTP(w, r)
			return
		}

		host := r.Host
		if h, _, err := net.SplitHostPort(r.Host); err == nil {
			host = h
		}
		target := "https://" + net.JoinHostPort(host, strconv.Itoa(httpsPort)) + r.URL.RequestURI()
		http.Redirect(w, r, target, http.StatusFound)
	})
}
