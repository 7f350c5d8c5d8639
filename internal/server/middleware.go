package server

import (
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
)

// Middleware wraps an http.Handler.
type Middleware func(next http.Handler) http.Handler

// Chain applies mws so that the first one is outermost.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

var slashRun = regexp.MustCompile(`/{2,}`)

// collapseSlashes rewrites "//api///config" to "/api/config" before routing.
func collapseSlashes(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "//") {
			r.URL.Path = slashRun.ReplaceAllString(r.URL.Path, "/")
			if r.URL.RawPath != "" {
				r.URL.RawPath = slashRun.ReplaceAllString(r.URL.RawPath, "/")
			}
		}
		next.ServeHTTP(w, r)
	})
}

func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.Printf("level=ERROR event=handler_panic method=%s path=%q panic=%q", r.Method, r.URL.Path, fmt.Sprint(rec))
			writeJSON(w, http.StatusInternalServerError, okResponse{OK: false, Msg: "internal error"})
		}()
		next.ServeHTTP(w, r)
	})
}

const (
	allowOriginHeader  = "Access-Control-Allow-Origin"
	allowMethodsHeader = "Access-Control-Allow-Methods"
	allowHeadersHeader = "Access-Control-Allow-Headers"
	defaultCORSMethods = "GET,HEAD,PUT,PATCH,POST,DELETE"
)

type corsPolicy struct {
	anyOrigin bool
	origins   map[string]bool
}

func newCORSPolicy(allowOrigins []string) *corsPolicy {
	p := &corsPolicy{origins: make(map[string]bool, len(allowOrigins))}
	for _, o := range allowOrigins {
		if o == "*" {
			p.anyOrigin = true
		}
		p.origins[o] = true
	}
	return p
}

func (p *corsPolicy) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.setHeaders(w, r)
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (p *corsPolicy) setHeaders(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	origin := r.Header.Get("Origin")
	switch {
	case p.anyOrigin:
		h.Set(allowOriginHeader, "*")
	case origin != "" && p.origins[origin]:
		h.Set(allowOriginHeader, origin)
		h.Add("Vary", "Origin")
	}
	if r.Method != http.MethodOptions {
		return
	}
	h.Set(allowMethodsHeader, defaultCORSMethods)
	if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
		h.Set(allowHeadersHeader, reqHeaders)
		h.Add("Vary", "Access-Control-Request-Headers")
	}
}
