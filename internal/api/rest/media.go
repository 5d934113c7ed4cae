package rest

import (
	"net/http"
	"strings"
)

// NewMediaHandler serves the media tree on the media port. Track URIs
// carry the absolute paths recorded in the album database, so the
// configured drop prefix is stripped before resolving against the
// media root. Album art requests arrive without the prefix and pass
// through untouched.
func NewMediaHandler(root, dropPrefix string) http.Handler {
	fs := http.FileServer(http.Dir(root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		if dropPrefix != "" && strings.HasPrefix(p, dropPrefix) {
			p = strings.TrimPrefix(p, dropPrefix)
			if !strings.HasPrefix(p, "/") {
				p = "/" + p
			}
			u := *r.URL
			u.Path = p
			u.RawPath = ""
			r2 := new(http.Request)
			*r2 = *r
			r2.URL = &u
			r = r2
		}
		fs.ServeHTTP(w, r)
	})
}
