package handlers

import (
	"embed"
	"net/http"
	"time"

	"github.com/cyclopcam/staticfiles"
	"github.com/cyclopcam/www"
	"github.com/go-chi/httprate"
	"github.com/julienschmidt/httprouter"
)

//go:embed www
var staticWWW embed.FS

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept-Language")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Routes builds the HTTP handler. Classification routes are rate limited per client IP
// when requestsPerMinute is positive.
func (h *Handler) Routes(requestsPerMinute int) (http.Handler, error) {
	router := httprouter.New()

	plain := func(method, route string, handle httprouter.Handle) {
		www.Handle(h.log, router, method, route, handle)
	}

	limited := func(method, route string, handle httprouter.Handle) {
		if requestsPerMinute <= 0 {
			plain(method, route, handle)
			return
		}
		// One limiter per route, so a burst of JSON calls does not lock out the form.
		limiter := httprate.Limit(requestsPerMinute, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))
		www.Handle(h.log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			limiter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handle(w, r, params)
			})).ServeHTTP(w, r)
		})
	}

	plain("GET", "/", h.Index)
	limited("POST", "/", h.Classify)
	plain("GET", "/health", h.Health)
	plain("GET", "/labels", h.Labels)
	limited("POST", "/predict", h.Predict)
	limited("POST", "/predict/image", h.PredictFromImage)

	static, err := staticfiles.NewCachedStaticFileServer(staticWWW, "www", []string{"/predict", "/labels", "/health"}, h.log, true, nil)
	if err != nil {
		return nil, err
	}
	router.NotFound = static

	return enableCORS(router), nil
}
