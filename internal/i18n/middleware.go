package i18n

import "net/http"

// Middleware attaches a request-scoped localizer, honoring the
// Accept-Language header with defaultLang as fallback.
func Middleware(defaultLang string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lang := defaultLang
			if accept := r.Header.Get("Accept-Language"); accept != "" {
				lang = accept + "," + defaultLang
			}
			loc := NewLocalizer(lang)
			next.ServeHTTP(w, r.WithContext(WithLocalizer(r.Context(), loc)))
		})
	}
}
