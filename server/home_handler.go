package server

import (
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"
)

var homeTemplate = template.Must(template.New("home").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.AppName}}</title></head>
<body>
	<h1>{{.AppName}}</h1>
	{{if .LoggedIn}}
	<p>Signed in as {{.Email}}</p>
	<p><a href="{{.LogoutURL}}">Log out</a></p>
	{{else}}
	<p>You are not signed in.</p>
	<p><a href="{{.LoginURL}}">Log in with your identity provider</a></p>
	{{end}}
</body>
</html>
`))

// HomeHandler renders a minimal landing page reflecting the session state.
func (s *Server) HomeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != RouteHome {
			http.NotFound(w, r)
			return
		}

		data := struct {
			AppName   string
			LoggedIn  bool
			Email     string
			LoginURL  string
			LogoutURL string
		}{
			AppName:   s.config.GetAppName(),
			LoginURL:  RouteLogin,
			LogoutURL: RouteLogout,
		}
		if session, ok := s.currentSession(r); ok {
			data.LoggedIn = true
			data.Email = session.Email
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := homeTemplate.Execute(w, data); err != nil {
			log.Err(err).Msg("failed to render home page")
		}
	}
}
