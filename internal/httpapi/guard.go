package httpapi

import (
	"bytes"
	"html/template"
	"log"
	"net/http"

	"perfumestock/backend/internal/domain"
)

type GuardOutcome int

const (
	GuardRender GuardOutcome = iota
	GuardRedirectLogin
	GuardRedirectHome
)

type GuardDecision struct {
	Outcome  GuardOutcome
	Location string
}

// Decide resolves access to a page. A nil actor is sent to /login, an actor
// whose role is not listed in required is sent home. An empty required list
// admits any authenticated actor.
func Decide(actor *domain.Actor, required []string) GuardDecision {
	if actor == nil || actor.UserID == "" {
		return GuardDecision{Outcome: GuardRedirectLogin, Location: "/login"}
	}
	if len(required) > 0 && !isRoleAllowed(actor.Role, required) {
		return GuardDecision{Outcome: GuardRedirectHome, Location: "/"}
	}
	return GuardDecision{Outcome: GuardRender}
}

type page struct {
	Path  string
	Title string
	Roles []string
}

var pages = []page{
	{Path: "/", Title: "Dashboard"},
	{Path: "/inventory", Title: "Inventario"},
	{Path: "/flasks", Title: "Frascos y alcohol"},
	{Path: "/sales", Title: "Ventas"},
	{Path: "/reports", Title: "Reportes", Roles: []string{domain.RoleAdmin, domain.RoleSupervisor}},
	{Path: "/users", Title: "Usuarios", Roles: []string{domain.RoleAdmin}},
}

var pageShellTmpl = template.Must(template.New("page").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>PerfumeStock | {{.Title}}</title>
</head>
<body data-page="{{.Path}}">
  <header><strong>PerfumeStock</strong> {{.Title}} <span>{{.User}} ({{.Role}})</span></header>
  <main id="app"></main>
</body>
</html>
`))

// pageHandler decides before rendering so a redirect never computes page data.
func (a *API) pageHandler(p page) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := actorFromRequest(r)
		decision := Decide(actor, p.Roles)
		if decision.Outcome != GuardRender {
			http.Redirect(w, r, decision.Location, http.StatusFound)
			return
		}

		var buf bytes.Buffer
		if err := pageShellTmpl.Execute(&buf, map[string]any{
			"Path":  p.Path,
			"Title": p.Title,
			"User":  actor.Name,
			"Role":  actor.Role,
		}); err != nil {
			log.Printf("render page %s: %v", p.Path, err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}
}
