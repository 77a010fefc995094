package audit

import (
	"net/http"
	"strings"
)

// ActionResource holds action and resource derived from an HTTP route.
type ActionResource struct {
	Action   string
	Resource string
}

// Route overrides for endpoints whose verb does not describe the event.
var routeOverrides = map[string]ActionResource{
	"PUT /api/admin/users/{id}/admin": {Action: "admin_flag_changed", Resource: "user"},
	"POST /api/admin/sessions/sweep":  {Action: "sweep", Resource: "session"},
	"POST /api/auth/logout":           {Action: "logout", Resource: "session"},
	"POST /api/login":                 {Action: "password_login", Resource: "session"},
}

// ParseRoute returns action and resource for an HTTP method and mux path template
// (e.g. GET /api/admin/audit). Action is a verb from the method: get or list for GET (list when
// the template does not end in a path variable), create, update, delete. Resource is the last
// static segment, singularised by dropping a trailing "s".
func ParseRoute(method, template string) ActionResource {
	if ar, ok := routeOverrides[method+" "+template]; ok {
		return ar
	}
	segs := strings.Split(strings.Trim(template, "/"), "/")
	resource := "unknown"
	endsInVar := false
	for i := len(segs) - 1; i >= 0; i-- {
		s := segs[i]
		if s == "" {
			continue
		}
		if strings.HasPrefix(s, "{") {
			if i == len(segs)-1 {
				endsInVar = true
			}
			continue
		}
		if s == "api" {
			break
		}
		resource = strings.TrimSuffix(s, "s")
		break
	}
	return ActionResource{Action: methodToAction(method, endsInVar), Resource: resource}
}

func methodToAction(method string, endsInVar bool) string {
	switch method {
	case http.MethodGet, http.MethodHead:
		if endsInVar {
			return "get"
		}
		return "list"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return strings.ToLower(method)
	}
}
