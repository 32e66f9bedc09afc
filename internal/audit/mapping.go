package audit

import "strings"

// ActionResource holds action and resource derived from an HTTP route.
type ActionResource struct {
	Action   string
	Resource string
}

// ParseRoute returns action and resource for a chi route pattern (e.g.
// POST /v1/apikeys/{id}/revoke). Resource is the first path segment after the
// version prefix; action is the trailing verb segment, or one derived from
// the method for collection routes (POST /v1/apikeys -> create).
func ParseRoute(method, pattern string) ActionResource {
	segs := splitRoute(pattern)
	if len(segs) == 0 {
		return ActionResource{Action: strings.ToLower(method), Resource: "unknown"}
	}
	resource := strings.TrimSuffix(segs[0], "s")
	last := segs[len(segs)-1]
	switch {
	case len(segs) > 1 && !isParam(last):
		// Verb routes: /v1/auth/login, /v1/mfa/totp/enroll, /v1/apikeys/{id}/revoke.
		return ActionResource{Action: last, Resource: resource}
	case method == "POST":
		return ActionResource{Action: "create", Resource: resource}
	case method == "DELETE":
		return ActionResource{Action: "delete", Resource: resource}
	case method == "GET" && isParam(last):
		return ActionResource{Action: "get", Resource: resource}
	case method == "GET":
		return ActionResource{Action: "list", Resource: resource}
	default:
		return ActionResource{Action: strings.ToLower(method), Resource: resource}
	}
}

// splitRoute strips the version prefix and returns the path segments.
func splitRoute(pattern string) []string {
	pattern = strings.Trim(pattern, "/")
	segs := strings.Split(pattern, "/")
	if len(segs) > 0 && (segs[0] == "v1" || segs[0] == "dev") {
		segs = segs[1:]
	}
	out := segs[:0]
	for _, s := range segs {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func isParam(seg string) bool {
	return strings.HasPrefix(seg, "{") || seg == "*"
}
