package demoapp

import (
	"fmt"
	"net/url"
	"strings"
)

// Route names.
const (
	RouteHome      = "home"
	RoutePostList  = "post_list"
	RoutePostShow  = "post_show"
	RouteFeed      = "feed"
	RouteAccount   = "account"
	RouteAdmin     = "admin_dashboard"
	RoutePrivate   = "private"
	RouteAPIStatus = "api_status"
)

// routes maps route names to gin path patterns.
var routes = map[string]string{
	RouteHome:      "/",
	RoutePostList:  "/posts",
	RoutePostShow:  "/posts/:id",
	RouteFeed:      "/feed.xml",
	RouteAccount:   "/account",
	RouteAdmin:     "/admin",
	RoutePrivate:   "/private",
	RouteAPIStatus: "/api/status",
}

// Router generates URLs for the application's named routes. Parameters
// not consumed by the path become the query string.
type Router struct{}

// Generate implements container.Router.
func (Router) Generate(route string, params map[string]string) (string, error) {
	pattern, ok := routes[route]
	if !ok {
		return "", fmt.Errorf("route %q does not exist", route)
	}
	used := make(map[string]bool, len(params))
	segments := strings.Split(pattern, "/")
	for i, seg := range segments {
		if !strings.HasPrefix(seg, ":") {
			continue
		}
		name := seg[1:]
		v, ok := params[name]
		if !ok || v == "" {
			return "", fmt.Errorf("route %q: missing parameter %q", route, name)
		}
		segments[i] = url.PathEscape(v)
		used[name] = true
	}
	path := strings.Join(segments, "/")

	query := url.Values{}
	for k, v := range params {
		if !used[k] {
			query.Set(k, v)
		}
	}
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return path, nil
}
