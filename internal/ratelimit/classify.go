// Package ratelimit admits or rejects requests by per client, per route class token buckets.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

type RouteClass string

const (
	ClassLogin    RouteClass = "auth:login"
	ClassRegister RouteClass = "auth:register"
	ClassRefresh  RouteClass = "auth:refresh"
	ClassLogout   RouteClass = "auth:logout"
	ClassDefault  RouteClass = "default"
)

// Route classes by path prefix, the first match wins
var routeClasses = []struct {
	prefix string
	class  RouteClass
}{
	{"/auth/login", ClassLogin},
	{"/auth/register", ClassRegister},
	{"/auth/refresh", ClassRefresh},
	{"/auth/logout", ClassLogout},
}

// Key identifies a bucket
type Key struct {
	Client string
	Class  RouteClass
}

func (k Key) String() string {
	return k.Client + ":" + string(k.Class)
}

// Classify request by client address and route
func Classify(r *http.Request) Key {
	return Key{
		Client: clientIP(r),
		Class:  routeClass(r.URL.Path),
	}
}

func routeClass(path string) RouteClass {
	for _, rc := range routeClasses {
		if strings.HasPrefix(path, rc.prefix) {
			return rc.class
		}
	}
	return ClassDefault
}

// First X-Forwarded-For entry if present, remote address host otherwise
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); strings.TrimSpace(forwarded) != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
