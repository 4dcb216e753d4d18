// Package router assembles the versioned API from domain route groups.
package router

import (
	"net/http"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	middleware []gin.HandlerFunc
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// WithMiddleware applies middleware to every API route, typically
// authentication
func WithMiddleware(mw ...gin.HandlerFunc) RouterOption {
	return func(r *Router) {
		r.middleware = append(r.middleware, mw...)
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds RouteRegistrars to be registered by Setup
func (r *Router) Register(registrars ...RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrars...)
	return r
}

// Setup registers all routes under /api/<version>
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	if len(r.middleware) > 0 {
		api.Use(r.middleware...)
	}
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// RouteInfo describes one registered route and the permission it requires
type RouteInfo struct {
	Method     string
	Path       string
	Permission shared.Permission
}

// DomainGroup is a prefix of routes of one domain. Every route names the
// permission it requires; it is enforced before the handler runs.
type DomainGroup struct {
	name       string
	prefix     string
	routes     []routeDefinition
	middleware []gin.HandlerFunc
}

type routeDefinition struct {
	method     string
	path       string
	permission shared.Permission
	handler    gin.HandlerFunc
}

// NewDomainGroup creates a new domain-specific route group
func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

// Use adds middleware to this group
func (dg *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	dg.middleware = append(dg.middleware, middleware...)
	return dg
}

// Handle registers a route. An empty permission skips the check.
func (dg *DomainGroup) Handle(method, path string, perm shared.Permission, handler gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, routeDefinition{
		method:     method,
		path:       path,
		permission: perm,
		handler:    handler,
	})
	return dg
}

// GET registers a GET route
func (dg *DomainGroup) GET(path string, perm shared.Permission, handler gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodGet, path, perm, handler)
}

// POST registers a POST route
func (dg *DomainGroup) POST(path string, perm shared.Permission, handler gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodPost, path, perm, handler)
}

// PUT registers a PUT route
func (dg *DomainGroup) PUT(path string, perm shared.Permission, handler gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodPut, path, perm, handler)
}

// DELETE registers a DELETE route
func (dg *DomainGroup) DELETE(path string, perm shared.Permission, handler gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodDelete, path, perm, handler)
}

// RegisterRoutes implements RouteRegistrar
func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(dg.prefix)
	if len(dg.middleware) > 0 {
		group.Use(dg.middleware...)
	}
	for _, route := range dg.routes {
		handlers := []gin.HandlerFunc{route.handler}
		if route.permission != "" {
			handlers = append([]gin.HandlerFunc{middleware.RequirePermission(route.permission)}, handlers...)
		}
		group.Handle(route.method, route.path, handlers...)
	}
}

// Routes lists the group's routes with their full group-relative paths
func (dg *DomainGroup) Routes() []RouteInfo {
	out := make([]RouteInfo, len(dg.routes))
	for i, route := range dg.routes {
		out[i] = RouteInfo{
			Method:     route.method,
			Path:       joinPath(dg.prefix, route.path),
			Permission: route.permission,
		}
	}
	return out
}

// Name returns the group name
func (dg *DomainGroup) Name() string {
	return dg.name
}

// Prefix returns the group prefix
func (dg *DomainGroup) Prefix() string {
	return dg.prefix
}

func joinPath(prefix, path string) string {
	switch {
	case path == "" || path == "/":
		return prefix
	case prefix == "" || prefix == "/":
		return path
	default:
		return prefix + path
	}
}
