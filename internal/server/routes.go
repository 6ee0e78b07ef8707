package server

import (
	"github.com/danielgtaylor/huma/v2"

	v1 "github.com/gosuda/campus/internal/api/v1"
)

func registerAuthRoutes(api huma.API, authSvc v1.AuthService, cookie v1.SessionCookie) {
	v1.RegisterAuthRoutes(api, authSvc, cookie)
}

func registerOAuthRoutes(api huma.API, provider v1.OAuthProvider, authSvc v1.AuthService, cookie v1.SessionCookie) {
	v1.RegisterOAuthRoutes(api, provider, authSvc, cookie)
}

// registerCatalogRoutes mounts routes that read global data and never touch
// tenant-owned rows.
func registerCatalogRoutes(api huma.API, store v1.DataStore) {
	v1.RegisterInstituteRoutes(api, store)
}

func registerAuditRoutes(api huma.API, store v1.DataStore) {
	v1.RegisterSecurityEventRoutes(api, store)
}

func registerSessionRoutes(api huma.API) {
	v1.RegisterSessionRoutes(api)
}

// registerScopedRoutes mounts routes over tenant-owned rows. They are only
// reachable with a resolved institute.
func registerScopedRoutes(api huma.API, store v1.DataStore) {
	v1.RegisterStudentRoutes(api, store)
}
