package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteHome = "/"

	// SAML endpoints
	RouteLogin    = "/saml/login"
	RouteACS      = "/saml/acs"
	RouteLogout   = "/saml/logout"
	RouteMetadata = "/saml/metadata"
)
