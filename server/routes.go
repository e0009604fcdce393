package server

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteHome, s.HomeHandler())

	// LOGIN
	s.RegisterRouteFunc("GET "+RouteLogin, s.LoginHandler())
	s.RegisterRouteFunc("POST "+RouteACS, s.ACSHandler())

	// LOGOUT - one logical endpoint; the orchestrator classifies the
	// interaction from whatever SAML payload (if any) the request carries
	s.RegisterRouteFunc("GET "+RouteLogout, s.LogoutHandler())
	s.RegisterRouteFunc("POST "+RouteLogout, s.LogoutHandler())

	// METADATA
	s.RegisterRouteFunc("GET "+RouteMetadata, s.MetadataHandler())
}
