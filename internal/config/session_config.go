package config

import "time"

const (
	cookieSecretVar = "SESSION_COOKIE_SECRET"
	sessionTTLVar   = "SESSION_TTL"
	messageTTLVar   = "SAML_MESSAGE_TTL"
)

type Sessions struct{}

var _ SessionConfig = Sessions{}

// GetCookieSecret returns the HMAC secret for the session cookie. An empty
// value tells the server to generate an ephemeral secret at startup, which
// invalidates all sessions on restart.
func (Sessions) GetCookieSecret() string {
	return GetEnv(cookieSecretVar, "")
}

func (Sessions) GetSessionTTL() time.Duration {
	return durationEnv(sessionTTLVar, 8*time.Hour)
}

// GetMessageTTL bounds how long an inbound SAML message id is remembered
// for replay defense and how long an outbound logout request may wait for
// its response.
func (Sessions) GetMessageTTL() time.Duration {
	return durationEnv(messageTTLVar, 10*time.Minute)
}

func durationEnv(envVar string, defaultValue time.Duration) time.Duration {
	value := GetEnv(envVar, "")
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
