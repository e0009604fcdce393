package config

import "time"

type Config interface {
	EnvConfig
	SamlConfig
	SessionConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetEnv() string
}

type SamlConfig interface {
	GetEntityID() string
	GetCertFile() string
	GetKeyFile() string
	GetIdPMetadataFile() string
}

type SessionConfig interface {
	GetCookieSecret() string
	GetSessionTTL() time.Duration
	GetMessageTTL() time.Duration
}

type mainConfig struct {
	EnvVars
	Saml
	Sessions
}

func New() Config {
	return mainConfig{}
}
