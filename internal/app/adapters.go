package app

import (
	"strings"

	"github.com/medlemine/ashport/internal/auth"
	"github.com/medlemine/ashport/internal/database"
	"github.com/medlemine/ashport/internal/storage"
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
	}
}

// ImageStoreConfig converts StorageConfig into the image host client settings.
func (c StorageConfig) ImageStoreConfig() storage.Config {
	return storage.Config{
		Endpoint:      strings.TrimSpace(c.Endpoint),
		AccessKey:     strings.TrimSpace(c.AccessKey),
		SecretKey:     strings.TrimSpace(c.SecretKey),
		Bucket:        strings.TrimSpace(c.Bucket),
		Region:        strings.TrimSpace(c.Region),
		UseSSL:        c.UseSSL,
		PublicBaseURL: strings.TrimSpace(c.PublicBaseURL),
	}
}

// DatabaseOpenConfig converts DatabaseConfig into connection parameters for database.Open.
func (c DatabaseConfig) DatabaseOpenConfig() database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:   strings.TrimSpace(c.Path),
		DSN:    strings.TrimSpace(c.DSN),
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		dbCfg.Host = strings.TrimSpace(c.Postgres.Host)
		dbCfg.Port = c.Postgres.Port
		dbCfg.Name = strings.TrimSpace(c.Postgres.Database)
		dbCfg.User = strings.TrimSpace(c.Postgres.Username)
		dbCfg.Password = strings.TrimSpace(c.Postgres.Password)
	case "mysql":
		dbCfg.Host = strings.TrimSpace(c.MySQL.Host)
		dbCfg.Port = c.MySQL.Port
		dbCfg.Name = strings.TrimSpace(c.MySQL.Database)
		dbCfg.User = strings.TrimSpace(c.MySQL.Username)
		dbCfg.Password = strings.TrimSpace(c.MySQL.Password)
	default:
		// Leave driver as-is to surface unsupported driver error during open.
	}

	return dbCfg
}
