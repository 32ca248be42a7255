package config

// Settings keys, named after the constants of the legacy PHP configuration.
const (
	KeyDBHost            = "DB_HOST"
	KeyDBPort            = "DB_PORT"
	KeyDBDriver          = "DB_DRIVER"
	KeyDBName            = "DB_NAME"
	KeyDBUser            = "DB_USER"
	KeyDBPass            = "DB_PASS"
	KeyDBCharset         = "DB_CHARSET"
	KeyAppName           = "APP_NAME"
	KeyAppVersion        = "APP_VERSION"
	KeyAppURL            = "APP_URL"
	KeyHashAlgo          = "HASH_ALGO"
	KeySessionTimeout    = "SESSION_TIMEOUT"
	KeyMaxFileSize       = "MAX_FILE_SIZE"
	KeyUploadPath        = "UPLOAD_PATH"
	KeyAllowedExtensions = "ALLOWED_EXTENSIONS"
	KeySMSGateway        = "SMS_GATEWAY"
	KeySMSAPIKey         = "SMS_API_KEY"
	KeySMSSenderID       = "SMS_SENDER_ID"
	KeyDebugMode         = "DEBUG_MODE"
	KeyTimezone          = "TIMEZONE"
)

var secretKeys = map[string]bool{
	KeyDBPass:    true,
	KeySMSAPIKey: true,
}

// Settings returns the configuration set as a flat key/value view. The map is
// built on every call; changing it does not affect c.
func (c *Config) Settings() map[string]any {
	exts := make([]string, len(c.Upload.AllowedExtensions))
	copy(exts, c.Upload.AllowedExtensions)
	return map[string]any{
		KeyDBHost:            c.Database.Host,
		KeyDBPort:            c.Database.Port,
		KeyDBDriver:          c.Database.Driver,
		KeyDBName:            c.Database.Name,
		KeyDBUser:            c.Database.User,
		KeyDBPass:            c.Database.Password,
		KeyDBCharset:         c.Database.Charset,
		KeyAppName:           c.App.Name,
		KeyAppVersion:        c.App.Version,
		KeyAppURL:            c.App.URL,
		KeyHashAlgo:          c.Security.HashAlgo,
		KeySessionTimeout:    c.Security.SessionTimeout,
		KeyMaxFileSize:       c.Upload.MaxFileSize,
		KeyUploadPath:        c.Upload.Path,
		KeyAllowedExtensions: exts,
		KeySMSGateway:        c.SMS.Gateway,
		KeySMSAPIKey:         c.SMS.APIKey,
		KeySMSSenderID:       c.SMS.SenderID,
		KeyDebugMode:         c.App.Debug,
		KeyTimezone:          c.App.Timezone,
	}
}

// MaskedSettings is Settings with non-empty secrets replaced by "******".
func (c *Config) MaskedSettings() map[string]any {
	settings := c.Settings()
	for key := range secretKeys {
		if s, ok := settings[key].(string); ok && s != "" {
			settings[key] = "******"
		}
	}
	return settings
}
