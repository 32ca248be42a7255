package constants

// System setting keys written once by the installer.
const (
	SettingInstalledOn = "installed_on"
	SettingAppVersion  = "app_version"
	SettingAppName     = "app_name"
)

// InstallSettings contains the keys recorded at installation time, in key order.
var InstallSettings = []string{SettingAppName, SettingAppVersion, SettingInstalledOn}

