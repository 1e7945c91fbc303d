package config

const (
	// Prefix of all environment configurations
	EnvConfigPrefix = "BLOCKY_"
	// Environment variable with the path of the config file or folder
	ConfigFilePath = "BLOCKY_CONFIG_FILE"
	// Legacy environment variable with the path of the config file or folder
	ConfigFilePathOld = "CONFIG_FILE"
)
