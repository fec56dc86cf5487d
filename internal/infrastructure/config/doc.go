// Package config handles loading, validating and saving taskt settings.
//
// This package manages:
//   - Loading settings from YAML files
//   - Overriding with TASKT_* environment variables
//   - Falling back to defaults when the settings file is unusable
//   - Writing the settings document back to disk
//
// Security Considerations:
//   - The listener auth key is stored in the settings file; Save writes it with 0600
//   - Prefer TASKT_LISTENER_AUTH_KEY over storing the key in shared files
//
// Usage:
//
//	cfg, err := config.LoadOrDefault("taskt.yaml")
//	if err != nil {
//	    logger.Warn("settings fallback", "error", err)
//	}
//	fmt.Println(cfg.Listener.Port)
package config
