// Package config handles loading and validating the webhook service configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with WEBHOOK_* environment variables
//   - Validation of required fields and the declared switch set
//   - Default value handling
//
// Security Considerations:
//   - The shared JWT secret should be set via WEBHOOK_JWT_SECRET, not the file
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(len(cfg.Switches))
package config
