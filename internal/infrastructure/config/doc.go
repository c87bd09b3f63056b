// Package config handles loading and validating Trailobot Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (TRAILOBOT_*)
//   - Validation of required fields
//   - Default value handling, including the derived bridge endpoint
//
// Security Considerations:
//   - Sensitive values (MQTT password, InfluxDB token, JWT secret) should be
//     set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Bridge.Endpoint())
package config
