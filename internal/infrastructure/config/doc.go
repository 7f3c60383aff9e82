// Package config handles loading and validating the state store configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with STATESTORE_* environment variables
//   - Validation of required fields (all problems reported together)
//   - Default value handling
//
// Security Considerations:
//   - CouchDB and MQTT credentials should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.CouchDB.Database)
package config
