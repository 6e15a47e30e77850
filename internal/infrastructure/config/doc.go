// Package config handles loading and validating TrainLink configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with TRAINLINK_* environment variables
//   - Validation of required fields, reporting every problem at once
//   - Default value handling
//
// Sensitive values (MQTT password, InfluxDB token) should be set via
// environment variables rather than committed to the config file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, s := range cfg.Registry.Seed {
//	    registry.Add(loco.New(s.Name, s.Address))
//	}
package config
