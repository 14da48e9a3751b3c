// Package config handles loading and validating HCP bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Register addresses and masks in the door section may be written in hex
// (YAML 1.2 integers such as 0x9C41).
//
// Security Considerations:
//   - Sensitive values (MQTT password, InfluxDB token, HomeKit PIN) should be
//     set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("/etc/hcpbridge/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Bridge.DoorID)
package config
