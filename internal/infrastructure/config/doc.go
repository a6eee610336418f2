// Package config loads the hub's YAML configuration, applies GRAYHUB_*
// environment overrides and validates the result, including the static
// device list under hub.devices.
//
// Secrets such as the MQTT password and InfluxDB token are better supplied
// through the environment than kept in the file.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	loc, err := cfg.Location()
package config
