// Package config loads runtime configuration for the handlewatch console.
//
// Sources, later ones winning:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config. Comments and trailing
//     commas are accepted.
//  3. Command-line flags.
//
// Flags
//
//	-a string   address:port of the daemon gRPC endpoint
//	-o int      operator id to log in as
//	-i int      event stream reconnect interval (seconds)
//
// JSON
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "operator_id": 1001,
//	  "reconnect_interval": "3s",
//	  "request_timeout": "30s"
//	}
package config
