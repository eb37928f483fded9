// Package config loads runtime configuration for the lifedash CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the backend gRPC endpoint
//	-r string   base URL of the realtime feed (ws:// or wss://)
//	-d string   path of the SQLite cache file
//	-t string   access token
//	-i int      online status check interval (seconds)
//	-l string   log file; logs go to stderr when empty
//	-v string   log level (debug, info, warn, error)
//
// # JSON schema
//
// Intervals use timex.Duration, so values can be either strings like "3s" or
// integer nanoseconds. Missing keys keep their default:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "realtime_url": "ws://127.0.0.1:8081",
//	  "cache_path": "/home/me/.lifedash/cache.db",
//	  "cache_prefix": "lifedash",
//	  "cache_passphrase": "",
//	  "access_token": "",
//	  "online_check_interval": "3s",
//	  "settings_debounce": "300ms",
//	  "log_file": "/home/me/.lifedash/cli.log",
//	  "log_level": "info"
//	}
//
// The package does not read environment variables.
package config
