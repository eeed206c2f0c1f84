// Package config loads the sales coach client configuration.
//
// Values come from built-in defaults, then an optional YAML file, then
// command-line flags applied by the caller. The API key is resolved
// explicitly with ResolveAPIKey and handed to the session.
package config
