// +build release

package main

const (
	DEBUG                   = false
	SecretsPath             = "secrets.json"
	DefaultListenAddress    = ":8089"
	MaxDBconnectionPoolSize = 30
	Environment             = "production"
)
