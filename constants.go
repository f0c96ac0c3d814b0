// +build !release

package main

const (
	DEBUG                   = true
	SecretsPath             = "secrets-debug.json"
	DefaultListenAddress    = ":8089"
	MaxDBconnectionPoolSize = 30
	Environment             = "development"
)
