package main

import "time"

// Flag structs decouple cobra from logic for testing.

// GlobalFlags holds persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
}

// StatusFlags holds flags for the status command.
type StatusFlags struct {
	APIUrl     string
	APITimeout time.Duration
}
