package main

const (
	ExitSuccess       = 0 // Success
	ExitError         = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError   = 2 // Missing credential or invalid configuration
	ExitUpstreamError = 3 // figshare refused the request or returned unusable data
)
