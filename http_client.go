package main

import (
	"net/http"
	"time"
)

// Shared client for calls to the remote transformation capability. The
// timeout bounds a single attempt; retries are handled by the Transformer.
const externalHTTPTimeout = 30 * time.Second

var externalHTTPClient = &http.Client{
	Timeout: externalHTTPTimeout,
}
