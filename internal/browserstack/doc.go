// Package browserstack implements capture.RemoteJobClient against the
// BrowserStack Screenshots REST API.
package browserstack
