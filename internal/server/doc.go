// Package server implements the UDP capture feed server and the HTTP API.
// It routes audio frames and control operations to the recording
// controller and provides monitoring/management endpoints.
package server
