/*
Package httpserver runs an HTTP server that is listening as soon as it is created and
shuts down gracefully when its context is cancelled.

Listening in New rather than in Serve means the bound address is known (and the port
taken) before the accept loop starts, which is what callers polling for readiness need.
*/
package httpserver
