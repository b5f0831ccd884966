/*
Package system runs a group of services until one of them fails or the process is
told to stop.

A forked live server uses it to run its accept loop: the HTTP server is added as a
service, and an interrupt signal cancels the group so the server shuts down gracefully
before the process exits.
*/
package system
