/*
Package compiler builds main packages into a temporary folder for acceptance tests,
so tests exercise the binary that will actually ship.

Pair it with testing/runner to start the compiled binary and stop it with an interrupt.
*/
package compiler
