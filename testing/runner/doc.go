/*
Package runner starts a binary as a child process, captures its output and stops it
with an interrupt.

Stop sends the process an INT signal, so the binary should respond to that by shutting
down gracefully. Output from the child is both captured (see Result.Logs) and copied to
this process's stdout and stderr, so it shows up in test output.
*/
package runner
