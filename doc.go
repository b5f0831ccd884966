/*
Package liveserver boots an HTTP application on a free local port in the background, waits
until it answers its identify check and stops it again, either waiting for it to be gone or not.

The application runs either on a goroutine in the current process (Threaded) or in a child
process (Forked). Go cannot fork a running process, so a forked child is the current
executable started again with the application name in its environment. Any binary that may
host a forked child must call Init before doing anything else, usually from TestMain:

	func TestMain(m *testing.M) {
		liveserver.Register("api", newAPI)
		liveserver.Init()
		os.Exit(m.Run())
	}

Ports are remembered per application identity for the life of the process, so starting the
same application twice reuses the running instance.
*/
package liveserver
