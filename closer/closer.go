// Package closer keeps the error from a deferred Close when nothing else went wrong.
package closer

import "io"

// ErrorHandler closes c, storing the close error in *in unless *in already holds one.
func ErrorHandler(c io.Closer, in *error) {
	cerr := c.Close()
	if *in == nil {
		*in = cerr
	}
}
