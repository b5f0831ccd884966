// Package kongtest renders kong help output so CLI tests can assert on flags and defaults.
package kongtest

import (
	"bytes"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/google/go-cmp/cmp"
	"gotest.tools/v3/assert"
)

// Help parses --help for cli under the given program name, returning the rendered output.
// Defaults are applied to cli as a side effect.
func Help(t *testing.T, name string, cli interface{}, opts ...kong.Option) string {
	t.Helper()
	w := bytes.NewBuffer(nil)
	rc := -1
	opts = append([]kong.Option{
		kong.Name(name),
		kong.Writers(w, w),
		kong.Exit(func(i int) {
			rc = i
		}),
	}, opts...)
	app, err := kong.New(cli, opts...)
	assert.Assert(t, err)

	_, err = app.Parse([]string{"--help"})
	assert.Check(t, err)
	assert.Check(t, cmp.Equal(0, rc))

	return w.String()
}
