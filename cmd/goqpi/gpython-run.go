package main

import (
	"github.com/go-python/gpython/py"
	"github.com/go-python/gpython/repl"
	"github.com/go-python/gpython/repl/cli"
	"github.com/pkg/errors"

	_ "github.com/2x3systems/goqpi/pyqpi"
	_ "github.com/go-python/gpython/stdlib"
)

// runPython executes the script at pathname, or starts an interactive REPL when pathname is empty.  The
// interpreter context is shut down before runPython returns.
func runPython(pathname string) error {
	ctx := py.NewContext(py.DefaultContextOpts())
	defer func() {
		ctx.Close()
		<-ctx.Done()
	}()

	if pathname == "" {
		cli.RunREPL(repl.New(ctx))
		return nil
	}
	if _, err := py.RunFile(ctx, pathname, py.CompileOpts{}, nil); err != nil {
		py.TracebackDump(err)
		return errors.Wrapf(err, "script %s", pathname)
	}
	return nil
}
