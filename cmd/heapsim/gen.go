package main

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/urfave/cli/v2"
	"github.com/vkngwrapper/segfit/trace"
)

func generateTrace(ctx *cli.Context) (err error) {
	ops := ctx.Int(OpsFlag.Name)
	if ops < 0 {
		return errors.Newf("--%s must not be negative", OpsFlag.Name)
	}
	maxSize := ctx.Int(MaxSizeFlag.Name)
	if maxSize < 1 {
		return errors.Newf("--%s must be at least 1", MaxSizeFlag.Name)
	}

	generated := trace.Generate(ctx.Int64(SeedFlag.Name), ops, maxSize)

	var out io.Writer = ctx.App.Writer
	if out == nil {
		out = os.Stdout
	}
	if path := ctx.String(OutputFlag.Name); path != "" {
		f, createErr := os.Create(path)
		if createErr != nil {
			return createErr
		}
		defer func() {
			closeErr := f.Close()
			if err == nil && closeErr != nil {
				err = errors.Wrapf(closeErr, "failed to close %s", path)
			}
		}()
		out = f
	}

	_, err = generated.WriteTo(out)
	return err
}
