// Command gopngdump decodes a PNG file and reports the result.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/pkg/errors"

	"github.com/xczero/gopng"
)

func main() {
	var logging, summary bool
	flag.BoolVar(&logging, "l", false, "enable verbose diagnostic logging")
	flag.BoolVar(&logging, "logging", false, "enable verbose diagnostic logging")
	flag.BoolVar(&summary, "summary", false, "print a one-line summary on success")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: gopngdump [-l] [-summary] <file.png>")
		os.Exit(1)
	}

	if err := run(flag.Arg(0), logging, summary); err != nil {
		if logging {
			log.Printf("decode failed: %+v", err)
		} else {
			log.Printf("decode failed: %s", err)
		}
		os.Exit(1)
	}
}

func run(path string, logging, summary bool) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	opts := png.DecodeOptions{}
	if logging {
		opts.Logger = func(format string, args ...interface{}) {
			log.Printf(format, args...)
		}
	}

	img, err := png.DecodeWithOptions(f, opts)
	if err != nil {
		return err
	}

	if summary {
		fmt.Printf("%dx%d color-type=%d bit-depth=%d channels=%d metadata=%d\n",
			img.Width, img.Height, img.ColorType, img.BitDepth, img.Channels, len(img.Metadata))
	}
	return nil
}
