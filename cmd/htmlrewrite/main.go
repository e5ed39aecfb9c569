/*
This command rewrites the quoted attribute values of an HTML document,
the same way as the mirror rewrites the pages of the main site.

It reads the document from the standard input, or from the file passed
as the only argument, and writes the result to the standard output:

	htmlrewrite \
		-replace https://github.com=https://hub.example.org \
		-replace https://api.github.com=https://blackhole.example.org \
		< page.html > mirrored.html

The replacements are applied in the order of the flags. When multiple
patterns match at the same position, the first one wins.
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/zalando/hubmirror/rewrite"
)

const (
	replaceUsage      = "a replacement in the form of pattern=replacement, can be repeated"
	scriptPolicyUsage = "handling of the script bodies: skip or scan"
	bufferSizeUsage   = "size of the output buffer, the output is flushed when it is full"
	readSizeUsage     = "maximum size of the reads from the input"
	statsUsage        = "print the number of bytes and replacements to the standard error"
)

var errNoReplacement = errors.New("at least one replacement is required")

type replaceFlag []string

func (r *replaceFlag) String() string {
	var s []string
	for i := 0; i+1 < len(*r); i += 2 {
		s = append(s, (*r)[i]+"="+(*r)[i+1])
	}

	return strings.Join(s, ",")
}

func (r *replaceFlag) Set(value string) error {
	pattern, replacement, ok := strings.Cut(value, "=")
	if !ok {
		return fmt.Errorf("invalid replacement, expected pattern=replacement: %s", value)
	}

	*r = append(*r, pattern, replacement)
	return nil
}

type options struct {
	replace      replaceFlag
	scriptPolicy string
	bufferSize   int
	readSize     int
	stats        bool
	input        string
}

func parseArgs(name string, args []string, output io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Var(&o.replace, "replace", replaceUsage)
	fs.StringVar(&o.scriptPolicy, "script-policy", "skip", scriptPolicyUsage)
	fs.IntVar(&o.bufferSize, "buffer-size", rewrite.DefaultBufferSize, bufferSizeUsage)
	fs.IntVar(&o.readSize, "read-size", rewrite.DefaultReadSize, readSizeUsage)
	fs.BoolVar(&o.stats, "stats", false, statsUsage)
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	switch fs.NArg() {
	case 0:
	case 1:
		o.input = fs.Arg(0)
	default:
		return options{}, fmt.Errorf("invalid arguments: %s", fs.Args())
	}

	if len(o.replace) == 0 {
		return options{}, errNoReplacement
	}

	return o, nil
}

func run(ctx context.Context, o options, stdin io.Reader, stdout, stderr io.Writer) error {
	d, err := rewrite.ParseDirectives(o.replace...)
	if err != nil {
		return err
	}

	policy, err := rewrite.ParseScriptPolicy(o.scriptPolicy)
	if err != nil {
		return err
	}

	in := stdin
	if o.input != "" {
		f, err := os.Open(o.input)
		if err != nil {
			return err
		}

		defer f.Close()
		in = f
	}

	ro := rewrite.Options{
		BufferSize:   o.bufferSize,
		ReadSize:     o.readSize,
		ScriptPolicy: policy,
	}

	s, err := rewrite.Copy(ctx, stdout, in, d, ro)
	if o.stats {
		fmt.Fprintf(stderr, "bytes in: %d, bytes out: %d, replacements: %d\n", s.BytesIn, s.BytesOut, s.Replacements)
	}

	return err
}

func main() {
	o, err := parseArgs(os.Args[0], os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}

	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o, os.Stdin, os.Stdout, os.Stderr); err != nil {
		log.Fatal(err)
	}
}
