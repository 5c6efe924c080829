package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/sync/errgroup"
	"nikand.dev/go/cli"
	"nikand.dev/go/cli/flag"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"
	"tlog.app/go/tlog/ext/tlflag"
	"tlog.app/go/tlog/tlio"

	"nikand.dev/go/hashlink"
)

func main() {
	dump := &cli.Command{
		Name:        "dump",
		Description: "print decoded image tables",
		Args:        cli.Args{},
		Action:      dumpRun,
		Flags: []*cli.Flag{
			cli.NewFlag("ops", false, "print function opcodes"),
		},
	}

	timeCmd := &cli.Command{
		Name:        "time",
		Description: "measure decoding time",
		Args:        cli.Args{},
		Action:      timeRun,
		Flags: []*cli.Flag{
			cli.NewFlag("repeat,n", 10, "decode each file n times"),
			cli.NewFlag("jobs,j", 4, "concurrent decoders"),
		},
	}

	export := &cli.Command{
		Name:        "export",
		Description: "write decoded image as cbor",
		Args:        cli.Args{},
		Action:      exportRun,
		Flags: []*cli.Flag{
			cli.NewFlag("output,o", "-", "output file (or - for stdout)"),
		},
	}

	app := &cli.Command{
		Name:        "hltool",
		Description: "tool to work with HashLink bytecode",
		Before:      before,
		Flags: []*cli.Flag{
			cli.NewFlag("log", "stderr?dm", "log output file (or stderr)"),
			cli.NewFlag("verbosity,v", "", "logger verbosity topics"),
			cli.NewFlag("debug", "", "debug address", flag.Hidden),
			cli.NewFlag("config", "", "decoder settings toml file"),
			cli.NewFlag("no-debug-info", false, "skip function debug lines"),
			cli.NewFlag("no-assigns", false, "skip function assigns"),
			cli.NewFlag("arena", hashlink.DefaultArenaSize, "opcode arena size in int32 slots, 0 to disable"),
			cli.FlagfileFlag,
			cli.HelpFlag,
		},
		Commands: []*cli.Command{
			dump,
			timeCmd,
			export,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func before(c *cli.Command) error {
	w, err := tlflag.OpenWriter(c.String("log"))
	if err != nil {
		return errors.Wrap(err, "open log file")
	}

	err = tlio.WalkWriter(w, func(w io.Writer) error {
		c, ok := w.(*tlog.ConsoleWriter)
		if !ok {
			return nil
		}

		c.StringOnNewLineMinLen = 16

		return nil
	})
	if err != nil {
		return errors.Wrap(err, "walk writer")
	}

	tlog.DefaultLogger = tlog.New(w)

	tlog.SetVerbosity(c.String("verbosity"))

	if q := c.String("debug"); q != "" {
		l, err := net.Listen("tcp", q)
		if err != nil {
			return errors.Wrap(err, "listen debug")
		}

		tlog.Printw("start debug interface", "addr", l.Addr())

		go func() {
			err := http.Serve(l, nil)
			if err != nil {
				tlog.Printw("debug", "addr", q, "err", err, "", tlog.Fatal)
				panic(err)
			}
		}()
	}

	return nil
}

func settings(c *cli.Command) (s hashlink.Settings, err error) {
	s = hashlink.DefaultSettings

	if q := c.String("config"); q != "" {
		s, err = hashlink.LoadSettings(q)
		if err != nil {
			return s, errors.Wrap(err, "load settings")
		}
	}

	if c.Bool("no-debug-info") {
		s.StoreDebugInfo = false
	}

	if c.Bool("no-assigns") {
		s.StoreFunctionAssigns = false
	}

	if a := c.Int("arena"); a != hashlink.DefaultArenaSize {
		s.OpcodeArenaSize = a
	}

	if s.OpcodeArenaSize < 0 {
		return s, errors.New("negative arena size: %d", s.OpcodeArenaSize)
	}

	return s, nil
}

func decodeFile(ctx context.Context, name string, s hashlink.Settings) (*hashlink.Image, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}

	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "stat")
	}

	m, err := hashlink.DecodeReaderAt(ctx, f, st.Size(), s)
	if err != nil {
		return nil, errors.Wrap(err, "decode")
	}

	return m, nil
}

func dumpRun(c *cli.Command) (err error) {
	ctx := context.Background()

	s, err := settings(c)
	if err != nil {
		return err
	}

	ops := c.Bool("ops")

	for _, a := range c.Args {
		m, err := decodeFile(ctx, a, s)
		if err != nil {
			return errors.Wrap(err, "%v", a)
		}

		dump(m, ops)
	}

	return nil
}

func dump(m *hashlink.Image, ops bool) {
	tlog.Printw("image", "version", m.Version, "flags", m.Flags, "entrypoint", m.Entrypoint,
		"ints", m.Ints.Len(), "floats", m.Floats.Len(), "strings", m.Strings.Len(), "bytes", m.Bytes.Len(),
		"debug_files", m.DebugFiles.Len(), "types", m.Types.Len(), "globals", m.Globals.Len(),
		"natives", m.Natives.Len(), "functions", m.Functions.Len(), "constants", m.Constants.Len())

	m.Types.Range(func(h hashlink.TypeHandle, t hashlink.TypeRecord) bool {
		tlog.Printw("type", "i", h, "kind", t.TypeKind(), "rec", t)
		return true
	})

	m.Globals.Range(func(h hashlink.GlobalHandle, tp hashlink.TypeHandle) bool {
		tlog.Printw("global", "i", h, "type", tp)
		return true
	})

	m.Natives.Range(func(h hashlink.NativeHandle, x hashlink.Native) bool {
		tlog.Printw("native", "i", h, "lib", m.Strings.Get(x.Lib), "name", m.Strings.Get(x.Name), "type", x.Type, "findex", x.Func)
		return true
	})

	m.Functions.Range(func(h hashlink.FunctionHandle, f hashlink.Function) bool {
		tlog.Printw("function", "i", h, "findex", f.Index, "type", f.Type, "regs", len(f.Regs), "ops", len(f.Ops), "assigns", len(f.Assigns))

		if !ops {
			return true
		}

		for j, op := range f.Ops {
			if f.Debug != nil {
				l := f.Debug[j]
				file := ""

				if h, ok := l.File.Get(); ok {
					file = m.DebugFiles.Get(h)
				}

				tlog.Printw("op", "j", j, "op", op, "file", file, "line", l.Line)

				continue
			}

			tlog.Printw("op", "j", j, "op", op)
		}

		return true
	})

	m.Constants.Range(func(h hashlink.ConstantHandle, x hashlink.Constant) bool {
		tlog.Printw("constant", "i", h, "global", x.Global, "fields", x.Fields)
		return true
	})
}

func timeRun(c *cli.Command) (err error) {
	s, err := settings(c)
	if err != nil {
		return err
	}

	n := c.Int("repeat")

	for _, a := range c.Args {
		data, err := os.ReadFile(a)
		if err != nil {
			return errors.Wrap(err, "%v: read file", a)
		}

		g, ctx := errgroup.WithContext(context.Background())
		g.SetLimit(max(c.Int("jobs"), 1))

		start := time.Now()

		for j := 0; j < n; j++ {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}

				_, err := hashlink.Decode(data, s)

				return err
			})
		}

		err = g.Wait()
		if err != nil {
			return errors.Wrap(err, "%v", a)
		}

		d := time.Since(start)

		tlog.Printw("decoded", "file", a, "size", len(data), "repeat", n, "total", d, "avg", d/time.Duration(max(n, 1)))
	}

	return nil
}

func exportRun(c *cli.Command) (err error) {
	ctx := context.Background()

	s, err := settings(c)
	if err != nil {
		return err
	}

	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return errors.Wrap(err, "cbor enc mode")
	}

	var w io.Writer = os.Stdout

	if q := c.String("output"); q != "-" {
		f, ferr := os.Create(q)
		if ferr != nil {
			return errors.Wrap(ferr, "create output")
		}

		defer func() {
			e := f.Close()
			if err == nil && e != nil {
				err = errors.Wrap(e, "close output")
			}
		}()

		w = f
	}

	enc := em.NewEncoder(w)

	for _, a := range c.Args {
		m, err := decodeFile(ctx, a, s)
		if err != nil {
			return errors.Wrap(err, "%v", a)
		}

		err = enc.Encode(newSnapshot(a, m))
		if err != nil {
			return errors.Wrap(err, "%v: encode", a)
		}
	}

	return nil
}
