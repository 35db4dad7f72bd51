package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	serial "github.com/luhtfiimanal/go-buffered-serial"
)

type options struct {
	configPath string
	device     string
	driver     string
	baud       uint
	dataBits   uint
	parity     string
	stopBits   string
	timeout    uint
	delim      string
	send       string
	listen     bool
	list       bool
	stats      bool
	logLevel   string
	logFile    string
}

func parseFlags(fs *flag.FlagSet, args []string) (options, map[string]bool, error) {
	var o options
	fs.StringVar(&o.configPath, "config", "", "YAML config file; flags override its values")
	fs.StringVar(&o.device, "device", "/dev/ttyUSB0", "serial device path")
	fs.StringVar(&o.driver, "driver", "", "binding to use (termios, bugst)")
	fs.UintVar(&o.baud, "baud", 115200, "baud rate")
	fs.UintVar(&o.dataBits, "databits", 8, "data bits (5-8)")
	fs.StringVar(&o.parity, "parity", "N", "parity (N,O,E,M,S)")
	fs.StringVar(&o.stopBits, "stopbits", "1", "stop bits (1, 1.5 or 2)")
	fs.UintVar(&o.timeout, "timeout", uint(serial.DefaultTimeout), "read timeout in milliseconds")
	fs.StringVar(&o.delim, "delim", "\n", "response delimiter (first byte is used)")
	fs.StringVar(&o.send, "send", "", "single line to send; prints one delimited response")
	fs.BoolVar(&o.listen, "listen", false, "listen-only mode: print incoming lines until interrupted")
	fs.BoolVar(&o.list, "list", false, "list available serial ports and exit")
	fs.BoolVar(&o.stats, "stats", false, "print channel statistics as JSON on exit")
	fs.StringVar(&o.logLevel, "log-level", "", "log level (trace, debug, info, warn, error, disabled)")
	fs.StringVar(&o.logFile, "log-file", "", "also write logs to this file, rotated")

	if err := fs.Parse(args); err != nil {
		return o, nil, err
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return o, set, nil
}

// buildConfig starts from the config file (or defaults) and applies every
// flag given explicitly on the command line.
func buildConfig(o options, set map[string]bool) (serial.Config, error) {
	cfg := serial.DefaultConfig(o.device)
	if o.configPath != "" {
		loaded, err := serial.LoadConfig(o.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if set["device"] {
		cfg.Device = o.device
	}
	if set["driver"] {
		cfg.Driver = o.driver
	}
	if set["baud"] {
		cfg.Line.BaudRate = uint32(o.baud)
	}
	if set["databits"] {
		if o.dataBits > 8 {
			return cfg, fmt.Errorf("%w: data bits %d", serial.ErrInvalidConfig, o.dataBits)
		}
		cfg.Line.WordLength = serial.WordLength(o.dataBits)
	}
	if set["parity"] {
		if err := cfg.Line.Parity.UnmarshalText([]byte(o.parity)); err != nil {
			return cfg, err
		}
	}
	if set["stopbits"] {
		if err := cfg.Line.StopBits.UnmarshalText([]byte(o.stopBits)); err != nil {
			return cfg, err
		}
	}
	if set["timeout"] {
		if o.timeout > 0xFFFF {
			return cfg, fmt.Errorf("%w: timeout %d ms", serial.ErrInvalidConfig, o.timeout)
		}
		cfg.TimeoutMillis = uint16(o.timeout)
	}
	if set["log-level"] {
		cfg.Log.Level = o.logLevel
	}
	if set["log-file"] {
		cfg.Log.File = o.logFile
	}
	return cfg, serial.ValidateConfig(&cfg)
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	o, set, err := parseFlags(flag.NewFlagSet("serialterm", flag.ContinueOnError), args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if o.list {
		ports, err := serial.AvailablePorts()
		if err != nil {
			fmt.Fprintf(os.Stderr, "listing ports: %v\n", err)
			return 1
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return 0
	}

	cfg, err := buildConfig(o, set)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}

	logger, closer, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 2
	}
	defer closer.Close()

	delim := byte('\n')
	if o.delim != "" {
		delim = o.delim[0]
	}

	ch, err := serial.Open(cfg, serial.WithLogger(logger))
	if err != nil {
		logger.Error().Err(err).Str("device", cfg.Device).Msg("open failed")
		return 1
	}
	defer func() {
		if err := ch.End(); err != nil {
			logger.Warn().Err(err).Msg("closing channel")
		}
		if o.stats {
			printStats(os.Stdout, ch.Stats())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case o.send != "":
		return sendOnce(ch, o.send, delim, os.Stdout, logger)
	case o.listen:
		logger.Info().Str("device", cfg.Device).Stringer("line", cfg.Line).Msg("listening")
		listen(ctx, ch, delim, os.Stdout)
		return 0
	default:
		return interactive(ctx, ch, os.Stdin, os.Stdout, os.Stderr)
	}
}

func sendOnce(ch *serial.Channel, line string, delim byte, out io.Writer, logger zerolog.Logger) int {
	if n := ch.Println([]byte(line)); n < len(line) {
		logger.Error().Int("written", n).Msg("send failed")
		return 1
	}
	buf := make([]byte, 512)
	n := ch.ReadBytesUntil(buf, delim)
	if n <= 0 {
		logger.Warn().Uint16("timeout_ms", ch.Timeout()).Msg("no response")
		return 1
	}
	fmt.Fprintln(out, strings.TrimRight(string(buf[:n]), "\r\n"))
	return 0
}

// listen prints delimited lines until ctx is done. A read that times out
// with nothing buffered just loops.
func listen(ctx context.Context, ch *serial.Channel, delim byte, out io.Writer) {
	buf := make([]byte, 512)
	for ctx.Err() == nil {
		n := ch.ReadBytesUntil(buf, delim)
		if n <= 0 {
			continue
		}
		fmt.Fprintln(out, strings.TrimRight(string(buf[:n]), "\r\n"))
	}
}

// interactive sends stdin lines and copies whatever arrives to out.
func interactive(ctx context.Context, ch *serial.Channel, in io.Reader, out, prompt io.Writer) int {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 64)
		for ctx.Err() == nil {
			if n := ch.ReadBytes(buf); n > 0 {
				out.Write(buf[:n])
			}
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	fmt.Fprintln(prompt, "Entering interactive mode. Type lines to send, Ctrl+D to exit.")
	for {
		select {
		case <-ctx.Done():
			<-done
			return 0
		case line, ok := <-lines:
			if !ok {
				cancel()
				<-done
				return 0
			}
			ch.Println([]byte(line))
		}
	}
}

func printStats(w io.Writer, st serial.Stats) {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "stats: %v\n", err)
		return
	}
	fmt.Fprintln(w, string(data))
}
