package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	koanfjson "github.com/knadh/koanf/parsers/json"
	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"

	"ampy.local/ampy-b3/go/b3"
)

const encodingAuto = "auto"

func createApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "b3ctl",
		Usage:   "encode and decode B3 trace-context headers",
		Version: Version,
		Writer:  out,
		Commands: []*cli.Command{
			encodeCommand(),
			decodeCommand(),
			fieldsCommand(),
		},
		// Exit codes are mapped by run, never by os.Exit inside the library.
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}
}

func encodingFlag(value string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "encoding",
		Aliases: []string{"e"},
		Usage:   "b3 (single header) or b3multi",
		Value:   value,
	}
}

func encodeCommand() *cli.Command {
	return &cli.Command{
		Name:  "encode",
		Usage: "print the headers a span context encodes to",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "trace-id", Usage: "32 lower-case hex characters", Required: true},
			&cli.StringFlag{Name: "span-id", Usage: "16 lower-case hex characters", Required: true},
			&cli.BoolFlag{Name: "sampled", Usage: "set the sampled bit"},
			encodingFlag(string(b3.EncodingSingle)),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			enc, err := b3.ParseEncoding(cmd.String("encoding"))
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			carrier := encode(ctx, enc, cmd.String("trace-id"), cmd.String("span-id"), cmd.Bool("sampled"))
			if err := writeJSON(cmd.Root().Writer, carrier); err != nil {
				return err
			}
			if len(carrier) == 0 {
				return cli.Exit("invalid trace context: nothing encoded", 1)
			}
			return nil
		},
	}
}

// encode builds a local span context from the given ids and injects it.
// Ids that do not parse leave the span context invalid, so nothing is set.
func encode(ctx context.Context, enc b3.Encoding, traceID, spanID string, sampled bool) b3.MapCarrier {
	tid, _ := trace.TraceIDFromHex(traceID)
	sid, _ := trace.SpanIDFromHex(spanID)
	cfg := trace.SpanContextConfig{TraceID: tid, SpanID: sid}
	if sampled {
		cfg.TraceFlags = trace.FlagsSampled
	}
	ctx = trace.ContextWithSpanContext(ctx, trace.NewSpanContext(cfg))

	carrier := b3.MapCarrier{}
	b3.Propagator(enc).Inject(ctx, carrier)
	return carrier
}

type decoded struct {
	Encoding b3.Encoding `json:"encoding"`
	TraceID  string      `json:"trace_id"`
	SpanID   string      `json:"span_id"`
	Sampled  bool        `json:"sampled"`
}

func decodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "decode B3 headers given as key=value pairs or a file",
		ArgsUsage: "[key=value ...]",
		Flags: []cli.Flag{
			encodingFlag(encodingAuto),
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "JSON or YAML file of headers (quote hex ids in YAML)",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			headers := b3.MapCarrier{}
			if path := cmd.String("file"); path != "" {
				if err := loadHeaderFile(path, headers); err != nil {
					return cli.Exit(err.Error(), 2)
				}
			}
			if err := parsePairs(cmd.Args().Slice(), headers); err != nil {
				return cli.Exit(err.Error(), 2)
			}

			out, err := decode(cmd.String("encoding"), headers)
			if err != nil {
				return cli.Exit(fmt.Sprintf("rejected: %v", err), 1)
			}
			return writeJSON(cmd.Root().Writer, out)
		},
	}
}

// decode tries the requested encoding, or single then multiple for auto.
func decode(encoding string, headers b3.MapCarrier) (decoded, error) {
	var encs []b3.Encoding
	if strings.EqualFold(encoding, encodingAuto) {
		encs = []b3.Encoding{b3.EncodingSingle, b3.EncodingMultiple}
	} else {
		enc, err := b3.ParseEncoding(encoding)
		if err != nil {
			return decoded{}, err
		}
		encs = []b3.Encoding{enc}
	}

	var errs []error
	for _, enc := range encs {
		var (
			sc  trace.SpanContext
			err error
		)
		if enc == b3.EncodingMultiple {
			sc, err = b3.DecodeMultiple(headers)
		} else {
			sc, err = b3.DecodeSingle(headers)
		}
		if err == nil {
			return decoded{
				Encoding: enc,
				TraceID:  sc.TraceID().String(),
				SpanID:   sc.SpanID().String(),
				Sampled:  sc.IsSampled(),
			}, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", enc, err))
	}
	return decoded{}, errors.Join(errs...)
}

func fieldsCommand() *cli.Command {
	return &cli.Command{
		Name:  "fields",
		Usage: "list the header keys an encoding writes",
		Flags: []cli.Flag{encodingFlag(string(b3.EncodingSingle))},
		Action: func(_ context.Context, cmd *cli.Command) error {
			enc, err := b3.ParseEncoding(cmd.String("encoding"))
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			return writeJSON(cmd.Root().Writer, b3.Propagator(enc).Fields())
		},
	}
}

// loadHeaderFile reads a flat JSON or YAML object of headers into dst.
// Keys are lower-cased to match the B3 header names.
func loadHeaderFile(path string, dst b3.MapCarrier) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		parser = koanfjson.Parser()
	case ".yaml", ".yml":
		parser = koanfyaml.Parser()
	default:
		return fmt.Errorf("unsupported header file %s (use .json, .yaml or .yml)", path)
	}

	// "::" so header names are never split into nested keys.
	k := koanf.New("::")
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	for key, v := range k.All() {
		dst[strings.ToLower(key)] = fmt.Sprint(v)
	}
	return nil
}

func parsePairs(args []string, dst b3.MapCarrier) error {
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("expected key=value, got %q", arg)
		}
		dst[strings.ToLower(strings.TrimSpace(key))] = value
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}
