package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"runtime"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/tabavro/pkg/avro/ocf"
	"github.com/ajitpratap0/tabavro/pkg/convert"
	"github.com/ajitpratap0/tabavro/pkg/logger"
	"github.com/ajitpratap0/tabavro/pkg/paths"
	"github.com/ajitpratap0/tabavro/pkg/tabular"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	var logLevel string

	root := &cobra.Command{
		Use:   "tabavro",
		Short: "tabavro - convert between tabular rows and Avro container files",
		Long: `tabavro converts between a row-oriented, strongly-typed tabular data model
and Avro object container files, byte-compatible with the Avro reference
implementation.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if env := os.Getenv("TABAVRO_LOG_LEVEL"); env != "" && !cmd.Flags().Changed("log-level") {
				logLevel = env
			}
			return logger.Init(logger.Config{
				Level:    logLevel,
				Encoding: "console",
			})
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tabavro v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(inspectCmd())
	root.AddCommand(catCmd())
	root.AddCommand(importCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect PATTERN...",
		Short: "Print schema, codec, and row count of container files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := paths.Resolve(args)
			if err != nil {
				return err
			}
			for _, path := range files {
				if err := inspectFile(cmd.OutOrStdout(), path); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func inspectFile(out io.Writer, path string) error {
	r, err := ocf.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	rows := int64(0)
	for {
		if _, err := r.Next(); err == io.EOF {
			break
		} else if err != nil {
			return err
		}
		rows++
	}

	fmt.Fprintf(out, "%s\n", path)
	fmt.Fprintf(out, "  codec:  %s\n", r.Codec())
	fmt.Fprintf(out, "  rows:   %d\n", rows)
	fmt.Fprintf(out, "  schema: %s\n", r.ContainerSchema())
	return nil
}

func catCmd() *cobra.Command {
	var schemaFile string

	cmd := &cobra.Command{
		Use:   "cat PATTERN...",
		Short: "Stream container file rows as JSON lines",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var declared *tabular.Schema
			if schemaFile != "" {
				var err error
				declared, err = loadSchema(schemaFile)
				if err != nil {
					return err
				}
			}

			var (
				reader *convert.RowReader
				schema *tabular.Schema
				err    error
			)
			if declared != nil {
				reader, schema, err = convert.ToTabularWithSchema(args, declared)
			} else {
				reader, schema, err = convert.ToTabular(args)
			}
			if err != nil {
				return err
			}
			defer reader.Close()

			out := bufio.NewWriter(cmd.OutOrStdout())
			defer out.Flush()
			enc := json.NewEncoder(out)
			for {
				row, err := reader.Next()
				if err == io.EOF {
					return nil
				}
				if err != nil {
					return err
				}
				obj, err := convert.RowToJSON(schema, row)
				if err != nil {
					return err
				}
				if err := enc.Encode(obj); err != nil {
					return err
				}
			}
		},
	}
	cmd.Flags().StringVar(&schemaFile, "schema", "", "tabular schema file (JSON)")
	return cmd
}

func importCmd() *cobra.Command {
	var (
		schemaFile  string
		outFile     string
		optionsFile string
		opts        convert.WriteOptions
	)

	cmd := &cobra.Command{
		Use:   "import --schema FILE --out FILE",
		Short: "Write JSON lines from stdin as a container file",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := loadSchema(schemaFile)
			if err != nil {
				return err
			}
			if optionsFile != "" {
				loaded, err := loadOptions(optionsFile, opts)
				if err != nil {
					return err
				}
				opts = loaded
			}

			source := &jsonLineSource{
				schema:  schema,
				scanner: bufio.NewScanner(cmd.InOrStdin()),
			}
			return convert.FromTabular(source, schema, outFile, opts)
		},
	}

	cmd.Flags().StringVar(&schemaFile, "schema", "", "tabular schema file (JSON)")
	cmd.Flags().StringVar(&outFile, "out", "", "output container file")
	cmd.Flags().StringVar(&optionsFile, "options", "", "write-options profile (YAML or JSON)")
	cmd.Flags().StringVar(&opts.Codec, "codec", "", "compression codec (uncompressed, deflate, snappy)")
	cmd.Flags().IntVar(&opts.DeflateLevel, "deflate-level", 0, "deflate level 1-9")
	cmd.Flags().StringVar(&opts.RecordName, "record-name", "", "top-level record name")
	cmd.Flags().StringVar(&opts.RecordNamespace, "record-namespace", "", "top-level record namespace")
	cmd.MarkFlagRequired("schema")
	cmd.MarkFlagRequired("out")
	return cmd
}

// loadOptions overlays a write-options profile file on flag-provided
// options; flags win where both are set.
func loadOptions(path string, flags convert.WriteOptions) (convert.WriteOptions, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return flags, fmt.Errorf("read options profile: %w", err)
	}

	opts := convert.WriteOptions{
		Codec:           v.GetString("compression_codec"),
		DeflateLevel:    v.GetInt("deflate_level"),
		RecordName:      v.GetString("record_name"),
		RecordNamespace: v.GetString("record_namespace"),
	}
	if flags.Codec != "" {
		opts.Codec = flags.Codec
	}
	if flags.DeflateLevel != 0 {
		opts.DeflateLevel = flags.DeflateLevel
	}
	if flags.RecordName != "" {
		opts.RecordName = flags.RecordName
	}
	if flags.RecordNamespace != "" {
		opts.RecordNamespace = flags.RecordNamespace
	}
	return opts, nil
}

func loadSchema(path string) (*tabular.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	var schema tabular.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("parse schema file %s: %w", path, err)
	}
	return &schema, nil
}

// jsonLineSource adapts JSON lines on a scanner to a convert.RowSource.
type jsonLineSource struct {
	schema  *tabular.Schema
	scanner *bufio.Scanner
	line    int
}

func (s *jsonLineSource) Next() (tabular.Row, error) {
	for s.scanner.Scan() {
		s.line++
		text := s.scanner.Bytes()
		if len(text) == 0 {
			continue
		}
		var obj map[string]interface{}
		if err := json.Unmarshal(text, &obj); err != nil {
			return nil, fmt.Errorf("line %d: %w", s.line, err)
		}
		return convert.RowFromJSON(s.schema, obj)
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}
