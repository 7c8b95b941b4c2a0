package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sneharawat080/medsimplify/internal/application/simplify"
	"github.com/sneharawat080/medsimplify/internal/infrastructure/monitoring/logging"
	"github.com/sneharawat080/medsimplify/internal/infrastructure/storage/minio"
	"github.com/sneharawat080/medsimplify/internal/intelligence/lab_kb"
	"github.com/sneharawat080/medsimplify/pkg/errors"
	"github.com/sneharawat080/medsimplify/pkg/types/lab"
)

func newKBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Inspect and manage the lab test knowledge base",
	}
	cmd.AddCommand(
		newKBListCmd(),
		newKBLookupCmd(),
		newKBValidateCmd(),
		newKBPublishCmd(),
	)
	return cmd
}

func newKBListCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List known tests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			svc, _, err := cliCtx.Service(cmd.Context())
			if err != nil {
				return err
			}

			tests := svc.ListTests(cmd.Context())
			if category != "" {
				c := lab.Category(category)
				if !c.IsKnown() {
					return errors.InvalidParam("unknown category").WithDetail(category)
				}
				filtered := tests[:0:0]
				for _, t := range tests {
					if t.Category == c {
						filtered = append(filtered, t)
					}
				}
				tests = filtered
			}

			rows := make([][]string, 0, len(tests))
			for _, t := range tests {
				rng := "-"
				if t.Range != nil {
					rng = t.Range.String()
				}
				rows = append(rows, []string{t.Key, t.DisplayName, t.Category.Label(), t.Unit, rng})
			}
			text := FormatTable([]string{"KEY", "NAME", "CATEGORY", "UNIT", "RANGE"}, rows) +
				fmt.Sprintf("\n%d tests (knowledge base %s)\n", len(tests), svc.KnowledgeBaseVersion())

			return PrintResult(cmd, text, lab.KBTestList{
				Version: svc.KnowledgeBaseVersion(),
				Count:   len(tests),
				Tests:   tests,
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only list tests in this category (e.g. lipid-panel)")
	return cmd
}

func newKBLookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <name>",
		Short: "Resolve a test name or synonym",
		Example: "  medsimplify kb lookup \"bad cholesterol\"\n" +
			"  medsimplify kb lookup hba1c -o json",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			svc, _, err := cliCtx.Service(cmd.Context())
			if err != nil {
				return err
			}
			dto, err := svc.LookupTest(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return PrintResult(cmd, describeTest(dto), dto)
		},
	}
}

func describeTest(t *lab.KBTestDTO) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", t.DisplayName, t.Key)
	fmt.Fprintf(&b, "  Category:  %s\n", t.Category.Label())
	if t.Unit != "" {
		fmt.Fprintf(&b, "  Unit:      %s\n", t.Unit)
	}
	if t.Range != nil {
		fmt.Fprintf(&b, "  Range:     %s\n", t.Range)
	}
	if t.CriticalLow != nil || t.CriticalHigh != nil {
		low, high := "-", "-"
		if t.CriticalLow != nil {
			low = lab.FormatNumber(*t.CriticalLow)
		}
		if t.CriticalHigh != nil {
			high = lab.FormatNumber(*t.CriticalHigh)
		}
		fmt.Fprintf(&b, "  Critical:  below %s, above %s\n", low, high)
	}
	if len(t.Synonyms) > 0 {
		fmt.Fprintf(&b, "  Synonyms:  %s\n", strings.Join(t.Synonyms, ", "))
	}
	if t.Description != "" {
		fmt.Fprintf(&b, "  %s\n", t.Description)
	}
	return b.String()
}

// ValidationResult is the JSON output of kb validate.
type ValidationResult struct {
	Valid   bool   `json:"valid"`
	Source  string `json:"source"`
	Version string `json:"version,omitempty"`
	Tests   int    `json:"tests,omitempty"`
	Error   string `json:"error,omitempty"`
}

func newKBValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a knowledge base document",
		Long: "Parses the document, checks it against the schema and builds the\n" +
			"knowledge base. Without a file the configured source is checked.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			var src lab_kb.Source
			closeSrc := func() error { return nil }
			if len(args) == 1 {
				src = lab_kb.FileSource{Path: args[0]}
			} else if src, closeSrc, err = simplify.KnowledgeBaseSource(cliCtx.Config, cliCtx.Logger); err != nil {
				return err
			}
			defer closeSrc()

			ctx, cancel := context.WithTimeout(cmd.Context(), cliCtx.Timeout)
			defer cancel()

			kb, loadErr := lab_kb.Load(ctx, src)
			res := ValidationResult{Valid: loadErr == nil, Source: src.Name()}
			if loadErr != nil {
				res.Error = loadErr.Error()
				if cliCtx.OutputFormat == OutputJSON {
					if err := printJSON(cmd, res); err != nil {
						return err
					}
				}
				return loadErr
			}

			res.Version, res.Tests = kb.Version(), kb.Len()
			text := fmt.Sprintf("OK: %s is valid (version %s, %d tests)\n", res.Source, res.Version, res.Tests)
			return PrintResult(cmd, text, res)
		},
	}
}

func newKBPublishCmd() *cobra.Command {
	var bucket, object string

	cmd := &cobra.Command{
		Use:   "publish <file>",
		Short: "Validate a knowledge base document and upload it to object storage",
		Long: "Uploads the document to the bucket and object the API server reads at\n" +
			"startup (kb.bucket / kb.object, minio.* settings). The document is\n" +
			"validated first; invalid documents are never uploaded.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg := cliCtx.Config
			if bucket == "" {
				bucket = cfg.KB.Bucket
			}
			if object == "" {
				object = cfg.KB.Object
			}
			if bucket == "" || object == "" {
				return errors.InvalidParam("bucket and object are required").
					WithDetail("set kb.bucket and kb.object or pass --bucket and --object")
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeKBSourceUnavailable, "read knowledge base file").WithDetail(args[0])
			}
			doc, err := lab_kb.Parse(data)
			if err != nil {
				return err
			}
			kb, err := lab_kb.New(doc)
			if err != nil {
				return err
			}

			client, err := minio.NewClient(minio.Config{
				Endpoint:        cfg.MinIO.Endpoint,
				AccessKeyID:     cfg.MinIO.AccessKeyID,
				SecretAccessKey: cfg.MinIO.SecretAccessKey,
				UseSSL:          cfg.MinIO.UseSSL,
				Region:          cfg.MinIO.Region,
			}, cliCtx.Logger)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), cliCtx.Timeout)
			defer cancel()

			src := minio.NewKBSource(client, bucket, object)
			if err := src.Publish(ctx, data); err != nil {
				return err
			}
			cliCtx.Logger.Info("knowledge base published",
				logging.String("target", src.Name()),
				logging.String("version", kb.Version()))

			PrintSuccess(cmd, fmt.Sprintf("published %s (version %s, %d tests) to %s", args[0], kb.Version(), kb.Len(), src.Name()))
			return nil
		},
	}
	cmd.Flags().StringVar(&bucket, "bucket", "", "target bucket (default: kb.bucket)")
	cmd.Flags().StringVar(&object, "object", "", "target object (default: kb.object)")
	return cmd
}
