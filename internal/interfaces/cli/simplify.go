package cli

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sneharawat080/medsimplify/internal/application/simplify"
	"github.com/sneharawat080/medsimplify/pkg/client"
	"github.com/sneharawat080/medsimplify/pkg/errors"
	"github.com/sneharawat080/medsimplify/pkg/types/lab"
)

type simplifyOptions struct {
	server          string
	recommendations bool
}

func newSimplifyCmd() *cobra.Command {
	opts := &simplifyOptions{}

	cmd := &cobra.Command{
		Use:   "simplify [file|-]",
		Short: "Simplify a lab report from a file or stdin",
		Long: "Reads a laboratory report from the given file, or from stdin when the\n" +
			"argument is \"-\" or omitted, and prints the plain-language explanation.",
		Example: "  medsimplify simplify report.txt\n" +
			"  pbpaste | medsimplify simplify -o json\n" +
			"  medsimplify simplify report.txt --server http://localhost:8080",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			return runSimplify(cmd, cliCtx, opts, path)
		},
	}

	cmd.Flags().StringVar(&opts.server, "server", "", "send the report to a running API server instead of simplifying locally")
	cmd.Flags().BoolVar(&opts.recommendations, "recommendations", true, "print recommendations after the results (text output)")
	return cmd
}

func runSimplify(cmd *cobra.Command, cliCtx *CLIContext, opts *simplifyOptions, path string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cliCtx.Timeout)
	defer cancel()

	doc, err := readInput(cmd, path)
	if err != nil {
		return err
	}

	var resp *lab.SimplifyResponse
	if opts.server != "" {
		resp, err = simplifyRemote(ctx, opts.server, doc)
	} else {
		resp, err = simplifyLocal(ctx, cliCtx, doc)
	}
	if err != nil {
		return err
	}

	text := simplify.RenderText(resp)
	if opts.recommendations {
		text += simplify.RenderRecommendations(resp.Recommendations)
	}
	return PrintResult(cmd, text, resp)
}

// readInput returns the document to simplify. stdin is always treated as
// plain text; files are typed by extension, then by content sniffing.
func readInput(cmd *cobra.Command, path string) (*simplify.Document, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "read stdin")
		}
		return &simplify.Document{Filename: "stdin", ContentType: "text/plain", Data: data}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSimplifyNoFile, "cannot read report file").WithDetail(path)
	}
	ct := mime.TypeByExtension(filepath.Ext(path))
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return &simplify.Document{Filename: filepath.Base(path), ContentType: ct, Data: data}, nil
}

func simplifyLocal(ctx context.Context, cliCtx *CLIContext, doc *simplify.Document) (*lab.SimplifyResponse, error) {
	svc, _, err := cliCtx.Service(ctx)
	if err != nil {
		return nil, err
	}
	if doc.Filename == "stdin" {
		if len(doc.Data) == 0 {
			return nil, errors.New(errors.ErrCodeSimplifyEmptyInput, "no text provided")
		}
		return svc.SimplifyFrom(ctx, simplify.SourceCLI, string(doc.Data))
	}
	return svc.SimplifyDocument(ctx, doc)
}

func simplifyRemote(ctx context.Context, server string, doc *simplify.Document) (*lab.SimplifyResponse, error) {
	c, err := client.NewClient(server)
	if err != nil {
		return nil, err
	}
	if doc.Filename == "stdin" {
		return c.SimplifyText(ctx, string(doc.Data))
	}
	return c.SimplifyFile(ctx, doc.Filename, doc.ContentType, bytes.NewReader(doc.Data))
}
