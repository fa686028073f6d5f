package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/totegamma/mediafetch"
)

const maxLineSize = 4 << 20

var (
	ingestInput    string
	ingestParallel int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Process JSON-lines items from a file or stdin",
	Long:  "Reads one item per line, fetches its media into the object store and prints the annotated items as JSON lines in input order.",
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestInput, "in", "i", "-", "Input file, - for stdin")
	ingestCmd.Flags().IntVarP(&ingestParallel, "parallel", "p", 4, "Items processed concurrently")
	rootCmd.AddCommand(ingestCmd)
}

type itemProcessor interface {
	Process(ctx context.Context, item mediafetch.Item) (mediafetch.Item, error)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	in := io.Reader(os.Stdin)
	if ingestInput != "" && ingestInput != "-" {
		f, err := os.Open(ingestInput)
		if err != nil {
			return errors.Wrap(err, "failed to open input")
		}
		defer f.Close()
		in = f
	}

	return ingest(ctx, a.item, in, cmd.OutOrStdout(), ingestParallel)
}

// ingest processes every item before writing any output so lines come out in
// input order regardless of completion order.
func ingest(ctx context.Context, p itemProcessor, r io.Reader, w io.Writer, parallel int) error {
	items, err := readItems(r)
	if err != nil {
		return err
	}

	if parallel <= 0 {
		parallel = 1
	}

	results := make([]mediafetch.Item, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, item := range items {
		g.Go(func() error {
			out, err := p.Process(gctx, item)
			if err != nil {
				return errors.Wrapf(err, "item on line %d", i+1)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	for _, item := range results {
		if err := enc.Encode(item); err != nil {
			return errors.Wrap(err, "failed to write item")
		}
	}
	return nil
}

func readItems(r io.Reader) ([]mediafetch.Item, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var items []mediafetch.Item
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var item mediafetch.Item
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		if item == nil {
			return nil, errors.Errorf("line %d: item must be a JSON object", line)
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read input")
	}
	return items, nil
}
