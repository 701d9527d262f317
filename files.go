package replacer

import (
	"context"
	"fmt"
	"github.com/jonbodner/replacer/internal/logging"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"os"
	"path/filepath"
)

const defaultConcurrency = 4

type FileOptions struct {
	// Concurrency bounds how many files are processed at once. Zero means 4.
	Concurrency int
	// GoStrings restricts .go files to their string literals.
	GoStrings bool
	// DryRun reports what would change without writing.
	DryRun bool
	Logger *zerolog.Logger
}

type FileResult struct {
	Path    string
	Changed bool
	// Literals is the number of string literals rewritten when GoStrings applies.
	Literals int
}

// RewriteFiles runs rs over each file and writes back the ones that changed.
// Every file goes through all rules in order; only distinct files run in
// parallel. Results come back in the order of paths. The first error stops
// the remaining work.
func RewriteFiles(ctx context.Context, rs *RuleSet, paths []string, opts FileOptions) ([]FileResult, error) {
	logger := logging.OrNop(opts.Logger).With().Str("component", "files").Logger()
	defer logging.LogOperationStart(logger, "rewrite files")()

	limit := opts.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}

	results := make([]FileResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := rewriteFile(rs, path, opts)
			if err != nil {
				return err
			}
			results[i] = res
			logger.Debug().Str("path", path).Bool("changed", res.Changed).Int("literals", res.Literals).Msg("file processed")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	changed := 0
	for _, res := range results {
		if res.Changed {
			changed++
		}
	}
	logger.Info().Int("files", len(paths)).Int("changed", changed).Bool("dryRun", opts.DryRun).Msg("rewrite complete")
	return results, nil
}

func rewriteFile(rs *RuleSet, path string, opts FileOptions) (FileResult, error) {
	res := FileResult{Path: path}
	info, err := os.Stat(path)
	if err != nil {
		return res, fmt.Errorf("stat %s: %w", path, err)
	}
	code, err := os.ReadFile(path)
	if err != nil {
		return res, fmt.Errorf("read %s: %w", path, err)
	}

	var out []byte
	if opts.GoStrings && filepath.Ext(path) == ".go" {
		rewritten, n, err := RewriteGoSource(rs, code)
		if err != nil {
			return res, fmt.Errorf("%s: %w", path, err)
		}
		out = rewritten
		res.Literals = n
		res.Changed = n > 0
	} else {
		s := rs.Apply(string(code))
		out = []byte(s)
		res.Changed = s != string(code)
	}

	if !res.Changed || opts.DryRun {
		return res, nil
	}
	if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return res, fmt.Errorf("write %s: %w", path, err)
	}
	return res, nil
}
