package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newPutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <file>...",
		Short: "Upload files and print their share links",
		Long: `Upload one or more files using resumable chunked transfers.

An interrupted upload continues from the last acknowledged chunk when the
same file is uploaded again (unless resume is disabled in the config).`,
		Args: cobra.MinimumNArgs(1),
		RunE: runPut,
	}

	addUploadFlags(cmd)

	return cmd
}

// addUploadFlags registers the per-upload flags shared by put and watch.
func addUploadFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagMode, "mode", "", "upload mode: file, image, or video (default from config)")
	cmd.Flags().StringVar(&flagPassword, "password", "", "require this password to download")
	cmd.Flags().IntVar(&flagDownloadLimit, "download-limit", 0, "maximum number of downloads (0 = server default)")
	cmd.Flags().IntVar(&flagExpireDays, "expire-days", 0, "days until the link expires (0 = server default)")
	cmd.Flags().IntVarP(&flagParallel, "parallel", "p", 0, "files uploaded at once (default from config)")
}

// parallelUploads returns the worker count from --parallel or the config.
func parallelUploads() int {
	if flagParallel > 0 {
		return flagParallel
	}

	return resolvedCfg.ParallelUploads
}

func runPut(cmd *cobra.Command, args []string) error {
	cc, err := newCLIContext(cmd.Context())
	if err != nil {
		return err
	}
	defer cc.Close()

	ctx := shutdownContext(cmd.Context(), cc)

	var progress *progressReporter
	if !flagQuiet && !flagJSON {
		progress = newProgressReporter(os.Stderr, isTerminal(os.Stderr.Fd()), len(args))
	}

	up, err := newUploader(ctx, cc, progress)
	if err != nil {
		return err
	}
	defer up.Close()

	results := make([]putResult, len(args))
	errs := make([]error, len(args))

	// Files fail independently, so the group never cancels its siblings.
	var g errgroup.Group
	g.SetLimit(parallelUploads())

	for i, path := range args {
		g.Go(func() error {
			results[i], errs[i] = up.uploadPath(ctx, path)
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // workers report through errs

	if flagJSON {
		if err := printJSON(os.Stdout, results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Error == "" {
				fmt.Printf("%s\t%s\n", r.Path, r.URL)
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		if ctx.Err() != nil {
			cc.Statusf("Interrupted. Run the same command again to resume.\n")
		}

		return err
	}

	return nil
}
