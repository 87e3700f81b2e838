package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pickoala/pickoala-cli/internal/history"
	"github.com/pickoala/pickoala-cli/internal/timefmt"
)

var (
	flagHistoryLimit int
	flagHistoryAll   bool
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent uploads and their share links",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}

	cmd.Flags().IntVarP(&flagHistoryLimit, "limit", "n", history.DefaultListLimit, "number of entries to show")
	cmd.Flags().BoolVar(&flagHistoryAll, "all", false, "include uploads to other servers")

	return cmd
}

// historyJSON is the JSON schema for one entry of `history --json`.
type historyJSON struct {
	Path       string `json:"path"`
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	MimeType   string `json:"mime_type,omitempty"`
	UploadMode string `json:"upload_mode"`
	URL        string `json:"url"`
	Server     string `json:"server"`
	UploadedAt string `json:"uploaded_at"`
	ExpireAt   string `json:"expire_at,omitempty"`
}

func runHistory(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := buildLogger()

	store, err := history.Open(ctx, resolvedCfg.HistoryPath(), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	server := resolvedCfg.ServerURL
	if flagHistoryAll {
		server = ""
	}

	entries, err := store.List(ctx, server, flagHistoryLimit)
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(os.Stdout, historyToJSON(entries))
	}

	if len(entries) == 0 {
		statusf(flagQuiet, "No uploads yet.\n")
		return nil
	}

	tz := resolvedTimezone()
	rows := make([][]string, 0, len(entries))

	for i := range entries {
		e := &entries[i]
		rows = append(rows, []string{
			timefmt.FormatDateTime(e.UploadedAt, tz),
			e.OriginalName,
			formatSize(e.Size),
			timefmt.FormatDate(e.ExpireAt, tz),
			e.ShareURL(),
		})
	}

	printTable(os.Stdout, []string{"UPLOADED", "NAME", "SIZE", "EXPIRES", "LINK"}, rows)

	return nil
}

func historyToJSON(entries []history.Entry) []historyJSON {
	out := make([]historyJSON, 0, len(entries))

	for i := range entries {
		e := &entries[i]
		h := historyJSON{
			Path:       e.LocalPath,
			Name:       e.OriginalName,
			Size:       e.Size,
			MimeType:   e.MimeType,
			UploadMode: string(e.UploadMode),
			URL:        e.ShareURL(),
			Server:     e.Server,
			UploadedAt: e.UploadedAt.Format(time.RFC3339),
		}

		if !e.ExpireAt.IsZero() {
			h.ExpireAt = e.ExpireAt.Format(time.RFC3339)
		}

		out = append(out, h)
	}

	return out
}
