package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/coldkeep/coldkeep/internal/lifecycle"
	"github.com/coldkeep/coldkeep/internal/record"
	"github.com/coldkeep/coldkeep/internal/tier"
)

var (
	uploadTier       string
	uploadVisibility string
	uploadName       string
	uploadSuffix     string
	uploadHotFor     string

	urlExpires time.Duration
)

func newUploadCmd() *cobra.Command {
	uploadCmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a file",
		Long: `Upload a file to the configured storage.

Examples:
  # Upload to the default tier and visibility
  coldkeep upload report.pdf

  # Public cold-tier upload under a chosen key
  coldkeep upload backup.tar --tier cold --visibility public --path-suffix backups/2026/backup.tar

  # Hot upload that is archived after a week
  coldkeep upload report.pdf --hot-for 168h`,
		Args: cobra.ExactArgs(1),
		RunE: runUpload,
	}
	uploadCmd.Flags().StringVar(&uploadTier, "tier", "", "storage tier: hot or cold (default from config)")
	uploadCmd.Flags().StringVar(&uploadVisibility, "visibility", "", "visibility: public or private (default from config)")
	uploadCmd.Flags().StringVar(&uploadName, "name", "", "stored filename (default: basename of the file)")
	uploadCmd.Flags().StringVar(&uploadSuffix, "path-suffix", "", "object key below the visibility prefix (default: <uuid>-<filename>)")
	uploadCmd.Flags().StringVar(&uploadHotFor, "hot-for", "", "archive after this duration, e.g. 72h (hot tier only)")
	return uploadCmd
}

func runUpload(cmd *cobra.Command, args []string) error {
	setupLogging()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	opts := lifecycle.UploadOptions{
		Filename:   uploadName,
		PathSuffix: uploadSuffix,
	}
	if opts.Filename == "" {
		opts.Filename = filepath.Base(args[0])
	}
	if uploadTier != "" {
		t, err := tier.ParseTier(uploadTier)
		if err != nil {
			return err
		}
		opts.Tier = t
	}
	if uploadVisibility != "" {
		v, err := tier.ParseVisibility(uploadVisibility)
		if err != nil {
			return err
		}
		opts.Visibility = v
	}
	if uploadHotFor != "" {
		d, err := time.ParseDuration(uploadHotFor)
		if err != nil {
			return fmt.Errorf("invalid --hot-for duration: %w", err)
		}
		opts.HotDuration = &d
	}

	ctx := context.Background()
	manager, cleanup, err := buildManager(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	f, err := manager.Upload(ctx, data, opts)
	if err != nil {
		return err
	}

	fmt.Printf("Uploaded '%s'.\n\n", f.Filename)
	printFile(f)
	return nil
}

func newURLCmd() *cobra.Command {
	urlCmd := &cobra.Command{
		Use:   "url <file-id>",
		Short: "Print a download URL for a file",
		Long: `Print a download URL for a file.

Public files get their permanent unauthenticated URL. Private files get a
presigned URL valid for --expires (default: advanced.presign_expiry).`,
		Args: cobra.ExactArgs(1),
		RunE: runURL,
	}
	urlCmd.Flags().DurationVar(&urlExpires, "expires", 0, "presigned URL lifetime (private files only)")
	return urlCmd
}

func runURL(cmd *cobra.Command, args []string) error {
	setupLogging()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	manager, cleanup, err := buildManager(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	f, err := manager.FindByID(ctx, args[0])
	if err != nil {
		return err
	}

	u, err := manager.URL(f, urlExpires)
	if err != nil {
		return err
	}

	fmt.Println(u)
	return nil
}

func newStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <file-id>",
		Short: "Show a file record",
		Args:  cobra.ExactArgs(1),
		RunE:  runStat,
	}
}

func runStat(cmd *cobra.Command, args []string) error {
	setupLogging()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	manager, cleanup, err := buildManager(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	f, err := manager.FindByID(ctx, args[0])
	if err != nil {
		return err
	}

	printFile(f)
	if !manager.Exists(ctx, f) {
		fmt.Printf("\nWARNING: no object found at %s on the %s tier.\n", f.Path, f.Tier)
	}
	return nil
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List all file records",
		RunE:    runList,
	}
}

func runList(cmd *cobra.Command, args []string) error {
	setupLogging()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	manager, cleanup, err := buildManager(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	files, err := manager.ListFiles(ctx)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		fmt.Println("No files found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTIER\tFILENAME\tPATH\tHOT UNTIL")
	for _, f := range files {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			f.ID, f.Tier, f.Filename, f.Path, formatHotUntil(f.HotUntil))
	}
	_ = w.Flush()

	return nil
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <file-id>",
		Aliases: []string{"delete"},
		Short:   "Delete a file and its record",
		Args:    cobra.ExactArgs(1),
		RunE:    runRemove,
	}
}

func runRemove(cmd *cobra.Command, args []string) error {
	setupLogging()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	manager, cleanup, err := buildManager(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	f, err := manager.FindByID(ctx, args[0])
	if err != nil {
		return err
	}

	if err := manager.Delete(ctx, f); err != nil {
		return err
	}

	fmt.Printf("File '%s' deleted.\n", f.Filename)
	return nil
}

// printFile writes one record as aligned key-value lines.
func printFile(f record.File) {
	fmt.Printf("ID:        %s\n", f.ID)
	fmt.Printf("Filename:  %s\n", f.Filename)
	fmt.Printf("Tier:      %s\n", f.Tier)
	fmt.Printf("Path:      %s\n", f.Path)
	fmt.Printf("Hot until: %s\n", formatHotUntil(f.HotUntil))
	fmt.Printf("Created:   %s\n", formatTimestamp(f.CreatedAt))
	fmt.Printf("Updated:   %s\n", formatTimestamp(f.UpdatedAt))
}

// formatHotUntil renders an optional archival deadline; absent means the
// file stays on its tier until told otherwise.
func formatHotUntil(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTimestamp(*t)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}
