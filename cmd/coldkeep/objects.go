package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/coldkeep/coldkeep/internal/lifecycle"
	"github.com/coldkeep/coldkeep/internal/objstore"
	"github.com/coldkeep/coldkeep/internal/tier"
	"github.com/coldkeep/coldkeep/pkg/bytesize"
)

var (
	orphanPrefix string
	orphanTier   string
	orphanDryRun bool
	adoptHotFor  string
)

func newObjectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "objects [prefix]",
		Short: "List objects in both buckets",
		Long: `List every object in the hot and cold buckets, regardless of whether a
metadata record points at it. An optional prefix narrows the listing.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runObjects,
	}
}

func runObjects(cmd *cobra.Command, args []string) error {
	setupLogging()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	prefix := ""
	if len(args) > 0 {
		prefix = args[0]
	}

	ctx := context.Background()
	manager, cleanup, err := buildManager(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	all, err := manager.ListAllObjects(ctx, prefix)
	if err != nil {
		return err
	}

	if all.TotalCount == 0 {
		fmt.Println("No objects found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TIER\tKEY\tSIZE\tLAST MODIFIED")
	writeObjectRows(w, tier.Hot, all.Hot.Objects)
	writeObjectRows(w, tier.Cold, all.Cold.Objects)
	_ = w.Flush()

	fmt.Printf("\n%d object(s): %d hot, %d cold.\n", all.TotalCount, all.Hot.Count, all.Cold.Count)
	return nil
}

func writeObjectRows(w *tabwriter.Writer, t tier.Tier, objects []objstore.RemoteObject) {
	for _, o := range objects {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			t, o.Key, bytesize.Format(o.Size), formatTimestamp(o.LastModified))
	}
}

func newOrphansCmd() *cobra.Command {
	orphansCmd := &cobra.Command{
		Use:   "orphans",
		Short: "Reconcile objects that have no metadata record",
		Long: `Reconcile orphan objects: bucket entries no metadata record points at.

Orphans appear when an upload's record write fails, or when objects are
placed in the bucket out of band. List them, delete them, or adopt them by
creating records.

Examples:
  # See what is dangling
  coldkeep orphans list

  # Preview a cleanup, then run it
  coldkeep orphans delete --dry-run
  coldkeep orphans delete --prefix private/

  # Bring out-of-band uploads under management
  coldkeep orphans adopt --prefix public/imports/`,
	}

	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List orphan objects",
		RunE:    runOrphansList,
	}
	listCmd.Flags().StringVar(&orphanPrefix, "prefix", "", "only scan keys under this prefix")
	orphansCmd.AddCommand(listCmd)

	deleteCmd := &cobra.Command{
		Use:     "delete",
		Aliases: []string{"rm"},
		Short:   "Delete orphan objects",
		RunE:    runOrphansDelete,
	}
	deleteCmd.Flags().StringVar(&orphanPrefix, "prefix", "", "only delete keys under this prefix")
	deleteCmd.Flags().StringVar(&orphanTier, "tier", "", "only delete from this tier: hot or cold")
	deleteCmd.Flags().BoolVar(&orphanDryRun, "dry-run", false, "report what would be deleted without deleting")
	orphansCmd.AddCommand(deleteCmd)

	adoptCmd := &cobra.Command{
		Use:   "adopt",
		Short: "Create metadata records for orphan objects",
		RunE:  runOrphansAdopt,
	}
	adoptCmd.Flags().StringVar(&orphanPrefix, "prefix", "", "only adopt keys under this prefix")
	adoptCmd.Flags().StringVar(&orphanTier, "tier", "", "only adopt from this tier: hot or cold")
	adoptCmd.Flags().StringVar(&adoptHotFor, "hot-for", "", "archive adopted hot objects after this duration, e.g. 72h")
	orphansCmd.AddCommand(adoptCmd)

	return orphansCmd
}

func runOrphansList(cmd *cobra.Command, args []string) error {
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

	orphans, err := manager.ListOrphanObjects(ctx, orphanPrefix)
	if err != nil {
		return err
	}

	if len(orphans) == 0 {
		fmt.Println("No orphan objects found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TIER\tKEY\tSIZE\tLAST MODIFIED")
	for _, o := range orphans {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			o.Tier, o.Key, bytesize.Format(o.Size), formatTimestamp(o.LastModified))
	}
	_ = w.Flush()

	fmt.Printf("\n%d orphan object(s).\n", len(orphans))
	return nil
}

// parseOrphanTier turns the optional --tier flag into a filter; empty means
// both tiers.
func parseOrphanTier(flag string) (tier.Tier, error) {
	if flag == "" {
		return "", nil
	}
	return tier.ParseTier(flag)
}

func runOrphansDelete(cmd *cobra.Command, args []string) error {
	setupLogging()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	t, err := parseOrphanTier(orphanTier)
	if err != nil {
		return err
	}

	ctx := context.Background()
	manager, cleanup, err := buildManager(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := manager.DeleteOrphans(ctx, lifecycle.DeleteOrphanOptions{
		Prefix: orphanPrefix,
		Tier:   t,
		DryRun: orphanDryRun,
	})
	if err != nil {
		return err
	}

	if result.DryRun {
		fmt.Printf("Would delete %d orphan object(s):\n", result.Deleted)
		for _, path := range result.DeletedPaths {
			fmt.Printf("  %s\n", path)
		}
		return nil
	}

	fmt.Printf("Deleted %d orphan object(s).\n", result.Deleted)
	if result.Failed > 0 {
		for _, e := range result.Errors {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", e.Path, e.Error)
		}
		return fmt.Errorf("%d deletion(s) failed", result.Failed)
	}
	return nil
}

func runOrphansAdopt(cmd *cobra.Command, args []string) error {
	setupLogging()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	t, err := parseOrphanTier(orphanTier)
	if err != nil {
		return err
	}

	opts := lifecycle.AdoptOrphanOptions{
		Prefix: orphanPrefix,
		Tier:   t,
	}
	if adoptHotFor != "" {
		d, err := time.ParseDuration(adoptHotFor)
		if err != nil {
			return fmt.Errorf("invalid --hot-for duration: %w", err)
		}
		opts.SetHotUntil = true
		opts.HotDuration = &d
	}

	ctx := context.Background()
	manager, cleanup, err := buildManager(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := manager.AdoptOrphans(ctx, opts)
	if err != nil {
		return err
	}

	fmt.Printf("Adopted %d orphan object(s).\n", result.Adopted)
	for _, id := range result.AdoptedIDs {
		fmt.Printf("  %s\n", id)
	}
	if result.Failed > 0 {
		for _, e := range result.Errors {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", e.Path, e.Error)
		}
		return fmt.Errorf("%d adoption(s) failed", result.Failed)
	}
	return nil
}
