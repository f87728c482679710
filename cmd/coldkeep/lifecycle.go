package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/coldkeep/coldkeep/internal/lifecycle"
	"github.com/coldkeep/coldkeep/internal/tier"
)

var (
	setTierHotFor string
	setTierNoMove bool

	setVisNoMove bool

	setHotFor   string
	setHotClear bool
	setHotNow   bool
)

func newSetTierCmd() *cobra.Command {
	setTierCmd := &cobra.Command{
		Use:   "set-tier <file-id> <hot|cold>",
		Short: "Move a file to another storage tier",
		Long: `Move a file to another storage tier.

The object is copied to the target tier's bucket and removed from the
source, then the record is updated. Moving to cold always clears the hot
expiry. Use --no-move when the object was already relocated out of band.

Examples:
  coldkeep set-tier 0d9c3aa1 cold
  coldkeep set-tier 0d9c3aa1 hot --hot-for 48h`,
		Args: cobra.ExactArgs(2),
		RunE: runSetTier,
	}
	setTierCmd.Flags().StringVar(&setTierHotFor, "hot-for", "", "archive after this duration, e.g. 48h (hot target only)")
	setTierCmd.Flags().BoolVar(&setTierNoMove, "no-move", false, "update the record without moving the object")
	return setTierCmd
}

func runSetTier(cmd *cobra.Command, args []string) error {
	setupLogging()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	t, err := tier.ParseTier(args[1])
	if err != nil {
		return err
	}

	opts := lifecycle.SetTierOptions{Tier: t, SkipMove: setTierNoMove}
	if setTierHotFor != "" {
		d, err := time.ParseDuration(setTierHotFor)
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

	f, err := manager.FindByID(ctx, args[0])
	if err != nil {
		return err
	}

	updated, err := manager.SetTier(ctx, f, opts)
	if err != nil {
		return err
	}

	fmt.Printf("File %s is now on the %s tier (%s).\n", updated.ID, updated.Tier, updated.Path)
	return nil
}

func newSetVisibilityCmd() *cobra.Command {
	setVisCmd := &cobra.Command{
		Use:   "set-visibility <file-id> <public|private>",
		Short: "Change a file's visibility",
		Long: `Change a file's visibility.

The object is moved under the target visibility prefix within its tier's
bucket, then the record path is updated. Use --no-move when the object was
already relocated out of band.`,
		Args: cobra.ExactArgs(2),
		RunE: runSetVisibility,
	}
	setVisCmd.Flags().BoolVar(&setVisNoMove, "no-move", false, "update the record without moving the object")
	return setVisCmd
}

func runSetVisibility(cmd *cobra.Command, args []string) error {
	setupLogging()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	v, err := tier.ParseVisibility(args[1])
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

	updated, err := manager.SetVisibility(ctx, f, lifecycle.SetVisibilityOptions{
		Visibility: v,
		SkipMove:   setVisNoMove,
	})
	if err != nil {
		return err
	}

	fmt.Printf("File %s is now %s (%s).\n", updated.ID, v, updated.Path)
	return nil
}

func newSetHotCmd() *cobra.Command {
	setHotCmd := &cobra.Command{
		Use:   "set-hot <file-id>",
		Short: "Change a hot file's archival deadline",
		Long: `Change when a hot file is archived to cold storage.

Exactly one of the flags must be given:
  --for <duration>  archive after the duration, counted from now
  --clear           keep the file hot until told otherwise
  --now             archive on the next sweep`,
		Args: cobra.ExactArgs(1),
		RunE: runSetHot,
	}
	setHotCmd.Flags().StringVar(&setHotFor, "for", "", "archive after this duration, e.g. 24h")
	setHotCmd.Flags().BoolVar(&setHotClear, "clear", false, "remove the archival deadline")
	setHotCmd.Flags().BoolVar(&setHotNow, "now", false, "archive on the next sweep")
	return setHotCmd
}

// resolveHotExpiry turns the set-hot flag trio into the manager's duration
// argument: nil clears the deadline, zero archives on the next sweep, a
// positive duration extends it.
func resolveHotExpiry(forFlag string, clear, now bool) (*time.Duration, error) {
	set := 0
	for _, on := range []bool{forFlag != "", clear, now} {
		if on {
			set++
		}
	}
	if set == 0 {
		return nil, fmt.Errorf("one of --for, --clear or --now is required")
	}
	if set > 1 {
		return nil, fmt.Errorf("--for, --clear and --now are mutually exclusive")
	}

	switch {
	case clear:
		return nil, nil
	case now:
		d := time.Duration(0)
		return &d, nil
	default:
		d, err := time.ParseDuration(forFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid --for duration: %w", err)
		}
		return &d, nil
	}
}

func runSetHot(cmd *cobra.Command, args []string) error {
	setupLogging()

	duration, err := resolveHotExpiry(setHotFor, setHotClear, setHotNow)
	if err != nil {
		return err
	}

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

	updated, err := manager.SetHotDuration(ctx, f, duration)
	if err != nil {
		return err
	}

	if updated.HotUntil == nil {
		fmt.Printf("File %s stays hot until told otherwise.\n", updated.ID)
	} else {
		fmt.Printf("File %s is hot until %s.\n", updated.ID, formatTimestamp(*updated.HotUntil))
	}
	return nil
}

func newArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive",
		Short: "Move expired hot files to cold storage",
		Long: `Move every hot file whose archival deadline has passed to cold storage.

The daemon runs this automatically on each sweep; this command does a
single pass by hand.`,
		RunE: runArchive,
	}
}

func runArchive(cmd *cobra.Command, args []string) error {
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

	moved, err := manager.ArchiveExpiredHotFiles(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Archived %d file(s) to cold storage.\n", moved)
	return nil
}
