package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/ummati-backend/internal/bootstrap"
	"github.com/angelmondragon/ummati-backend/internal/tiers"
	"github.com/angelmondragon/ummati-backend/pkg/config"
)

type codeCleaner interface {
	CleanupExpiredCodes(ctx context.Context) (int64, error)
}

type runtime struct {
	cfg     *config.Config
	catalog *tiers.Service
	qr      func(ctx context.Context) (codeCleaner, error)
	close   func()
}

type env struct {
	open func(ctx context.Context) (*runtime, error)
}

func (e *env) with(cmd *cobra.Command, fn func(ctx context.Context, rt *runtime) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := e.open(ctx)
	if err != nil {
		return err
	}
	if rt.close != nil {
		defer rt.close()
	}
	return fn(ctx, rt)
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:           "ummatictl",
		Short:         "Operate the Ummati membership backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newTiersCmd(e), newQRCmd(e))
	return root
}

func newTiersCmd(e *env) *cobra.Command {
	tiersCmd := &cobra.Command{Use: "tiers", Short: "Manage the membership tier catalog"}

	var file string
	seed := &cobra.Command{
		Use:   "seed",
		Short: "Upsert tiers from the built-in catalog or a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.with(cmd, func(ctx context.Context, rt *runtime) error {
				if file == "" {
					n, err := bootstrap.SeedTiers(ctx, rt.cfg, rt.catalog)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "seeded %d tiers\n", n)
					return nil
				}
				defs, err := readDefinitions(file)
				if err != nil {
					return err
				}
				seeded, err := rt.catalog.Seed(ctx, defs)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d tiers\n", len(seeded))
				return nil
			})
		},
	}
	seed.Flags().StringVarP(&file, "file", "f", "", "YAML tier definitions (default: built-in catalog)")

	list := &cobra.Command{
		Use:   "list",
		Short: "Print the catalog ordered by price",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.with(cmd, func(ctx context.Context, rt *runtime) error {
				rows, err := rt.catalog.FindAll(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tPRICE\tINTERVAL\tPAID\tBENEFITS")
				for _, dto := range tiers.FromModels(rows) {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%d\n", dto.Name, dto.Price.StringFixed(2), dto.BillingInterval, dto.IsPaid, len(dto.Benefits))
				}
				return tw.Flush()
			})
		},
	}

	tiersCmd.AddCommand(seed, list)
	return tiersCmd
}

func newQRCmd(e *env) *cobra.Command {
	qrCmd := &cobra.Command{Use: "qr", Short: "Maintain member QR codes"}
	qrCmd.AddCommand(&cobra.Command{
		Use:   "cleanup",
		Short: "Deactivate QR codes past their expiry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.with(cmd, func(ctx context.Context, rt *runtime) error {
				cleaner, err := rt.qr(ctx)
				if err != nil {
					return err
				}
				n, err := cleaner.CleanupExpiredCodes(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deactivated %d expired codes\n", n)
				return nil
			})
		},
	})
	return qrCmd
}

func readDefinitions(path string) ([]tiers.Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return tiers.ParseDefinitions(f)
}
