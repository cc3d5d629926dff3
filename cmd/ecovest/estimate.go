package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aristath/ecovest/internal/domain"
	"github.com/aristath/ecovest/internal/modules/impact"
)

type estimateFlags struct {
	amount       string
	categories   []string
	location     string
	technology   string
	duration     int
	scale        int
	tier         int
	risk         string
	initiativeID int64
	persist      bool
	seed         uint64
	noJitter     bool
}

func estimateCmd() *cobra.Command {
	f := &estimateFlags{}

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the environmental impact of an investment",
		Example: `  ecovest estimate --amount "₹5,000" --category "Renewable Energy" --location Gujarat --technology Solar --duration 24 --scale 6
  ecovest estimate --amount 1000 --initiative 3 --persist`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			amount, err := domain.ParseAmount(f.amount)
			if err != nil {
				return err
			}

			_, container, _, _, err := wire(cmd)
			if err != nil {
				return err
			}
			defer container.Close()

			var profile domain.ProjectProfile
			if f.initiativeID != 0 {
				in, err := container.InitiativeRepo.GetByID(cmd.Context(), f.initiativeID)
				if err != nil {
					return err
				}
				profile = in.Profile
			} else if profile, err = f.profile(); err != nil {
				return err
			}

			var opts []impact.EstimateOption
			if cmd.Flags().Changed("seed") {
				opts = append(opts, impact.WithSeed(f.seed))
			}
			if f.noJitter {
				opts = append(opts, impact.WithoutJitter())
			}

			est, err := container.Calculator.EstimateImpactForAmount(cmd.Context(), profile, amount.InexactFloat64(), f.persist, opts...)
			if err != nil {
				return err
			}
			printEstimate(cmd.OutOrStdout(), amount.InexactFloat64(), profile, est)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.amount, "amount", "1000", "amount to invest; currency symbols and separators are ignored")
	flags.StringSliceVar(&f.categories, "category", nil, "project category (repeatable)")
	flags.StringVar(&f.location, "location", "", "Indian state the project runs in")
	flags.StringVar(&f.technology, "technology", "", "technology type (Solar, Wind, Hydro, ...)")
	flags.IntVar(&f.duration, "duration", 12, "project duration in months")
	flags.IntVar(&f.scale, "scale", 5, "project scale rank, 1-10")
	flags.IntVar(&f.tier, "tier", 0, "legacy project tier 1-5 (Small..Enterprise); overrides --scale")
	flags.StringVar(&f.risk, "risk", "medium", "risk level (low, medium, high)")
	flags.Int64Var(&f.initiativeID, "initiative", 0, "use the profile of a stored initiative")
	flags.BoolVar(&f.persist, "persist", false, "store the result as the initiative's per-1000 rates (amount must be 1000)")
	flags.Uint64Var(&f.seed, "seed", 0, "jitter seed for a reproducible estimate")
	flags.BoolVar(&f.noJitter, "no-jitter", false, "disable jitter")

	return cmd
}

// profile builds a project profile from the command-line flags.
func (f *estimateFlags) profile() (domain.ProjectProfile, error) {
	scale := f.scale
	if f.tier != 0 {
		s, err := domain.ScaleFromTier(f.tier)
		if err != nil {
			return domain.ProjectProfile{}, err
		}
		scale = s
	}
	if err := domain.ValidateScale(scale); err != nil {
		return domain.ProjectProfile{}, err
	}

	risk, err := domain.ParseRiskLevel(f.risk)
	if err != nil {
		return domain.ProjectProfile{}, err
	}

	return domain.ProjectProfile{
		Categories:     f.categories,
		Location:       f.location,
		Technology:     f.technology,
		DurationMonths: f.duration,
		Scale:          scale,
		RiskLevel:      risk,
	}, nil
}

func printEstimate(w io.Writer, amount float64, p domain.ProjectProfile, est domain.ImpactEstimate) {
	fmt.Fprintf(w, "Impact of %s over %d months\n", domain.FormatAmount(amount), p.DurationMonths)
	fmt.Fprintf(w, "  Carbon: %.2f kg CO₂\n", est.Carbon)
	fmt.Fprintf(w, "  Energy: %.2f kWh\n", est.Energy)
	fmt.Fprintf(w, "  Water:  %.2f L\n", est.Water)
}
