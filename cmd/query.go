package main

import (
	"github.com/spf13/cobra"

	"github.com/lifeline-ng/lifeline/internal/model"
	"github.com/lifeline-ng/lifeline/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search active providers by state, LGA, type, category or name",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		f := cmd.Flags()

		filter, err := searchFilter(cmd)
		if err != nil {
			return err
		}
		page, _ := f.GetInt("page")
		pageSize, _ := f.GetInt("page-size")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		result, err := search.NewService(st).Search(ctx, filter, page, pageSize)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	},
}

var nearbyCmd = &cobra.Command{
	Use:   "nearby",
	Short: "List active providers within a radius of a point, nearest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		f := cmd.Flags()

		q := model.NearbyQuery{}
		q.Lat, _ = f.GetFloat64("lat")
		q.Lng, _ = f.GetFloat64("lng")
		q.RadiusKM, _ = f.GetFloat64("radius-km")
		q.Limit, _ = f.GetInt("limit")
		q.Category, _ = f.GetString("category")
		pt, err := providerTypeFlag(cmd)
		if err != nil {
			return err
		}
		q.ProviderType = pt

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		items, err := search.NewService(st).Nearby(ctx, q)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), items)
	},
}

var providerCmd = &cobra.Command{
	Use:   "provider <id>",
	Short: "Show one provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p, err := search.NewService(st).Get(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), p)
	},
}

func init() {
	sf := searchCmd.Flags()
	sf.Int("state", 0, "state id")
	sf.Int("lga", 0, "LGA id (requires --state)")
	sf.String("type", "", "provider type, e.g. HOSPITAL")
	sf.String("category", "", "exact category")
	sf.String("q", "", "case-insensitive name substring")
	sf.Int("page", 1, "page number")
	sf.Int("page-size", search.DefaultPageSize, "results per page")

	nf := nearbyCmd.Flags()
	nf.Float64("lat", 0, "latitude")
	nf.Float64("lng", 0, "longitude")
	nf.Float64("radius-km", search.DefaultRadiusKM, "search radius in km")
	nf.Int("limit", search.DefaultLimit, "maximum results")
	nf.String("type", "", "provider type, e.g. AMBULANCE")
	nf.String("category", "", "exact category")
	_ = nearbyCmd.MarkFlagRequired("lat")
	_ = nearbyCmd.MarkFlagRequired("lng")

	rootCmd.AddCommand(searchCmd, nearbyCmd, providerCmd)
}

func searchFilter(cmd *cobra.Command) (model.SearchFilter, error) {
	f := cmd.Flags()
	filter := model.SearchFilter{}
	filter.StateID, _ = f.GetInt("state")
	filter.LGAID, _ = f.GetInt("lga")
	filter.Category, _ = f.GetString("category")
	filter.Q, _ = f.GetString("q")

	pt, err := providerTypeFlag(cmd)
	if err != nil {
		return model.SearchFilter{}, err
	}
	filter.ProviderType = pt
	return filter, nil
}

func providerTypeFlag(cmd *cobra.Command) (model.ProviderType, error) {
	v, _ := cmd.Flags().GetString("type")
	if v == "" {
		return "", nil
	}
	return model.ParseProviderType(v)
}
