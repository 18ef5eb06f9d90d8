package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"scenefetch/internal/config"
	"scenefetch/internal/logging"
	"scenefetch/internal/progress"
	"scenefetch/internal/reconcile"
	"scenefetch/internal/store"
	"scenefetch/internal/transfer"
	"scenefetch/internal/usgs"

	"github.com/spf13/cobra"
)

// searchPageSize caps one scene-search page; the service allows more but
// large pages time out for some datasets.
const searchPageSize = 100

func newDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download [flags] OUTDIR",
		Short: "Search scenes and download the matching products",
		Long: `Search the catalog for scenes matching the given product, date range and
filters, persist their metadata locally and download every product the
service stages. Scenes already marked complete in the local database are
skipped, so the command can be re-run after an interruption.`,
		Args: cobra.ExactArgs(1),
		RunE: runDownload,
	}

	fl := cmd.Flags()
	fl.String("product", "", "data product alias to query (one of: "+strings.Join(config.DatasetAliases(), ", ")+")")
	fl.String("start-date", "", "start of acquisition date range (YYYY-MM-DD)")
	fl.String("end-date", "", "end of acquisition date range (YYYY-MM-DD)")
	fl.Int("cloudcover-min", 0, "minimum scene cloud cover percentage")
	fl.Int("cloudcover-max", 100, "maximum scene cloud cover percentage")
	fl.Bool("include-unknown-clouds", false, "include scenes with unknown cloud cover")
	fl.StringSlice("months", nil, "limit query to months in the date range (jan..dec)")
	fl.Int("max-results", 100, "maximum number of scenes to fetch")
	fl.String("lower-left", "", "AOI lower-left corner as lat,lon")
	fl.String("upper-right", "", "AOI upper-right corner as lat,lon")
	fl.String("label", "", "download order label (default: scenefetch)")
	fl.Duration("poll-interval", 30*time.Second, "download queue poll interval")
	_ = cmd.MarkFlagRequired("product")

	return cmd
}

func applyDownloadFlags(cmd *cobra.Command) {
	fl := cmd.Flags()
	if fl.Changed("product") {
		cfg.Dataset, _ = fl.GetString("product")
	}
	if fl.Changed("start-date") {
		cfg.StartDate, _ = fl.GetString("start-date")
	}
	if fl.Changed("end-date") {
		cfg.EndDate, _ = fl.GetString("end-date")
	}
	if fl.Changed("cloudcover-min") {
		cfg.CloudCoverMin, _ = fl.GetInt("cloudcover-min")
	}
	if fl.Changed("cloudcover-max") {
		cfg.CloudCoverMax, _ = fl.GetInt("cloudcover-max")
	}
	if fl.Changed("include-unknown-clouds") {
		cfg.IncludeUnknownClouds, _ = fl.GetBool("include-unknown-clouds")
	}
	if fl.Changed("months") {
		cfg.Months, _ = fl.GetStringSlice("months")
	}
	if fl.Changed("max-results") {
		cfg.MaxResults, _ = fl.GetInt("max-results")
	}
	if fl.Changed("label") {
		cfg.Label, _ = fl.GetString("label")
	}
	if fl.Changed("poll-interval") {
		cfg.PollInterval, _ = fl.GetDuration("poll-interval")
	}
}

func runDownload(cmd *cobra.Command, args []string) error {
	applyDownloadFlags(cmd)
	cfg.OutputDir = args[0]

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.ValidateDataset(); err != nil {
		return err
	}
	if err := cfg.ValidateCredentials(); err != nil {
		return err
	}
	if err := cfg.ResolveOutputDir(); err != nil {
		return err
	}

	filter, err := buildSceneFilter(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()
	if err := st.EnsureSchema(ctx); err != nil {
		return err
	}

	client := usgs.New(cfg.Endpoint)
	if err := login(ctx, client); err != nil {
		return err
	}
	defer func() { _ = client.Logout(context.WithoutCancel(ctx)) }()

	results, err := searchScenes(ctx, client, filter)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No scenes match the given filters.")
		return nil
	}

	if cfg.DryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "Would download %d scenes:\n", len(results))
		for _, r := range results {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s (%s)\n", r.DisplayID, r.EntityID)
		}
		return nil
	}

	available, err := orderScenes(ctx, client, results)
	if err != nil {
		return err
	}

	if err := persistScenes(ctx, client, st, results, available); err != nil {
		return err
	}

	engine := &reconcile.Engine{
		Queue:        client,
		Store:        st,
		Transfer:     transferFunc(client),
		Label:        cfg.Label,
		PollInterval: cfg.PollInterval,
		BackoffBase:  cfg.BackoffBase,
		BackoffMax:   cfg.BackoffMax,
	}
	sum, err := engine.Run(ctx)
	fmt.Fprintf(cmd.OutOrStdout(), "Completed %d downloads, %d failed, %d still pending.\n",
		sum.Completed, sum.Failed, sum.Remaining)
	return err
}

func login(ctx context.Context, client *usgs.Client) error {
	if cfg.AuthMethod == "password" {
		return client.Login(ctx, cfg.Username, cfg.Auth)
	}
	return client.LoginToken(ctx, cfg.Username, cfg.Auth)
}

func buildSceneFilter(cmd *cobra.Command) (*usgs.SceneFilter, error) {
	filter := &usgs.SceneFilter{
		AcquisitionFilter: &usgs.AcquisitionFilter{Start: cfg.StartDate, End: cfg.EndDate},
		CloudCoverFilter: &usgs.CloudCoverFilter{
			Min:            cfg.CloudCoverMin,
			Max:            cfg.CloudCoverMax,
			IncludeUnknown: cfg.IncludeUnknownClouds,
		},
		SeasonalFilter: cfg.MonthNumbers(),
	}

	ll, _ := cmd.Flags().GetString("lower-left")
	ur, _ := cmd.Flags().GetString("upper-right")
	if (ll == "") != (ur == "") {
		return nil, fmt.Errorf("an area of interest needs both --lower-left and --upper-right")
	}
	if ll != "" {
		lower, err := parseCoordinate(ll)
		if err != nil {
			return nil, fmt.Errorf("invalid --lower-left: %w", err)
		}
		upper, err := parseCoordinate(ur)
		if err != nil {
			return nil, fmt.Errorf("invalid --upper-right: %w", err)
		}
		filter.SpatialFilter = &usgs.SpatialFilterMbr{
			FilterType: "mbr",
			LowerLeft:  lower,
			UpperRight: upper,
		}
	}
	return filter, nil
}

func parseCoordinate(s string) (*usgs.Coordinate, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("%q is not a lat,lon pair", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil, fmt.Errorf("latitude %q: %w", parts[0], err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, fmt.Errorf("longitude %q: %w", parts[1], err)
	}
	return &usgs.Coordinate{Latitude: lat, Longitude: lon}, nil
}

// searchScenes pages through scene-search until MaxResults scenes were
// collected or the result set ends.
func searchScenes(ctx context.Context, client *usgs.Client, filter *usgs.SceneFilter) ([]usgs.SearchResult, error) {
	var results []usgs.SearchResult
	start := 1
	for len(results) < cfg.MaxResults {
		pageSize := cfg.MaxResults - len(results)
		if pageSize > searchPageSize {
			pageSize = searchPageSize
		}
		page, err := client.SceneSearch(ctx, cfg.Dataset, pageSize, start, filter)
		if err != nil {
			return nil, err
		}
		results = append(results, page.Results...)
		if len(page.Results) == 0 || page.NextRecord == 0 || page.NextRecord <= start {
			break
		}
		start = page.NextRecord
	}
	return results, nil
}

// orderScenes stages the scenes for bulk download: add them to a scene
// list, pick one available product per scene and request the downloads.
// The returned map carries the download URL per entity for everything the
// service could serve immediately.
func orderScenes(ctx context.Context, client *usgs.Client, results []usgs.SearchResult) (map[string]string, error) {
	entityIDs := make([]string, len(results))
	for i, r := range results {
		entityIDs[i] = r.EntityID
	}

	listID := cfg.Label
	if err := client.SceneListAdd(ctx, listID, cfg.Dataset, entityIDs); err != nil {
		return nil, err
	}
	defer func() { _ = client.SceneListRemove(context.WithoutCancel(ctx), listID) }()

	options, err := client.DownloadOptions(ctx, cfg.Dataset, listID)
	if err != nil {
		return nil, err
	}

	products := make([]usgs.DownloadProduct, 0, len(results))
	chosen := make(map[string]struct{})
	for _, opt := range options {
		if !opt.Available {
			continue
		}
		if _, ok := chosen[opt.EntityID]; ok {
			continue
		}
		chosen[opt.EntityID] = struct{}{}
		products = append(products, usgs.DownloadProduct{EntityID: opt.EntityID, ProductID: opt.ID})
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("none of the %d scenes has a downloadable product", len(results))
	}

	order, err := client.DownloadRequest(ctx, products, cfg.Label)
	if err != nil {
		return nil, err
	}

	available := make(map[string]string, len(order.AvailableDownloads))
	for _, entry := range order.AvailableDownloads {
		available[entry.EntityID] = entry.URL
	}
	return available, nil
}

// persistScenes stores full metadata for every ordered scene, flagged
// incomplete. Scenes the service is still staging get their link filled in
// with the empty string; the reconcile loop works off queue URLs anyway.
func persistScenes(ctx context.Context, client *usgs.Client, st *store.Store, results []usgs.SearchResult, links map[string]string) error {
	for _, r := range results {
		md, err := client.SceneMetadata(ctx, cfg.Dataset, r.EntityID)
		if err != nil {
			return fmt.Errorf("metadata for %s: %w", r.EntityID, err)
		}
		fields := make([]store.Field, len(md))
		for i, f := range md {
			fields[i] = store.Field{Name: f.FieldName, Value: f.Value}
		}
		if err := st.InsertScene(ctx, fields, links[r.EntityID]); err != nil {
			return err
		}
	}
	return nil
}

func transferFunc(client *usgs.Client) reconcile.TransferFunc {
	return func(ctx context.Context, dl reconcile.ReadyDownload) error {
		rep := progress.New(os.Stdout, dl.DisplayID)
		res, err := transfer.Transfer(ctx, client, dl.URL, cfg.AbsOutputDir, rep.Update)
		if err != nil {
			fmt.Fprintln(os.Stdout)
			return err
		}
		rep.Finish(res.Bytes)
		logging.LogTransferComplete(dl.EntityID, filepath.Base(res.Path), res.Bytes)
		return nil
	}
}
