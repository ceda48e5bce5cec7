package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Checker-Finance/yieldcurve/internal/bonds"
	"github.com/Checker-Finance/yieldcurve/internal/httpclient"
	"github.com/Checker-Finance/yieldcurve/internal/rate"
	"github.com/Checker-Finance/yieldcurve/internal/service"
	"github.com/Checker-Finance/yieldcurve/pkg/logger"
	"github.com/Checker-Finance/yieldcurve/pkg/model"
)

func parseDateArg(s string) (time.Time, error) {
	d, err := time.Parse(model.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format '%s'. Please use YYYY-MM-DD format", s)
	}
	return d, nil
}

// --- Generate Command ---

var generateCmd = &cobra.Command{
	Use:   "generate [date]",
	Short: "Generate and store the yield curve for a business date",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := parseDateArg(args[0])
		if err != nil {
			return err
		}
		method, _ := cmd.Flags().GetString("method")
		force, _ := cmd.Flags().GetBool("force")

		d, err := openDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer d.close()

		ok, err := d.service.CheckHasObservations(cmd.Context(), date)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if !ok {
			printNoBondData(out, args[0])
			return fmt.Errorf("no bond data for %s", args[0])
		}

		fmt.Fprintf(out, "Generating yield curve for %s\n", args[0])
		res, err := d.service.GenerateCurve(cmd.Context(), date, service.GenerateOptions{Method: method, Force: force})
		if err != nil {
			return err
		}
		printCurveResult(out, res)
		return nil
	},
}

// --- Show Command ---

var showCmd = &cobra.Command{
	Use:   "show [date]",
	Short: "Print the stored yield curve for a business date",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := parseDateArg(args[0])
		if err != nil {
			return err
		}
		d, err := openDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer d.close()

		c, err := d.service.GetCurve(cmd.Context(), date)
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("no yield curve stored for %s", args[0])
		}
		printCurve(cmd.OutOrStdout(), c)
		return nil
	},
}

// --- Dates Command ---

var datesCmd = &cobra.Command{
	Use:   "dates",
	Short: "List business dates with a stored yield curve",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer d.close()

		dates, err := d.service.ListCurveDates(cmd.Context())
		if err != nil {
			return err
		}
		printDates(cmd.OutOrStdout(), dates)
		return nil
	},
}

// --- Load Command ---

var loadCmd = &cobra.Command{
	Use:   "load [date]",
	Short: "Load the Tradeweb close-price file for a date into the bonds table",
	Long:  "Accepts YYYY-MM-DD, MM/DD/YYYY or YYYYMMDD.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := bonds.ParseDateInput(args[0])
		if err != nil {
			return err
		}
		dir, _ := cmd.Flags().GetString("downloads-dir")
		if dir == "" {
			dir = cfg.DownloadsDir
		}

		d, err := openDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer d.close()

		loader := bonds.NewLoader(d.stores.Bonds, dir, logger.Named("loader"))
		res, err := loader.LoadDate(cmd.Context(), date)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		printLoadResult(out, res)

		stats, err := d.stores.Bonds.SummaryStats(cmd.Context())
		if err != nil {
			return err
		}
		printSummary(out, stats)
		return nil
	},
}

// --- Fetch Command ---

var fetchCmd = &cobra.Command{
	Use:   "fetch [date]",
	Short: "Download the close-price file for a date into the downloads directory",
	Long:  "Uses DOWNLOAD_URL_TEMPLATE. With --load the file is loaded into the bonds table afterwards.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := bonds.ParseDateInput(args[0])
		if err != nil {
			return err
		}
		dir, _ := cmd.Flags().GetString("downloads-dir")
		if dir == "" {
			dir = cfg.DownloadsDir
		}
		overwrite, _ := cmd.Flags().GetBool("overwrite")
		load, _ := cmd.Flags().GetBool("load")

		exec := httpclient.New(logger.Named("httpclient"),
			rate.NewManager(rate.Config{RequestsPerSecond: 1, Burst: 1}),
			&http.Client{Timeout: cfg.DownloadTimeout},
			cfg.DownloadRetries, 0)
		fetcher := bonds.NewFetcher(exec, cfg.DownloadURLTemplate, dir, logger.Named("fetcher"))

		path, err := fetcher.FetchDate(cmd.Context(), date, overwrite)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Found bond file: %s\n", path)
		if !load {
			return nil
		}

		d, err := openDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer d.close()

		res, err := bonds.NewLoader(d.stores.Bonds, dir, logger.Named("loader")).LoadFile(cmd.Context(), path)
		if err != nil {
			return err
		}
		printLoadResult(out, res)
		return nil
	},
}

// --- Stats Command ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise the bonds table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer d.close()

		stats, err := d.stores.Bonds.SummaryStats(cmd.Context())
		if err != nil {
			return err
		}
		printSummary(cmd.OutOrStdout(), stats)
		return nil
	},
}

func init() {
	generateCmd.Flags().String("method", "", "interpolation method (linear, cubic); defaults to DEFAULT_METHOD")
	generateCmd.Flags().Bool("force", false, "regenerate and replace an existing curve")
	loadCmd.Flags().String("downloads-dir", "", "directory holding Tradeweb CSV files (default DOWNLOADS_DIR)")
	fetchCmd.Flags().String("downloads-dir", "", "directory to save into (default DOWNLOADS_DIR)")
	fetchCmd.Flags().Bool("overwrite", false, "download even when a file for the date exists")
	fetchCmd.Flags().Bool("load", false, "load the file into the bonds table after downloading")
}
