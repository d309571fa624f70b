package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/geowhisper/towers/internal/adapters/mapbox"
	"github.com/geowhisper/towers/internal/adapters/memory"
	"github.com/geowhisper/towers/internal/adapters/valkey"
	"github.com/geowhisper/towers/internal/core/domain"
	"github.com/geowhisper/towers/internal/core/ports"
	"github.com/geowhisper/towers/internal/core/usecases"
	"github.com/geowhisper/towers/internal/pkg/config"
	"github.com/geowhisper/towers/internal/pkg/logging"
)

var (
	sessionID string
	zoneID    string
	lat, lon  float64
	toLat     float64
	toLon     float64
	offline   bool
	timeout   time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "zonectl",
	Short: "Operator tooling for GeoWhisper zones",
	Long:  `Inspect zone labels, session zone numbers and distances without going through the API.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup("warn", "text")
	},
}

var distanceCmd = &cobra.Command{
	Use:   "distance",
	Short: "Print the distance between two points",
	RunE:  runDistance,
}

var labelCmd = &cobra.Command{
	Use:   "label",
	Short: "Resolve the label of a zone location",
	Long:  `Reverse-geocode a location when a geocoder token is configured, and fall back to the offline label otherwise.`,
	RunE:  runLabel,
}

var numbersCmd = &cobra.Command{
	Use:   "numbers",
	Short: "Dump the zone numbers assigned in a session",
	RunE:  runNumbers,
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Overall command timeout")

	distanceCmd.Flags().Float64Var(&lat, "from-lat", 0, "Origin latitude")
	distanceCmd.Flags().Float64Var(&lon, "from-lon", 0, "Origin longitude")
	distanceCmd.Flags().Float64Var(&toLat, "to-lat", 0, "Destination latitude")
	distanceCmd.Flags().Float64Var(&toLon, "to-lon", 0, "Destination longitude")

	labelCmd.Flags().StringVarP(&zoneID, "zone", "z", "", "Zone id")
	labelCmd.Flags().Float64Var(&lat, "lat", 0, "Zone latitude")
	labelCmd.Flags().Float64Var(&lon, "lon", 0, "Zone longitude")
	labelCmd.Flags().BoolVar(&offline, "offline", false, "Skip the geocoder")
	_ = labelCmd.MarkFlagRequired("lat")
	_ = labelCmd.MarkFlagRequired("lon")

	numbersCmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session id")
	_ = numbersCmd.MarkFlagRequired("session")

	rootCmd.AddCommand(distanceCmd, labelCmd, numbersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDistance(cmd *cobra.Command, args []string) error {
	from := domain.Location{Lat: lat, Lon: lon}
	m := from.DistanceTo(domain.Location{Lat: toLat, Lon: toLon})
	fmt.Printf("%.1f m\t%s\n", m, usecases.FallbackLabel(domain.Zone{Location: &domain.Location{Lat: toLat, Lon: toLon}}, &from))
	return nil
}

func runLabel(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load("geowhisper-zonectl")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	var geocoder ports.ReverseGeocoder
	if cfg.Geocoder.Enabled() && !offline {
		g, err := mapbox.New(cfg.Geocoder.BaseURL, cfg.Geocoder.Token, cfg.Geocoder.Timeout)
		if err != nil {
			return fmt.Errorf("geocoder: %w", err)
		}
		geocoder = g
	}

	labels := usecases.NewLabelService(memory.New(time.Minute), geocoder, nil)
	zone := domain.Zone{ID: zoneID, Location: &domain.Location{Lat: lat, Lon: lon}}

	if label, ok := labels.ResolveAndCache(ctx, "", zone); ok {
		fmt.Printf("%s\t(geocoded)\n", label)
		return nil
	}
	fmt.Printf("%s\t(fallback)\n", labels.FallbackLabel(zone, nil))
	return nil
}

func runNumbers(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load("geowhisper-zonectl")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	client, err := valkey.Connect(cfg.Valkey.Addr)
	if err != nil {
		return err
	}
	defer client.Close()

	numbers, err := usecases.NewNumberingService(valkey.NewSessionStore(client, 0)).Numbers(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("read numbers: %w", err)
	}
	if len(numbers) == 0 {
		fmt.Println("no zones numbered in this session")
		return nil
	}

	ids := make([]string, 0, len(numbers))
	for id := range numbers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return numbers[ids[i]] < numbers[ids[j]] })

	for _, id := range ids {
		fmt.Printf("Zone %d\t%s\n", numbers[id], id)
	}
	return nil
}
