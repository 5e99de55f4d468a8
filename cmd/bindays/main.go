package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bindays/internal/address"
	"bindays/internal/config"
	"bindays/internal/council"
	"bindays/internal/ics"
	"bindays/internal/lookup"
	appLog "bindays/internal/log"
	"bindays/internal/model"
	"bindays/internal/render"
	"bindays/internal/schedule"
	"bindays/internal/scrape"
	"bindays/internal/web"
)

type flagConfig struct {
	configPath  string
	postcode    string
	houseNumber string
	listen      string
	scrape      bool
	headful     bool
	serve       bool
	icsPath     string
	weeks       int
}

func main() {
	os.Exit(run())
}

func run() int {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		if conf == nil {
			appLog.Error("failed to load config", err, "config_path", flags.configPath)
			return 1
		}
		appLog.Warn("could not write default config; continuing with defaults", "config_path", flags.configPath, "err", err)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	if flags.postcode != "" {
		conf.Postcode = flags.postcode
	}
	if flags.houseNumber != "" {
		conf.HouseNumber = flags.houseNumber
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.headful {
		conf.Headless = false
	}

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", conf.Timezone)
	}

	appLog.Debug("effective config",
		"base_url", conf.BaseURL,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"horizon_weeks", conf.HorizonWeeks,
		"scrape", flags.scrape,
		"serve", flags.serve,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := council.NewClient(council.Options{
		BaseURL:  conf.BaseURL,
		PageSize: conf.PageSize,
		Timeout:  conf.Timeout(),
	})
	svc := lookup.New(client, client)

	if flags.serve {
		if err := web.StartServer(ctx, conf, svc); err != nil {
			appLog.Error("server stopped", err)
			return 1
		}
		appLog.Info("bindays exiting")
		return 0
	}

	if conf.Postcode == "" {
		fmt.Fprintln(os.Stderr, "A postcode is required (-postcode or postcode: in the config file).")
		return 2
	}

	today := lookup.Today(time.Now(), loc)

	if flags.scrape {
		return runScrape(ctx, conf, today)
	}

	res, err := svc.Lookup(ctx, conf.Postcode, conf.HouseNumber, today)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Lookup failed: %v\n", err)
		return 1
	}

	fmt.Println(render.FormatTranscript(res.Address, res.Entries))
	if flags.weeks > 0 {
		fmt.Println(render.FormatUpcoming(ics.ExpandUpcoming(res.Entries, today, flags.weeks)))
	}
	if flags.icsPath != "" {
		if err := writeICS(flags.icsPath, res.Address, res.Entries); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write calendar: %v\n", err)
			return 1
		}
	}
	return 0
}

// runScrape takes the browser path and prints the same transcript.
func runScrape(ctx context.Context, conf *config.Config, today time.Time) int {
	items, err := scrape.Scrape(ctx, scrape.Options{
		URL:         conf.ScrapeURL,
		Postcode:    conf.Postcode,
		HouseNumber: conf.HouseNumber,
		Headless:    conf.Headless,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Scrape failed: %v\n", err)
		return 1
	}
	if len(items) == 0 {
		fmt.Println("No dates found.")
		return 1
	}

	entries, err := schedule.Normalize(scrape.ToRecords(items), today)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Normalize failed: %v\n", err)
		return 1
	}
	for _, e := range entries {
		fmt.Printf("%s: %s\n", e.Service, render.EntryLine(e))
	}
	return 0
}

func writeICS(path string, c address.Candidate, entries []model.CollectionEntry) error {
	name := "Bin days"
	if dn := c.DisplayName(); dn != "" {
		name += " - " + dn
	}
	cal := ics.BuildCalendar(name, entries, time.Now())
	if err := os.WriteFile(path, []byte(cal.Serialize()), 0o644); err != nil {
		return err
	}
	appLog.Info("calendar written", "path", path, "entries", len(entries))
	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", config.DefaultPath, "Path to config file")
	flag.StringVar(&cfg.postcode, "postcode", "", "Postcode to search (e.g. SN1 2JG)")
	flag.StringVar(&cfg.houseNumber, "house-number", "", "House number or name to match within the postcode")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address for -serve (overrides config)")
	flag.BoolVar(&cfg.scrape, "scrape", false, "Read the schedule from the council web page with headless Chromium")
	flag.BoolVar(&cfg.headful, "headful", false, "Show the browser window when scraping")
	flag.BoolVar(&cfg.serve, "serve", false, "Serve the configured address over HTTP, refreshed on the cron schedule")
	flag.StringVar(&cfg.icsPath, "ics", "", "Also write the schedule as an iCalendar file to this path")
	flag.IntVar(&cfg.weeks, "weeks", 0, "Also list collection days for this many weeks ahead")

	flag.Parse()

	return cfg
}
