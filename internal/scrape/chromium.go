package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"bindays/internal/address"
	appLog "bindays/internal/log"
	"bindays/internal/schedule"
)

const (
	DefaultTimeout = 60 * time.Second

	// Pauses for the page's own XHR round-trips after form interaction.
	searchSettle = 2500 * time.Millisecond
	selectSettle = 3000 * time.Millisecond

	fallbackTitle = "Collection"
)

// ErrNoPostcodeInput is returned when the page has no usable postcode box.
var ErrNoPostcodeInput = errors.New("scrape: could not find postcode input (try -headful to see the page)")

// Options defines one scrape run.
type Options struct {
	// URL of the public collection-days page.
	URL         string
	Postcode    string
	HouseNumber string

	Headless bool

	// Timeout bounds the whole run. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Item is one "title: date text" pair read from the rendered page.
type Item struct {
	Title string `json:"title"`
	Date  string `json:"date"`
}

type selectOption struct {
	Value string `json:"value"`
	Text  string `json:"text"`
}

// Scrape drives a Chromium instance through the council's lookup form and
// returns the collection lines shown for the chosen address.
func Scrape(parentCtx context.Context, opts Options) ([]Item, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("scrape: URL is required")
	}
	if opts.Postcode == "" {
		return nil, fmt.Errorf("scrape: postcode is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", opts.Headless))
	allocCtx, allocCancel := chromedp.NewExecAllocator(parentCtx, allocOpts...)
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	appLog.Info("scrape start", "url", opts.URL, "headless", opts.Headless)

	var (
		clicked bool
		filled  bool
		options []selectOption
	)
	if err := chromedp.Run(ctx,
		chromedp.Navigate(opts.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(acceptCookiesJS, &clicked),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.Evaluate(fillPostcodeJS(opts.Postcode), &filled),
	); err != nil {
		return nil, fmt.Errorf("scrape: postcode search failed: %w", err)
	}
	appLog.Debug("scrape cookie banner", "accepted", clicked)
	if !filled {
		return nil, ErrNoPostcodeInput
	}

	if err := chromedp.Run(ctx,
		chromedp.Sleep(searchSettle),
		chromedp.Evaluate(listOptionsJS, &options),
	); err != nil {
		return nil, fmt.Errorf("scrape: reading address list failed: %w", err)
	}

	if value, ok := pickOption(options, opts.HouseNumber); ok {
		var selected bool
		if err := chromedp.Run(ctx,
			chromedp.Evaluate(selectOptionJS(value), &selected),
			chromedp.Sleep(selectSettle),
		); err != nil {
			return nil, fmt.Errorf("scrape: selecting address failed: %w", err)
		}
	} else {
		appLog.Warn("scrape: no address list shown; reading page as is")
	}

	var items []Item
	if err := chromedp.Run(ctx, chromedp.Evaluate(extractJS, &items)); err != nil {
		return nil, fmt.Errorf("scrape: extracting collections failed: %w", err)
	}

	appLog.Info("scrape completed", "items", len(items))
	return items, nil
}

// pickOption chooses the address option for houseNumber with the same
// whole-word rule as address.SelectAddress. Options with an empty value
// (placeholders such as "Select an address") are skipped.
func pickOption(options []selectOption, houseNumber string) (string, bool) {
	usable := make([]selectOption, 0, len(options))
	for _, o := range options {
		if o.Value != "" {
			usable = append(usable, o)
		}
	}
	i := address.SelectIndex(len(usable), func(i int) string {
		return usable[i].Text
	}, houseNumber)
	if i < 0 {
		return "", false
	}
	return usable[i].Value, true
}

// ToRecords wraps scraped items as a single collection group so they go
// through the same normalization as API payloads.
func ToRecords(items []Item) []schedule.RawRecord {
	if len(items) == 0 {
		return nil
	}
	rec := schedule.RawRecord{Services: make([]schedule.Service, 0, len(items))}
	for _, it := range items {
		title := it.Title
		if title == "" {
			title = fallbackTitle
		}
		rec.Services = append(rec.Services, schedule.Service{
			Key:     title,
			Details: schedule.TextDetails(it.Date),
		})
	}
	return []schedule.RawRecord{rec}
}

func fillPostcodeJS(postcode string) string {
	return fmt.Sprintf(fillPostcodeTmpl, jsString(postcode))
}

func selectOptionJS(value string) string {
	return fmt.Sprintf(selectOptionTmpl, jsString(value))
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
