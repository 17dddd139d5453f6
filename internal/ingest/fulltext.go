package ingest

import (
	"context"
	"fmt"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/chromedp/chromedp"
	"github.com/go-shiori/go-readability"
	"github.com/rs/zerolog"
)

// ReaderTextFetcher resolves full article text via go-readability for
// ordinary sources, falling back to a headless chromedp render for
// sources flagged RequiresHeadless (JS-rendered pages readability can't
// parse from the raw response body).
type ReaderTextFetcher struct {
	timeout time.Duration
	log     zerolog.Logger
}

// NewReaderTextFetcher builds a ReaderTextFetcher with the given per-page
// timeout (applies to both the plain and headless fetch paths).
func NewReaderTextFetcher(timeout time.Duration, log zerolog.Logger) *ReaderTextFetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ReaderTextFetcher{timeout: timeout, log: log}
}

// FetchText implements FullTextFetcher.
func (f *ReaderTextFetcher) FetchText(ctx context.Context, articleURL string, headless bool) (string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if headless {
		html, err := f.renderHeadless(fetchCtx, articleURL)
		if err != nil {
			f.log.Debug().Err(err).Str("url", articleURL).Msg("headless_render_failed")
			return "", err
		}
		return htmlToText(html)
	}

	article, err := readability.FromURL(articleURL, f.timeout)
	if err != nil {
		f.log.Debug().Err(err).Str("url", articleURL).Msg("readability_fetch_failed")
		return "", err
	}
	return article.TextContent, nil
}

// renderHeadless navigates a headless Chrome instance to articleURL and
// returns the rendered page's outer HTML, for feeds whose item pages are
// client-side rendered.
func (f *ReaderTextFetcher) renderHeadless(ctx context.Context, articleURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", true))
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(articleURL),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", articleURL, err)
	}
	return html, nil
}

// htmlToText converts rendered page HTML to plain-ish markdown text so it
// can feed the same text-composition path as feed-description bodies.
func htmlToText(html string) (string, error) {
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("convert html to markdown: %w", err)
	}
	return md, nil
}
