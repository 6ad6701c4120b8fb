package receiptsvc

import (
	"context"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

// ChromiumRenderer prints receipts to PDF via headless Chromium.
type ChromiumRenderer struct {
	chromiumPath string
	timeout      time.Duration
}

var _ core.ReceiptRenderer = (*ChromiumRenderer)(nil)

func NewChromiumRenderer(conf *core.Config) *ChromiumRenderer {
	return &ChromiumRenderer{
		chromiumPath: conf.Receipt.ChromiumPath,
		timeout:      conf.Receipt.RenderTimeout,
	}
}

func (r *ChromiumRenderer) Render(ctx context.Context, data core.ReceiptData) ([]byte, error) {
	html, err := renderHTML(data)
	if err != nil {
		return nil, errors.Wrap(err, "rendering receipt html")
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	if r.chromiumPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(r.chromiumPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	timeout := r.timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	runCtx, cancelRun := chromedp.NewContext(allocCtx)
	defer cancelRun()
	runCtx, cancelTimeout := context.WithTimeout(runCtx, timeout)
	defer cancelTimeout()

	var pdfBuf []byte
	dataURL := "data:text/html," + url.PathEscape(html)
	err = chromedp.Run(runCtx,
		chromedp.Navigate(dataURL),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, perr := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if perr == nil {
				pdfBuf = buf
			}
			return perr
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "printing receipt to PDF")
	}
	return pdfBuf, nil
}
