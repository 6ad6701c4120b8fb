package receiptsvc

import (
	"context"

	"github.com/trezcool/academia/core"
)

// DummyRenderer returns the raw receipt HTML without going through Chromium.
// Used in tests and dev setups with no Chromium install.
type DummyRenderer struct{}

var _ core.ReceiptRenderer = (*DummyRenderer)(nil)

func NewDummyRenderer() *DummyRenderer {
	return &DummyRenderer{}
}

func (r *DummyRenderer) Render(ctx context.Context, data core.ReceiptData) ([]byte, error) {
	html, err := renderHTML(data)
	if err != nil {
		return nil, err
	}
	return []byte(html), nil
}
