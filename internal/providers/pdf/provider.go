// Package pdf renders invoice documents with maroto and stores them on disk.
package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	appconfig "github.com/brightpane/brightpane/internal/config"
	invoicedomain "github.com/brightpane/brightpane/internal/invoice/domain"
	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"go.uber.org/zap"
)

type Provider struct {
	log *zap.Logger
	dir string
}

func New(cfg appconfig.Config, log *zap.Logger) invoicedomain.DocumentRenderer {
	dir := strings.TrimSpace(cfg.DocumentDir)
	if dir == "" {
		dir = "documents"
	}
	return &Provider{
		log: log.Named("pdf.provider"),
		dir: dir,
	}
}

// Render builds the invoice PDF and writes it under the document directory.
// Generation runs in its own goroutine so the caller's deadline is honored
// even though maroto itself is not context-aware.
func (p *Provider) Render(ctx context.Context, input invoicedomain.DocumentInput) (string, error) {
	type result struct {
		path string
		err  error
	}
	done := make(chan result, 1)

	go func() {
		path, err := p.render(input)
		done <- result{path: path, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		return res.path, res.err
	}
}

func (p *Provider) render(input invoicedomain.DocumentInput) (string, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, "Invoice", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(24,
		col.New(6).Add(
			text.New("Invoice number: "+input.Number, props.Text{Top: 0}),
			text.New("Date of issue: "+input.IssuedAt.Format("2006-01-02"), props.Text{Top: 5}),
			text.New("Date due: "+input.DueAt.Format("2006-01-02"), props.Text{Top: 10}),
			text.New("Status: "+input.Status, props.Text{Top: 15}),
		),
		col.New(6).Add(
			text.New(input.TenantName, props.Text{Style: fontstyle.Bold}),
			text.New("Bill to: "+input.CustomerName, props.Text{Top: 5}),
		),
	)

	m.AddRow(10,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, line := range input.Lines {
		m.AddRow(12,
			text.NewCol(6, line.Description, props.Text{Size: 9}),
			text.NewCol(2, fmt.Sprintf("%d", line.Quantity), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, formatMinorUnits(line.UnitAmount, input.Currency), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, formatMinorUnits(line.Amount, input.Currency), props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Subtotal", props.Text{Size: 9}),
		text.NewCol(2, formatMinorUnits(input.Subtotal, input.Currency), props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Tax", props.Text{Size: 9}),
		text.NewCol(2, formatMinorUnits(input.Tax, input.Currency), props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, formatMinorUnits(input.Total, input.Currency), props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	if strings.TrimSpace(input.Notes) != "" {
		m.AddRow(20,
			text.NewCol(12, input.Notes, props.Text{Size: 9, Top: 5}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(p.dir, fmt.Sprintf("%s.pdf", input.Number))
	if err := os.WriteFile(path, doc.GetBytes(), 0o644); err != nil {
		return "", err
	}

	p.log.Debug("invoice document written", zap.String("path", path))
	return path, nil
}

func formatMinorUnits(amount int64, currency string) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%s %d.%02d", sign, currency, amount/100, amount%100)
}
