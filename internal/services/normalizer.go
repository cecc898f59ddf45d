package services

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/spesenwerk/receipt-ocr-service/internal/extract"
	"github.com/spesenwerk/receipt-ocr-service/internal/models"
)

// Normalizer converts the extracted receipt into its canonical monetary
// representation: 2-decimal amounts, a reconciled VAT breakdown and a usable
// line-item list.
type Normalizer struct{}

// NewNormalizer creates a Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize rounds every monetary field, reconstructs the VAT breakdown from
// whichever shape the vendor provided and fills line items, falling back to
// the detected amount tokens when the structured item list is empty. The
// receipt is modified in place.
func (n *Normalizer) Normalize(receipt *models.NormalizedReceipt, raw *models.RawOcrResult) {
	receipt.Amounts.Subtotal = RoundMoney(receipt.Amounts.Subtotal)
	receipt.Amounts.Tax = RoundMoney(receipt.Amounts.Tax)
	receipt.Amounts.Total = RoundMoney(receipt.Amounts.Total)
	receipt.Amounts.Paid = RoundMoney(receipt.Amounts.Paid)
	receipt.Amounts.Change = RoundMoney(receipt.Amounts.Change)
	receipt.Amounts.Rounding = RoundMoney(receipt.Amounts.Rounding)

	receipt.VatBreakdown = n.reconstructVAT(receipt, raw)
	receipt.LineItems = n.normalizeLineItems(raw)

	receipt.Confidence = extract.Score(receipt, raw.Confidence)
}

// reconstructVAT builds the per-rate breakdown. Itemized path first; the
// synthetic total/tax fallback only activates when the itemized path yields
// zero usable lines.
func (n *Normalizer) reconstructVAT(receipt *models.NormalizedReceipt, raw *models.RawOcrResult) []models.VatLine {
	lines := n.itemizedVAT(raw)
	if len(lines) > 0 {
		return lines
	}
	return n.fallbackVAT(receipt.Amounts)
}

// itemizedVAT maps the vendor tax-line entries into VatLines. Entries whose
// base or rate parses to zero or not at all are vendor noise, not valid
// zero-rate lines, and are skipped.
func (n *Normalizer) itemizedVAT(raw *models.RawOcrResult) []models.VatLine {
	var lines []models.VatLine
	for _, entry := range raw.TaxLines {
		base, baseOK := extract.ParseAmount(entry.Base)
		rate, rateOK := extract.ParseAmount(entry.Rate)
		if !baseOK || !rateOK || base.IsZero() || rate.IsZero() {
			continue
		}

		// Rounded base and rate first, then the derived tax, rounded again.
		base = RoundMoney(base)
		rate = RoundRate(rate)
		vat := RoundMoney(base.Mul(rate).Div(decimal.NewFromInt(100)))

		lines = append(lines, models.VatLine{
			Rate:      rate,
			Base:      base,
			VatAmount: vat,
			Total:     RoundMoney(base.Add(vat)),
			Category:  entry.Category,
		})
	}
	return lines
}

// fallbackVAT derives a single synthetic line from total and tax when both
// are present and positive.
func (n *Normalizer) fallbackVAT(amounts models.Amounts) []models.VatLine {
	if !amounts.Total.IsPositive() || !amounts.Tax.IsPositive() {
		return nil
	}
	base := RoundMoney(amounts.Total.Sub(amounts.Tax))
	if !base.IsPositive() {
		return nil
	}
	rate := RoundRate(amounts.Tax.Div(base).Mul(decimal.NewFromInt(100)))
	return []models.VatLine{{
		Rate:      rate,
		Base:      base,
		VatAmount: amounts.Tax,
		Total:     amounts.Total,
	}}
}

// nonItemKeywords marks amount-token labels that are totals, taxes or tender
// lines rather than purchased items, in German and English.
var nonItemKeywords = []string{
	"total", "summe",
	"subtotal", "zwischensumme",
	"tax", "mwst",
	"cash", "bar",
}

// normalizeLineItems converts the structured item list, or reconstructs items
// from the generic detected-amounts list when the vendor gave none. Fallback
// items carry quantity 1 and unit price equal to total price, since that
// source has no quantity signal.
func (n *Normalizer) normalizeLineItems(raw *models.RawOcrResult) []models.LineItem {
	if len(raw.LineItems) > 0 {
		return n.structuredLineItems(raw.LineItems)
	}
	return n.lineItemsFromAmounts(raw.Amounts)
}

func (n *Normalizer) structuredLineItems(rawItems []models.RawLineItem) []models.LineItem {
	var items []models.LineItem
	for _, entry := range rawItems {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			continue
		}
		quantity := extract.ParseQuantity(entry.Quantity)
		unit, unitOK := extract.ParseAmount(entry.UnitPrice)
		total, totalOK := extract.ParseAmount(entry.TotalPrice)

		item := models.LineItem{Name: name, Quantity: quantity}
		switch {
		case unitOK && unit.IsPositive():
			item.UnitPrice = RoundMoney(unit)
			item.TotalPrice = RoundMoney(quantity.Mul(item.UnitPrice))
		case totalOK && total.IsPositive():
			// The printed total only fixes the unit price; the stored total is
			// recomputed from it so qty * unitPrice always reproduces it.
			item.UnitPrice = RoundMoney(RoundMoney(total).Div(quantity))
			item.TotalPrice = RoundMoney(quantity.Mul(item.UnitPrice))
		default:
			continue // no usable price signal
		}
		items = append(items, item)
	}
	return items
}

func (n *Normalizer) lineItemsFromAmounts(tokens []models.AmountToken) []models.LineItem {
	var items []models.LineItem
	for _, token := range tokens {
		label := strings.TrimSpace(token.Label)
		if label == "" || isNonItemLabel(label) {
			continue
		}
		value, ok := extract.ParseAmount(token.Value)
		if !ok || !value.IsPositive() {
			continue
		}
		value = RoundMoney(value)
		items = append(items, models.LineItem{
			Name:       label,
			Quantity:   decimal.NewFromInt(1),
			UnitPrice:  value,
			TotalPrice: value,
		})
	}
	return items
}

func isNonItemLabel(label string) bool {
	lower := strings.ToLower(label)
	for _, keyword := range nonItemKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
