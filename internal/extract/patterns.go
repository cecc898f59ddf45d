package extract

import (
	"regexp"
	"strings"
)

// receiptNumberPatterns is the last-resort cascade run over the transcript
// when no structured entity carries a receipt number. The label vocabulary
// covers German, French and English receipts; earlier patterns are more
// specific and win over the generic trailing ones.
var receiptNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bBeleg[-\s]?(?:Nr\.?|Nummer)?\s*[:#]?\s*([A-Za-z0-9][A-Za-z0-9/-]*)`),
	regexp.MustCompile(`(?i)\bQuittungs?[-\s]?(?:Nr\.?|Nummer)?\s*[:#]?\s*([A-Za-z0-9][A-Za-z0-9/-]*)`),
	regexp.MustCompile(`(?i)\bBon[-\s]?(?:Nr\.?|Nummer)?\s*[:#]?\s*([A-Za-z0-9][A-Za-z0-9/-]*)`),
	regexp.MustCompile(`(?i)\bReceipt\s*(?:No\.?|Number|#)?\s*[:#]?\s*([A-Za-z0-9][A-Za-z0-9/-]*)`),
	regexp.MustCompile(`(?i)\b(?:Rechnungs|Faktura)[-\s]?(?:Nr\.?|Nummer)\s*[:#]?\s*([A-Za-z0-9][A-Za-z0-9/-]*)`),
	regexp.MustCompile(`(?i)\bNum[ée]ro\s*[:#]?\s*([A-Za-z0-9][A-Za-z0-9/-]*)`),
	regexp.MustCompile(`(?i)\b(?:Nr|No|Nummer)\.?\s*[:#]\s*([A-Za-z0-9][A-Za-z0-9/-]*)`),
	regexp.MustCompile(`#\s*([A-Za-z0-9][A-Za-z0-9/-]*)`),
	// Prefixed codes like "RE-20240117" printed without any label.
	regexp.MustCompile(`\b([A-Z]{1,4}-\d{4,})\b`),
}

// reSwissVAT matches Swiss VAT registration numbers however the receipt
// formats them: CHE-123.456.789, CHE 123 456 789, CHE123456789, with or
// without a MWST/TVA/IVA suffix.
var reSwissVAT = regexp.MustCompile(`(?i)\bCHE[-.\s]?(\d{3})[.\s'-]?(\d{3})[.\s'-]?(\d{3})\b`)

var reNonReceiptNumberChars = regexp.MustCompile(`[^A-Za-z0-9/-]+`)

// CleanReceiptNumber strips everything except alphanumerics, '-' and '/'.
func CleanReceiptNumber(s string) string {
	return reNonReceiptNumberChars.ReplaceAllString(s, "")
}

// NormalizeSwissVAT canonicalizes a Swiss VAT number to CHE-nnn.nnn.nnn, or
// returns "" when the input does not contain one.
func NormalizeSwissVAT(s string) string {
	m := reSwissVAT.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return "CHE-" + m[1] + "." + m[2] + "." + m[3]
}

// paymentMethodKeywords maps each payment method to its keyword set. Order
// matters: the first method whose set matches the transcript wins.
var paymentMethodKeywords = []struct {
	Method   string
	Keywords []string
}{
	{"Credit Card", []string{"visa", "mastercard", "kreditkarte", "carte de crédit", "credit card", "amex", "american express"}},
	{"Debit Card", []string{"maestro", "debitkarte", "ec-karte", "postfinance card", "debit"}},
	{"TWINT", []string{"twint"}},
	{"Cash", []string{"barzahlung", "bar", "cash", "espèces", "bargeld"}},
}

// InferPaymentMethod scans the transcript case-insensitively for payment
// keywords. No match leaves the method unset.
func InferPaymentMethod(text string) string {
	lower := strings.ToLower(text)
	for _, entry := range paymentMethodKeywords {
		for _, keyword := range entry.Keywords {
			if strings.Contains(lower, keyword) {
				return entry.Method
			}
		}
	}
	return ""
}
