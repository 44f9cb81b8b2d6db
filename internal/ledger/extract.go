package ledger

import (
	"encoding/json"
	"math"

	"github.com/mailtx/mailtx/internal/oracle"
)

// extractionSystemPrompt fixes the output schema for the structured
// extraction oracle.
const extractionSystemPrompt = `You are a data parser. Extract financial details from the email text provided.
Return ONLY a JSON object. Do not include markdown formatting like ` + "```json ... ```" + `.

Required Keys:
- merchant (string): The name of the vendor.
- amount (float): The total transaction amount.
- currency (string): The currency code (e.g., 'USD', 'EUR', 'INR').
- date (string): The transaction date in YYYY-MM-DD format.
- category (string): One of ['Food', 'Transport', 'Shopping', 'Subscription', 'Utilities', 'Travel', 'Other'].

If the email is NOT a receipt, invoice, or transaction confirmation, return an empty JSON object {}.
`

// Documented fallbacks for fields the oracle omits.
const (
	defaultMerchant = "Unknown"
	defaultCurrency = "USD"
	defaultCategory = "Other"
)

// ResultKind tags an interpreted oracle response.
type ResultKind int

const (
	// ResultOk carries validated fields ready for a ledger insert.
	ResultOk ResultKind = iota
	// ResultEmpty means the oracle saw no transaction (empty object or
	// missing amount). Not an error; no row is inserted.
	ResultEmpty
	// ResultMalformed means the response did not parse even after
	// brace-slice recovery. The raw text is kept for logging.
	ResultMalformed
)

// ExtractResult is the tagged interpretation of one oracle response.
// Untyped field access is never trusted: required fields are validated
// before a Transaction is constructed.
type ExtractResult struct {
	Kind    ResultKind
	Fields  ParsedFields
	RawText string // set for ResultMalformed
}

// ParsedFields holds the validated extraction output.
type ParsedFields struct {
	Merchant    string
	AmountCents int64
	Currency    string
	Date        string
	Category    string
	Confidence  float64
}

// rawExtraction mirrors the oracle's JSON schema. Amount is a pointer so
// a missing key is distinguishable from zero.
type rawExtraction struct {
	Merchant string   `json:"merchant"`
	Amount   *float64 `json:"amount"`
	Currency string   `json:"currency"`
	Date     string   `json:"date"`
	Category string   `json:"category"`
}

// interpretExtraction parses an oracle response into a tagged result.
// Parse failure falls back to slicing from the first '{' to the last '}'
// and reparsing; if that also fails the response is Malformed. An empty
// object or one missing the amount field is Empty.
func interpretExtraction(content string) ExtractResult {
	var raw rawExtraction
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		recovered := oracle.ExtractJSON(content)
		if err := json.Unmarshal([]byte(recovered), &raw); err != nil {
			return ExtractResult{Kind: ResultMalformed, RawText: content}
		}
	}

	if raw.Amount == nil {
		return ExtractResult{Kind: ResultEmpty}
	}

	fields := ParsedFields{
		Merchant:    raw.Merchant,
		AmountCents: int64(math.Round(*raw.Amount * 100)),
		Currency:    raw.Currency,
		Date:        raw.Date,
		Category:    raw.Category,
		// The oracle provides no native confidence signal; fixed at 1.0.
		Confidence: 1.0,
	}
	if fields.Merchant == "" {
		fields.Merchant = defaultMerchant
	}
	if fields.Currency == "" {
		fields.Currency = defaultCurrency
	}
	if fields.Category == "" {
		fields.Category = defaultCategory
	}

	return ExtractResult{Kind: ResultOk, Fields: fields}
}
