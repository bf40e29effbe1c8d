package invoice

import "encoding/json"

// InvoiceData is the validated invoice record produced by the Reconciler.
// Every level carries an ExtraFields map that receives any input key the
// schema does not declare at that level, so no key from the model reply is
// ever dropped. Optional scalars are pointers: nil means the field was absent
// or null in the reply.
type InvoiceData struct {
	DocumentType        *string        `json:"document_type"`
	InvoiceMetadata     InvoiceMetadata `json:"invoice_metadata"`
	LineItems           []LineItem     `json:"line_items"`
	Totals              Totals         `json:"totals"`
	PaymentSlip         *PaymentSlip   `json:"payment_slip"`
	UnstructuredContent TextOrMap      `json:"unstructured_content"`
	ExtraFields         map[string]any `json:"extra_fields"`
}

// InvoiceMetadata holds invoice identifiers, dates and the two parties.
type InvoiceMetadata struct {
	InvoiceNumber      *string         `json:"invoice_number"`
	InvoiceDate        *string         `json:"invoice_date"`
	DueDate            *string         `json:"due_date"`
	Currency           *string         `json:"currency"`
	VendorDetails      VendorDetails   `json:"vendor_details"`
	CustomerDetails    CustomerDetails `json:"customer_details"`
	AdditionalMetadata map[string]any  `json:"additional_metadata"`
	ExtraFields        map[string]any  `json:"extra_fields"`
}

// VendorDetails identifies the party that issued the invoice.
type VendorDetails struct {
	Name        *string        `json:"name"`
	Address     *string        `json:"address"`
	Contact     *string        `json:"contact"`
	TaxID       *string        `json:"tax_id"`
	ExtraFields map[string]any `json:"extra_fields"`
}

// CustomerDetails identifies the party being billed.
type CustomerDetails struct {
	Name        *string        `json:"name"`
	Address     *string        `json:"address"`
	Contact     *string        `json:"contact"`
	TaxID       *string        `json:"tax_id"`
	ExtraFields map[string]any `json:"extra_fields"`
}

// LineItem is one row of the invoice. Row order from the reply is preserved.
type LineItem struct {
	TransactionDate *string        `json:"transaction_date"`
	Description     *string        `json:"description"`
	TransactionType *string        `json:"transaction_type"`
	Quantity        *float64       `json:"quantity"`
	Unit            *string        `json:"unit"`
	UnitPrice       *float64       `json:"unit_price"`
	TaxRate         *float64       `json:"tax_rate"`
	TaxAmount       *float64       `json:"tax_amount"`
	Subtotal        *float64       `json:"subtotal"`
	Total           *float64       `json:"total"`
	Status          *string        `json:"status"`
	SubItems        []any          `json:"sub_items"`
	ExtraDetails    TextOrMap      `json:"extra_details"`
	ExtraFields     map[string]any `json:"extra_fields"`
}

// Totals aggregates the invoice's amount summary.
type Totals struct {
	PreviousBalance *float64       `json:"previous_balance"`
	CurrentCharges  *float64       `json:"current_charges"`
	PartialTotals   []any          `json:"partial_totals"`
	Taxes           []any          `json:"taxes"`
	Discounts       *float64       `json:"discounts"`
	Adjustments     *float64       `json:"adjustments"`
	GrandTotal      *float64       `json:"grand_total"`
	AmountInWords   *string        `json:"amount_in_words"`
	Currency        *string        `json:"currency"`
	ExtraFields     map[string]any `json:"extra_fields"`
}

// PaymentSlip is the detachable payment stub, present on some invoices.
type PaymentSlip struct {
	PaymentAmount   *float64       `json:"payment_amount"`
	PaymentDueDate  *string        `json:"payment_due_date"`
	ReferenceNumber *string        `json:"reference_number"`
	BankDetails     BankDetails    `json:"bank_details"`
	ExtraFields     map[string]any `json:"extra_fields"`
}

// BankDetails holds the payee account information on a payment slip.
type BankDetails struct {
	AccountName   *string        `json:"account_name"`
	AccountNumber *string        `json:"account_number"`
	BankName      *string        `json:"bank_name"`
	ExtraFields   map[string]any `json:"extra_fields"`
}

// TextOrMap is a union for fields the model returns either as free text or as
// a keyed object (extra_details, unstructured_content). Exactly one side is
// set; callers must check which. The zero value serializes as "" to match the
// wire contract's default.
type TextOrMap struct {
	Text *string
	Map  map[string]any
}

// IsZero reports whether neither side of the union is set.
func (t TextOrMap) IsZero() bool {
	return t.Text == nil && t.Map == nil
}

func (t TextOrMap) MarshalJSON() ([]byte, error) {
	switch {
	case t.Map != nil:
		return json.Marshal(t.Map)
	case t.Text != nil:
		return json.Marshal(*t.Text)
	default:
		return []byte(`""`), nil
	}
}

func (t *TextOrMap) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err == nil {
		t.Text = nil
		t.Map = m
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t.Map = nil
	t.Text = &s
	return nil
}
