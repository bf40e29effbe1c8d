package invoice

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Reconciler maps a raw model reply onto the InvoiceData schema. The pipeline
// is sanitize -> clean numeric literals -> decode -> normalize null synonyms
// -> reconcile per level. Reconciliation is all-or-nothing: any failure aborts
// the pass and no partial record is returned. A Reconciler holds no state and
// is safe for concurrent use.
type Reconciler struct {
	logger *zap.Logger
}

// NewReconciler creates a new reconciler.
func NewReconciler(logger *zap.Logger) *Reconciler {
	return &Reconciler{logger: logger}
}

// Declared key sets per schema level. A key present in the input but not in
// the level's set is routed into that level's overflow map.
var (
	invoiceFields = newFieldSet(
		"document_type", "invoice_metadata", "line_items", "totals",
		"payment_slip", "unstructured_content", "extra_fields")
	metadataFields = newFieldSet(
		"invoice_number", "invoice_date", "due_date", "currency",
		"vendor_details", "customer_details", "additional_metadata", "extra_fields")
	partyFields = newFieldSet(
		"name", "address", "contact", "tax_id", "extra_fields")
	lineItemFields = newFieldSet(
		"transaction_date", "description", "transaction_type", "quantity",
		"unit", "unit_price", "tax_rate", "tax_amount", "subtotal", "total",
		"status", "sub_items", "extra_details", "extra_fields")
	totalsFields = newFieldSet(
		"previous_balance", "current_charges", "partial_totals", "taxes",
		"discounts", "adjustments", "grand_total", "amount_in_words",
		"currency", "extra_fields")
	paymentSlipFields = newFieldSet(
		"payment_amount", "payment_due_date", "reference_number",
		"bank_details", "extra_fields")
	bankDetailsFields = newFieldSet(
		"account_name", "account_number", "bank_name", "extra_fields")
)

// Reconcile runs the full pipeline on a raw model reply and returns the
// validated record, or one of *MalformedResponseError, *SchemaMismatchError,
// *ValidationError.
func (r *Reconciler) Reconcile(raw string) (*InvoiceData, error) {
	text := CleanNumericLiterals(SanitizeResponse(raw))

	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return nil, &MalformedResponseError{Raw: raw, Err: err}
	}

	tree, ok := NormalizeNulls(decoded).(map[string]any)
	if !ok {
		return nil, &SchemaMismatchError{Expected: "object", Actual: typeName(decoded)}
	}

	return r.buildInvoice(tree)
}

func (r *Reconciler) buildInvoice(input map[string]any) (*InvoiceData, error) {
	inv := &InvoiceData{}

	var err error
	if inv.DocumentType, err = stringField(input, "", "document_type"); err != nil {
		return nil, err
	}

	metaInput, err := mapField(input, "", "invoice_metadata")
	if err != nil {
		return nil, err
	}
	if inv.InvoiceMetadata, err = buildMetadata(metaInput); err != nil {
		return nil, err
	}

	rawItems := listField(input, "line_items")
	inv.LineItems = make([]LineItem, 0, len(rawItems))
	for i, rawItem := range rawItems {
		itemPath := fmt.Sprintf("line_items[%d]", i)
		itemInput, ok := rawItem.(map[string]any)
		if !ok {
			return nil, &SchemaMismatchError{Path: itemPath, Expected: "object", Actual: typeName(rawItem)}
		}
		item, err := buildLineItem(itemInput, itemPath)
		if err != nil {
			return nil, err
		}
		inv.LineItems = append(inv.LineItems, item)
	}

	totalsInput, err := mapField(input, "", "totals")
	if err != nil {
		return nil, err
	}
	if inv.Totals, err = buildTotals(totalsInput); err != nil {
		return nil, err
	}

	slipInput, err := mapField(input, "", "payment_slip")
	if err != nil {
		return nil, err
	}
	// An absent or empty payment_slip means the invoice has none.
	if len(slipInput) > 0 {
		slip, err := buildPaymentSlip(slipInput)
		if err != nil {
			return nil, err
		}
		inv.PaymentSlip = &slip
	}

	if inv.UnstructuredContent, err = textOrMapField(input, "", "unstructured_content"); err != nil {
		return nil, err
	}

	inv.ExtraFields = overflowFrom(input, invoiceFields)

	// Top-level safety net: report and route every unrecognized top-level key.
	// overflowFrom already caught these, but the top level is checked
	// explicitly so stray keys show up in the logs.
	if unknown := undeclaredKeys(input, invoiceFields); len(unknown) > 0 {
		r.logger.Warn("unrecognized top-level fields routed to extra_fields",
			zap.Strings("fields", unknown))
		for _, k := range unknown {
			inv.ExtraFields[k] = input[k]
		}
	}

	return inv, nil
}

func buildMetadata(input map[string]any) (InvoiceMetadata, error) {
	meta := InvoiceMetadata{}
	path := "invoice_metadata"

	var err error
	if meta.InvoiceNumber, err = stringField(input, path, "invoice_number"); err != nil {
		return meta, err
	}
	if meta.InvoiceDate, err = stringField(input, path, "invoice_date"); err != nil {
		return meta, err
	}
	if meta.DueDate, err = stringField(input, path, "due_date"); err != nil {
		return meta, err
	}
	if meta.Currency, err = stringField(input, path, "currency"); err != nil {
		return meta, err
	}

	vendorInput, err := mapField(input, path, "vendor_details")
	if err != nil {
		return meta, err
	}
	if meta.VendorDetails, err = buildVendor(vendorInput); err != nil {
		return meta, err
	}

	customerInput, err := mapField(input, path, "customer_details")
	if err != nil {
		return meta, err
	}
	if meta.CustomerDetails, err = buildCustomer(customerInput); err != nil {
		return meta, err
	}

	addMeta, err := mapField(input, path, "additional_metadata")
	if err != nil {
		return meta, err
	}
	if addMeta == nil {
		addMeta = map[string]any{}
	}
	// The prompt asks for reference_numbers as a list; a lone string is
	// wrapped so downstream consumers always see a sequence.
	if s, ok := addMeta["reference_numbers"].(string); ok {
		addMeta["reference_numbers"] = []any{s}
	}
	meta.AdditionalMetadata = addMeta

	meta.ExtraFields = overflowFrom(input, metadataFields)
	return meta, nil
}

func buildVendor(input map[string]any) (VendorDetails, error) {
	v := VendorDetails{}
	path := "invoice_metadata.vendor_details"

	var err error
	if v.Name, err = stringField(input, path, "name"); err != nil {
		return v, err
	}
	if v.Address, err = stringField(input, path, "address"); err != nil {
		return v, err
	}
	if v.Contact, err = stringField(input, path, "contact"); err != nil {
		return v, err
	}
	if v.TaxID, err = stringField(input, path, "tax_id"); err != nil {
		return v, err
	}

	v.ExtraFields = overflowFrom(input, partyFields)
	return v, nil
}

func buildCustomer(input map[string]any) (CustomerDetails, error) {
	c := CustomerDetails{}
	path := "invoice_metadata.customer_details"

	var err error
	if c.Name, err = stringField(input, path, "name"); err != nil {
		return c, err
	}
	if c.Address, err = stringField(input, path, "address"); err != nil {
		return c, err
	}
	if c.Contact, err = stringField(input, path, "contact"); err != nil {
		return c, err
	}
	if c.TaxID, err = stringField(input, path, "tax_id"); err != nil {
		return c, err
	}

	c.ExtraFields = overflowFrom(input, partyFields)
	return c, nil
}

func buildLineItem(input map[string]any, path string) (LineItem, error) {
	item := LineItem{}

	var err error
	if item.TransactionDate, err = stringField(input, path, "transaction_date"); err != nil {
		return item, err
	}
	if item.Description, err = stringField(input, path, "description"); err != nil {
		return item, err
	}
	if item.TransactionType, err = stringField(input, path, "transaction_type"); err != nil {
		return item, err
	}
	if item.Quantity, err = floatField(input, path, "quantity"); err != nil {
		return item, err
	}
	if item.Unit, err = stringField(input, path, "unit"); err != nil {
		return item, err
	}
	if item.UnitPrice, err = floatField(input, path, "unit_price"); err != nil {
		return item, err
	}
	if item.TaxRate, err = floatField(input, path, "tax_rate"); err != nil {
		return item, err
	}
	if item.TaxAmount, err = floatField(input, path, "tax_amount"); err != nil {
		return item, err
	}
	if item.Subtotal, err = floatField(input, path, "subtotal"); err != nil {
		return item, err
	}
	if item.Total, err = floatField(input, path, "total"); err != nil {
		return item, err
	}
	if item.Status, err = stringField(input, path, "status"); err != nil {
		return item, err
	}

	item.SubItems = listField(input, "sub_items")
	if item.ExtraDetails, err = textOrMapField(input, path, "extra_details"); err != nil {
		return item, err
	}

	item.ExtraFields = overflowFrom(input, lineItemFields)
	return item, nil
}

func buildTotals(input map[string]any) (Totals, error) {
	t := Totals{}
	path := "totals"

	var err error
	if t.PreviousBalance, err = floatField(input, path, "previous_balance"); err != nil {
		return t, err
	}
	if t.CurrentCharges, err = floatField(input, path, "current_charges"); err != nil {
		return t, err
	}
	t.PartialTotals = listField(input, "partial_totals")
	t.Taxes = listField(input, "taxes")
	if t.Discounts, err = floatField(input, path, "discounts"); err != nil {
		return t, err
	}
	if t.Adjustments, err = floatField(input, path, "adjustments"); err != nil {
		return t, err
	}
	if t.GrandTotal, err = floatField(input, path, "grand_total"); err != nil {
		return t, err
	}
	if t.AmountInWords, err = stringField(input, path, "amount_in_words"); err != nil {
		return t, err
	}
	if t.Currency, err = stringField(input, path, "currency"); err != nil {
		return t, err
	}

	t.ExtraFields = overflowFrom(input, totalsFields)
	return t, nil
}

func buildPaymentSlip(input map[string]any) (PaymentSlip, error) {
	slip := PaymentSlip{}
	path := "payment_slip"

	var err error
	if slip.PaymentAmount, err = floatField(input, path, "payment_amount"); err != nil {
		return slip, err
	}
	if slip.PaymentDueDate, err = stringField(input, path, "payment_due_date"); err != nil {
		return slip, err
	}
	if slip.ReferenceNumber, err = stringField(input, path, "reference_number"); err != nil {
		return slip, err
	}

	bankInput, err := mapField(input, path, "bank_details")
	if err != nil {
		return slip, err
	}
	if slip.BankDetails, err = buildBankDetails(bankInput); err != nil {
		return slip, err
	}

	slip.ExtraFields = overflowFrom(input, paymentSlipFields)
	return slip, nil
}

func buildBankDetails(input map[string]any) (BankDetails, error) {
	b := BankDetails{}
	path := "payment_slip.bank_details"

	var err error
	if b.AccountName, err = stringField(input, path, "account_name"); err != nil {
		return b, err
	}
	if b.AccountNumber, err = stringField(input, path, "account_number"); err != nil {
		return b, err
	}
	if b.BankName, err = stringField(input, path, "bank_name"); err != nil {
		return b, err
	}

	b.ExtraFields = overflowFrom(input, bankDetailsFields)
	return b, nil
}

type fieldSet map[string]struct{}

func newFieldSet(names ...string) fieldSet {
	fs := make(fieldSet, len(names))
	for _, n := range names {
		fs[n] = struct{}{}
	}
	return fs
}

func (fs fieldSet) has(name string) bool {
	_, ok := fs[name]
	return ok
}

// overflowFrom builds a record's overflow map: the input's own extra_fields
// payload merged with every undeclared key at this level, passed through by
// reference. Routed keys are undeclared by construction, so a declared field
// binding always wins over the overflow map.
func overflowFrom(input map[string]any, declared fieldSet) map[string]any {
	overflow := map[string]any{}
	if raw, ok := input["extra_fields"]; ok && raw != nil {
		if m, ok := raw.(map[string]any); ok {
			for k, v := range m {
				overflow[k] = v
			}
		} else {
			overflow["extra_fields"] = raw
		}
	}
	for k, v := range input {
		if !declared.has(k) {
			overflow[k] = v
		}
	}
	return overflow
}

func undeclaredKeys(input map[string]any, declared fieldSet) []string {
	var keys []string
	for k := range input {
		if !declared.has(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// stringField binds an optional string field. Numeric and boolean scalars are
// formatted rather than rejected, since models frequently emit bare numbers
// for identifier fields.
func stringField(input map[string]any, path, key string) (*string, error) {
	raw, ok := input[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case string:
		return &v, nil
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		return &s, nil
	case bool:
		s := strconv.FormatBool(v)
		return &s, nil
	default:
		return nil, &ValidationError{Path: fieldPath(path, key), Value: raw}
	}
}

// floatField binds an optional numeric field, parsing numeric text such as
// "2500.00" and rejecting anything that is not a number. An empty string is
// treated as absent.
func floatField(input map[string]any, path, key string) (*float64, error) {
	raw, ok := input[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case float64:
		return &v, nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, &ValidationError{Path: fieldPath(path, key), Value: raw}
		}
		return &f, nil
	default:
		return nil, &ValidationError{Path: fieldPath(path, key), Value: raw}
	}
}

// mapField binds an optional nested-record field. Absent or null yields nil;
// any non-object shape is a schema mismatch.
func mapField(input map[string]any, path, key string) (map[string]any, error) {
	raw, ok := input[key]
	if !ok || raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, &SchemaMismatchError{Path: fieldPath(path, key), Expected: "object", Actual: typeName(raw)}
	}
	return m, nil
}

// listField binds a sequence field. A single scalar or object is wrapped into
// a one-element sequence; an absent or null value yields an empty one. Element
// order is preserved.
func listField(input map[string]any, key string) []any {
	raw, ok := input[key]
	if !ok || raw == nil {
		return []any{}
	}
	if seq, ok := raw.([]any); ok {
		return seq
	}
	return []any{raw}
}

// textOrMapField binds a string-or-map union field, passing the value through
// in whichever of the two shapes it arrived.
func textOrMapField(input map[string]any, path, key string) (TextOrMap, error) {
	raw, ok := input[key]
	if !ok || raw == nil {
		return TextOrMap{}, nil
	}
	switch v := raw.(type) {
	case string:
		return TextOrMap{Text: &v}, nil
	case map[string]any:
		return TextOrMap{Map: v}, nil
	default:
		return TextOrMap{}, &ValidationError{Path: fieldPath(path, key), Value: raw}
	}
}

func fieldPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func typeName(v any) string {
	switch v.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}
