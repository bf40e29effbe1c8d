package invoice

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestReconciler() *Reconciler {
	return NewReconciler(zap.NewNop())
}

func TestReconcileEndToEnd(t *testing.T) {
	raw := "```json\n" + `{
		"document_type": "invoice",
		"invoice_metadata": {
			"invoice_number": "INV-001",
			"invoice_date": "2024-03-01",
			"vendor_details": {"name": "Acme Corp"},
			"customer_details": {"name": "Globex"}
		},
		"line_items": [
			{"description": "Widget", "quantity": 2, "unit_price": "1,250.00", "total": "2,500.00"}
		],
		"totals": {"grand_total": "2,500.00", "currency": "USD"},
		"page_count": 3
	}` + "\n```"

	inv, err := newTestReconciler().Reconcile(raw)
	require.NoError(t, err)

	require.NotNil(t, inv.InvoiceMetadata.InvoiceNumber)
	assert.Equal(t, "INV-001", *inv.InvoiceMetadata.InvoiceNumber)

	require.NotNil(t, inv.Totals.GrandTotal)
	assert.Equal(t, 2500.00, *inv.Totals.GrandTotal)

	require.Len(t, inv.LineItems, 1)
	require.NotNil(t, inv.LineItems[0].UnitPrice)
	assert.Equal(t, 1250.00, *inv.LineItems[0].UnitPrice)

	// Stray top-level keys land in the root overflow map.
	assert.Equal(t, float64(3), inv.ExtraFields["page_count"])

	assert.Nil(t, inv.PaymentSlip)
	require.NotNil(t, inv.InvoiceMetadata.VendorDetails.Name)
	assert.Equal(t, "Acme Corp", *inv.InvoiceMetadata.VendorDetails.Name)
}

func TestReconcileMalformedInput(t *testing.T) {
	inv, err := newTestReconciler().Reconcile("{invalid json")

	require.Error(t, err)
	assert.Nil(t, inv, "no partial record on failure")

	var malformed *MalformedResponseError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, "{invalid json", malformed.Raw)
	assert.Error(t, malformed.Err)
}

func TestReconcileTopLevelNotObject(t *testing.T) {
	inv, err := newTestReconciler().Reconcile(`["not", "an", "invoice"]`)

	require.Error(t, err)
	assert.Nil(t, inv)

	var mismatch *SchemaMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "object", mismatch.Expected)
	assert.Equal(t, "array", mismatch.Actual)
}

func TestReconcileVendorScalarIsSchemaMismatch(t *testing.T) {
	raw := `{
		"invoice_metadata": {"vendor_details": "Acme"},
		"line_items": [],
		"totals": {}
	}`

	inv, err := newTestReconciler().Reconcile(raw)

	require.Error(t, err)
	assert.Nil(t, inv)

	var mismatch *SchemaMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "invoice_metadata.vendor_details", mismatch.Path)
	assert.Equal(t, "object", mismatch.Expected)
	assert.Equal(t, "string", mismatch.Actual)
}

func TestReconcileNonNumericTextIsValidationError(t *testing.T) {
	raw := `{
		"invoice_metadata": {},
		"line_items": [],
		"totals": {"grand_total": "two thousand"}
	}`

	inv, err := newTestReconciler().Reconcile(raw)

	require.Error(t, err)
	assert.Nil(t, inv)

	var invalid *ValidationError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "totals.grand_total", invalid.Path)
	assert.Equal(t, "two thousand", invalid.Value)
}

func TestReconcileUnknownFieldRouting(t *testing.T) {
	raw := `{
		"invoice_metadata": {
			"vendor_details": {"name": "Acme", "foo": "bar"}
		},
		"line_items": [],
		"totals": {}
	}`

	inv, err := newTestReconciler().Reconcile(raw)
	require.NoError(t, err)

	vendor := inv.InvoiceMetadata.VendorDetails
	require.NotNil(t, vendor.Name)
	assert.Equal(t, "Acme", *vendor.Name)
	assert.Equal(t, map[string]any{"foo": "bar"}, vendor.ExtraFields)
}

func TestReconcileExplicitExtraFieldsMerged(t *testing.T) {
	raw := `{
		"invoice_metadata": {
			"customer_details": {
				"name": "Globex",
				"extra_fields": {"loyalty_tier": "gold"},
				"segment": "enterprise"
			}
		},
		"line_items": [],
		"totals": {}
	}`

	inv, err := newTestReconciler().Reconcile(raw)
	require.NoError(t, err)

	customer := inv.InvoiceMetadata.CustomerDetails
	assert.Equal(t, "gold", customer.ExtraFields["loyalty_tier"])
	assert.Equal(t, "enterprise", customer.ExtraFields["segment"])
	assert.NotContains(t, customer.ExtraFields, "name")
}

func TestReconcileNullSynonymsAtAnyDepth(t *testing.T) {
	raw := `{
		"document_type": "null",
		"invoice_metadata": {
			"invoice_number": "NA",
			"vendor_details": {"name": "null"}
		},
		"line_items": [
			{"description": "Widget", "status": "NA", "sub_items": ["null", "real"]}
		],
		"totals": {}
	}`

	inv, err := newTestReconciler().Reconcile(raw)
	require.NoError(t, err)

	assert.Nil(t, inv.DocumentType)
	assert.Nil(t, inv.InvoiceMetadata.InvoiceNumber)
	assert.Nil(t, inv.InvoiceMetadata.VendorDetails.Name)

	require.Len(t, inv.LineItems, 1)
	assert.Nil(t, inv.LineItems[0].Status)
	require.Len(t, inv.LineItems[0].SubItems, 2)
	assert.Nil(t, inv.LineItems[0].SubItems[0])
	assert.Equal(t, "real", inv.LineItems[0].SubItems[1])
}

func TestReconcileLineItemOrderPreserved(t *testing.T) {
	raw := `{
		"invoice_metadata": {},
		"line_items": [
			{"description": "first"},
			{"description": "second"},
			{"description": "third"}
		],
		"totals": {}
	}`

	inv, err := newTestReconciler().Reconcile(raw)
	require.NoError(t, err)

	require.Len(t, inv.LineItems, 3)
	for i, want := range []string{"first", "second", "third"} {
		require.NotNil(t, inv.LineItems[i].Description)
		assert.Equal(t, want, *inv.LineItems[i].Description)
	}
}

func TestReconcileSingleLineItemCoercedToSequence(t *testing.T) {
	raw := `{
		"invoice_metadata": {},
		"line_items": {"description": "only one"},
		"totals": {}
	}`

	inv, err := newTestReconciler().Reconcile(raw)
	require.NoError(t, err)

	require.Len(t, inv.LineItems, 1)
	require.NotNil(t, inv.LineItems[0].Description)
	assert.Equal(t, "only one", *inv.LineItems[0].Description)
}

func TestReconcileLineItemScalarIsSchemaMismatch(t *testing.T) {
	raw := `{
		"invoice_metadata": {},
		"line_items": ["not a record"],
		"totals": {}
	}`

	_, err := newTestReconciler().Reconcile(raw)

	var mismatch *SchemaMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "line_items[0]", mismatch.Path)
}

func TestReconcileReferenceNumbersCoercion(t *testing.T) {
	raw := `{
		"invoice_metadata": {
			"additional_metadata": {"reference_numbers": "REF-42"}
		},
		"line_items": [],
		"totals": {}
	}`

	inv, err := newTestReconciler().Reconcile(raw)
	require.NoError(t, err)

	refs := inv.InvoiceMetadata.AdditionalMetadata["reference_numbers"]
	assert.Equal(t, []any{"REF-42"}, refs)
}

func TestReconcilePaymentSlip(t *testing.T) {
	t.Run("absent slip yields nil", func(t *testing.T) {
		inv, err := newTestReconciler().Reconcile(`{"invoice_metadata": {}, "line_items": [], "totals": {}}`)
		require.NoError(t, err)
		assert.Nil(t, inv.PaymentSlip)
	})

	t.Run("empty slip yields nil", func(t *testing.T) {
		inv, err := newTestReconciler().Reconcile(`{"invoice_metadata": {}, "line_items": [], "totals": {}, "payment_slip": {}}`)
		require.NoError(t, err)
		assert.Nil(t, inv.PaymentSlip)
	})

	t.Run("populated slip with bank details", func(t *testing.T) {
		raw := `{
			"invoice_metadata": {},
			"line_items": [],
			"totals": {},
			"payment_slip": {
				"payment_amount": "1,000.00",
				"reference_number": "PAY-7",
				"bank_details": {"bank_name": "First National", "iban": "DE89"}
			}
		}`

		inv, err := newTestReconciler().Reconcile(raw)
		require.NoError(t, err)

		require.NotNil(t, inv.PaymentSlip)
		require.NotNil(t, inv.PaymentSlip.PaymentAmount)
		assert.Equal(t, 1000.00, *inv.PaymentSlip.PaymentAmount)

		bank := inv.PaymentSlip.BankDetails
		require.NotNil(t, bank.BankName)
		assert.Equal(t, "First National", *bank.BankName)
		assert.Equal(t, "DE89", bank.ExtraFields["iban"])
	})

	t.Run("scalar slip is schema mismatch", func(t *testing.T) {
		_, err := newTestReconciler().Reconcile(`{"invoice_metadata": {}, "line_items": [], "totals": {}, "payment_slip": "see reverse"}`)

		var mismatch *SchemaMismatchError
		require.True(t, errors.As(err, &mismatch))
		assert.Equal(t, "payment_slip", mismatch.Path)
	})
}

func TestReconcileTextOrMapUnions(t *testing.T) {
	t.Run("string shape", func(t *testing.T) {
		inv, err := newTestReconciler().Reconcile(`{
			"invoice_metadata": {},
			"line_items": [{"extra_details": "handwritten note"}],
			"totals": {},
			"unstructured_content": "footer text"
		}`)
		require.NoError(t, err)

		require.NotNil(t, inv.UnstructuredContent.Text)
		assert.Equal(t, "footer text", *inv.UnstructuredContent.Text)
		require.NotNil(t, inv.LineItems[0].ExtraDetails.Text)
		assert.Equal(t, "handwritten note", *inv.LineItems[0].ExtraDetails.Text)
	})

	t.Run("map shape", func(t *testing.T) {
		inv, err := newTestReconciler().Reconcile(`{
			"invoice_metadata": {},
			"line_items": [],
			"totals": {},
			"unstructured_content": {"raw_text": "fine print"}
		}`)
		require.NoError(t, err)

		require.NotNil(t, inv.UnstructuredContent.Map)
		assert.Equal(t, "fine print", inv.UnstructuredContent.Map["raw_text"])
		assert.Nil(t, inv.UnstructuredContent.Text)
	})

	t.Run("absent yields zero union", func(t *testing.T) {
		inv, err := newTestReconciler().Reconcile(`{"invoice_metadata": {}, "line_items": [], "totals": {}}`)
		require.NoError(t, err)
		assert.True(t, inv.UnstructuredContent.IsZero())
	})
}

// Every input key must be recovered exactly once: either bound to a declared
// field or present in the overflow map of the level where it appeared.
func TestReconcileLosslessness(t *testing.T) {
	raw := `{
		"document_type": "invoice",
		"invoice_metadata": {
			"invoice_number": "INV-9",
			"po_number": "PO-1",
			"vendor_details": {"name": "Acme", "branch": "East"},
			"customer_details": {}
		},
		"line_items": [
			{"description": "Widget", "warehouse": "W2"}
		],
		"totals": {"grand_total": 10, "rounding": 0.01},
		"shipping_manifest": "SM-77"
	}`

	inv, err := newTestReconciler().Reconcile(raw)
	require.NoError(t, err)

	// Declared bindings.
	assert.Equal(t, "invoice", *inv.DocumentType)
	assert.Equal(t, "INV-9", *inv.InvoiceMetadata.InvoiceNumber)
	assert.Equal(t, "Acme", *inv.InvoiceMetadata.VendorDetails.Name)
	assert.Equal(t, "Widget", *inv.LineItems[0].Description)
	assert.Equal(t, 10.0, *inv.Totals.GrandTotal)

	// Overflow bindings, each at the level where the key appeared.
	assert.Equal(t, map[string]any{"shipping_manifest": "SM-77"}, inv.ExtraFields)
	assert.Equal(t, map[string]any{"po_number": "PO-1"}, inv.InvoiceMetadata.ExtraFields)
	assert.Equal(t, map[string]any{"branch": "East"}, inv.InvoiceMetadata.VendorDetails.ExtraFields)
	assert.Empty(t, inv.InvoiceMetadata.CustomerDetails.ExtraFields)
	assert.Equal(t, map[string]any{"warehouse": "W2"}, inv.LineItems[0].ExtraFields)
	assert.Equal(t, map[string]any{"rounding": 0.01}, inv.Totals.ExtraFields)

	// No duplication: overflow maps do not shadow declared keys.
	assert.NotContains(t, inv.InvoiceMetadata.ExtraFields, "invoice_number")
	assert.NotContains(t, inv.ExtraFields, "document_type")
}

func TestReconcileMissingSectionsYieldEmptyRecords(t *testing.T) {
	inv, err := newTestReconciler().Reconcile(`{}`)
	require.NoError(t, err)

	assert.Nil(t, inv.DocumentType)
	assert.Nil(t, inv.InvoiceMetadata.InvoiceNumber)
	assert.NotNil(t, inv.LineItems)
	assert.Empty(t, inv.LineItems)
	assert.Nil(t, inv.Totals.GrandTotal)
	assert.Nil(t, inv.PaymentSlip)
	assert.Empty(t, inv.ExtraFields)
	assert.NotNil(t, inv.InvoiceMetadata.AdditionalMetadata)
}

func TestReconcileNumericEdgeCases(t *testing.T) {
	tests := []struct {
		name     string
		totals   string
		expected *float64
	}{
		{"plain number", `{"grand_total": 99.5}`, ptr(99.5)},
		{"numeric string", `{"grand_total": "99.5"}`, ptr(99.5)},
		{"thousands separator string", `{"grand_total": "12,345.67"}`, ptr(12345.67)},
		{"empty string treated as absent", `{"grand_total": ""}`, nil},
		{"json null", `{"grand_total": null}`, nil},
		{"null synonym", `{"grand_total": "null"}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := fmt.Sprintf(`{"invoice_metadata": {}, "line_items": [], "totals": %s}`, tt.totals)
			inv, err := newTestReconciler().Reconcile(raw)
			require.NoError(t, err)

			if tt.expected == nil {
				assert.Nil(t, inv.Totals.GrandTotal)
			} else {
				require.NotNil(t, inv.Totals.GrandTotal)
				assert.Equal(t, *tt.expected, *inv.Totals.GrandTotal)
			}
		})
	}
}

func TestReconcileNumericScalarBoundToStringField(t *testing.T) {
	inv, err := newTestReconciler().Reconcile(`{
		"invoice_metadata": {"invoice_number": 10042},
		"line_items": [],
		"totals": {}
	}`)
	require.NoError(t, err)

	require.NotNil(t, inv.InvoiceMetadata.InvoiceNumber)
	assert.Equal(t, "10042", *inv.InvoiceMetadata.InvoiceNumber)
}

func ptr[T any](v T) *T {
	return &v
}
