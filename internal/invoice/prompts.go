package invoice

// systemPrompt primes the model for the extraction task.
const systemPrompt = "You are an AI specialized in invoice data extraction."

// extractionPrompt describes the target schema for the vision model. The
// schema mirrors the InvoiceData record exactly, including the per-level
// extra_fields containers for anything the schema does not anticipate.
const extractionPrompt = `You are an expert in invoice data extraction. Analyze the attached image of an invoice and extract data into this structured JSON format:

JSON Structure:
1. Use the predefined sections (e.g., "invoice_metadata", "line_items", "totals").
2. Include any unknown or additional fields in a dedicated "extra_fields" dictionary at the appropriate level.
3. Ensure the response is a **valid JSON object**.
4. Add ALL line items to the "line_items" array; the schema shows one for simplicity, but every row on the invoice must appear.

Schema:
{
  "document_type": "invoice",
  "invoice_metadata": {
    "invoice_number": "string",
    "invoice_date": "string",
    "due_date": "string",
    "currency": "string",
    "vendor_details": {
      "name": "string",
      "address": "string",
      "contact": "string",
      "tax_id": "string",
      "extra_fields": {"key": "value"}
    },
    "customer_details": {
      "name": "string",
      "address": "string",
      "contact": "string",
      "tax_id": "string",
      "extra_fields": {"key": "value"}
    },
    "additional_metadata": {
      "payment_terms": "string",
      "reference_numbers": ["string"],
      "notes": "string",
      "extra_fields": {"key": "value"}
    }
  },
  "line_items": [
    {
      "transaction_date": "string",
      "description": "string",
      "transaction_type": "string",
      "quantity": "number",
      "unit": "string",
      "unit_price": "number",
      "tax_rate": "number",
      "tax_amount": "number",
      "subtotal": "number",
      "total": "number",
      "status": "string",
      "sub_items": [
        {
          "description": "string",
          "quantity": "number",
          "unit_price": "number",
          "total": "number"
        }
      ],
      "extra_fields": {"key": "value"}
    }
  ],
  "totals": {
    "previous_balance": "number",
    "current_charges": "number",
    "partial_totals": [
      {
        "type": "string",
        "amount": "number"
      }
    ],
    "taxes": [
      {
        "type": "string",
        "amount": "number",
        "rate": "number"
      }
    ],
    "discounts": "number",
    "adjustments": "number",
    "grand_total": "number",
    "amount_in_words": "string",
    "currency": "string",
    "extra_fields": {"key": "value"}
  },
  "payment_slip": {
    "payment_amount": "number",
    "payment_due_date": "string",
    "reference_number": "string",
    "bank_details": {
      "account_name": "string",
      "account_number": "string",
      "bank_name": "string",
      "extra_fields": {"key": "value"}
    },
    "extra_fields": {"key": "value"}
  },
  "unstructured_content": {
    "raw_text": "string",
    "notes": "string",
    "extra_fields": {"key": "value"}
  },
  "extra_fields": {"key": "value"}
}

Ensure all relevant details are captured. Gracefully handle missing fields with 'null' values. Only a JSON response is required. STRICTLY do not return any other text with the JSON.`
