package invoice

// nullSynonyms are string values the model emits in place of a real JSON
// null. They are rewritten to nil at every depth before reconciliation.
var nullSynonyms = map[string]struct{}{
	"null": {},
	"NA":   {},
}

// NormalizeNulls recursively rewrites null-synonym strings to nil throughout
// a decoded value tree. Maps and slices are updated in place and the (possibly
// replaced) value is returned. The rewrite is value-based, so it applies at
// any depth regardless of field semantics, and it is idempotent.
func NormalizeNulls(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, elem := range val {
			val[k] = NormalizeNulls(elem)
		}
		return val
	case []any:
		for i, elem := range val {
			val[i] = NormalizeNulls(elem)
		}
		return val
	case string:
		if _, ok := nullSynonyms[val]; ok {
			return nil
		}
		return val
	default:
		return v
	}
}
