package core

import "strings"

// FilterByType keeps only records of the given type. TypeAll (or any value
// that is not a concrete type) is the identity filter.
func FilterByType(records []Transaction, t TransactionType) []Transaction {
	if !t.Valid() {
		return records
	}
	out := make([]Transaction, 0, len(records))
	for _, r := range records {
		if r.Type == t {
			out = append(out, r)
		}
	}
	return out
}

// FilterByText keeps records whose title contains text case-insensitively, or
// whose amount's decimal rendering contains text as a literal substring.
// Blank (or all-whitespace) text is the identity filter.
func FilterByText(records []Transaction, text string) []Transaction {
	text = strings.TrimSpace(text)
	if text == "" {
		return records
	}
	needle := strings.ToLower(text)
	out := make([]Transaction, 0, len(records))
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.Title), needle) ||
			strings.Contains(AmountText(r.Amount), text) {
			out = append(out, r)
		}
	}
	return out
}
