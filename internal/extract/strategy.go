package extract

// Strategy is one way of pulling a value out of a document. It returns
// false when it finds nothing.
type Strategy func(doc *Document) (string, bool)

// FirstOf runs strategies in order and returns the first value found.
func FirstOf(doc *Document, strategies ...Strategy) (string, bool) {
	for _, strategy := range strategies {
		if value, ok := strategy(doc); ok {
			return value, true
		}
	}
	return "", false
}
