// Package pagination turns the catalogue's per-category cursor model into
// iteration primitives.
//
// Each category in a search response carries its own total and its own
// opaque continuation cursor, and categories exhaust independently: a
// newspaper search may run dry after one page while the book results go on
// for hundreds. The engine tracks one small state machine per category
// (active, exhausted, errored) and exposes the result as standard Go
// iterators.
//
// Example usage:
//
//	engine := pagination.New(client)
//	spec := &search.Spec{
//		Categories: []catalog.Category{catalog.CategoryBook},
//		Query:      "wragge weather",
//	}
//	for page, err := range engine.Pages(ctx, spec) {
//		if err != nil {
//			return err
//		}
//		process(page.Records)
//	}
//
// The engine:
//   - Sends an explicit start cursor on every first page rather than
//     trusting the server's implicit default
//   - Pages a single category strictly in cursor order
//   - Pages multiple categories concurrently after a shared first request,
//     one goroutine per category
//   - Stops a failed category with one yielded error while the others
//     continue
//
// Iterators stop cleanly when the caller breaks out of the range loop; any
// in-flight category goroutines are cancelled and drained.
package pagination
