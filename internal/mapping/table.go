// Package mapping translates zip codes into geo target constant ids.
package mapping

// Table is an immutable zip code to criterion id lookup.
type Table struct {
	byZip map[string]string
}

// New copies m into a Table. Later changes to m are not observed.
func New(m map[string]string) *Table {
	byZip := make(map[string]string, len(m))
	for zip, criterion := range m {
		byZip[zip] = criterion
	}
	return &Table{byZip: byZip}
}

// Len returns the number of zip codes in the table.
func (t *Table) Len() int { return len(t.byZip) }

// Lookup returns the criterion id for zip.
func (t *Table) Lookup(zip string) (string, bool) {
	c, ok := t.byZip[zip]
	return c, ok
}

// Map translates zips in input order. Criteria are de-duplicated; zips with no
// entry are returned separately and never guessed at.
func (t *Table) Map(zips []string) (criteria []string, unmapped []string) {
	seen := make(map[string]struct{}, len(zips))
	for _, zip := range zips {
		c, ok := t.Lookup(zip)
		if !ok {
			unmapped = append(unmapped, zip)
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		criteria = append(criteria, c)
	}
	return criteria, unmapped
}
