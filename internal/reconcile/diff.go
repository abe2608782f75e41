package reconcile

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// Plan is the set of operations that converge one campaign.
type Plan struct {
	CampaignID string
	Add        []Operation
	Remove     []Operation
	// Orphans are existing criterion ids whose resource name is empty; they
	// cannot be removed and are left out of Remove.
	Orphans []string
}

// Empty reports whether the campaign already matches the desired set.
func (p Plan) Empty() bool {
	return len(p.Add) == 0 && len(p.Remove) == 0
}

// Truncate keeps at most the first operation of each kind.
func (p Plan) Truncate() Plan {
	if len(p.Add) > 1 {
		p.Add = p.Add[:1:1]
	}
	if len(p.Remove) > 1 {
		p.Remove = p.Remove[:1:1]
	}
	return p
}

// AddIDs returns the criterion ids of the add operations.
func (p Plan) AddIDs() []string { return criterionIDs(p.Add) }

// RemoveIDs returns the criterion ids of the remove operations.
func (p Plan) RemoveIDs() []string { return criterionIDs(p.Remove) }

// Diff computes desired − existing and existing − desired, each sorted.
func Diff(desired mapset.Set[string], existing map[string]string) (toAdd, toRemove []string) {
	for _, id := range desired.ToSlice() {
		if _, ok := existing[id]; !ok {
			toAdd = append(toAdd, id)
		}
	}
	for id := range existing {
		if !desired.Contains(id) {
			toRemove = append(toRemove, id)
		}
	}
	sort.Strings(toAdd)
	sort.Strings(toRemove)
	return toAdd, toRemove
}

// PlanFor builds the operations for one campaign from its existing criteria.
func PlanFor(campaignID string, desired mapset.Set[string], existing map[string]string) Plan {
	toAdd, toRemove := Diff(desired, existing)
	p := Plan{CampaignID: campaignID}
	for _, id := range toAdd {
		p.Add = append(p.Add, Operation{Kind: OpAdd, CriterionID: id})
	}
	for _, id := range toRemove {
		rn := existing[id]
		if rn == "" {
			p.Orphans = append(p.Orphans, id)
			continue
		}
		p.Remove = append(p.Remove, Operation{Kind: OpRemove, CriterionID: id, ResourceName: rn})
	}
	return p
}

func criterionIDs(ops []Operation) []string {
	if len(ops) == 0 {
		return nil
	}
	ids := make([]string, len(ops))
	for i, op := range ops {
		ids[i] = op.CriterionID
	}
	return ids
}
