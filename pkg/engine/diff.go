package engine

// Diff computes the operations that converge observed onto desired.
//
// Both inputs must have unique ids; a duplicate is returned as a
// DiffInputError and no operations are produced. The result is ordered by
// resource id so that repeated runs execute in the same order.
func Diff(desired, observed []Resource) ([]Operation, error) {
	d, err := NewCollection("desired", desired)
	if err != nil {
		return nil, err
	}
	o, err := NewCollection("observed", observed)
	if err != nil {
		return nil, err
	}
	return DiffCollections(d, o), nil
}

// DiffCollections computes the operations for two prepared collections.
//
// For every id in the union of both collections:
//   - only desired: create the desired resource
//   - only observed: delete the observed resource
//   - both and equal: nothing
//   - both and different: update with the desired resource
func DiffCollections(desired, observed Collection) []Operation {
	ops := make([]Operation, 0)

	for _, id := range unionIDs(desired, observed) {
		want, inDesired := desired[id]
		have, inObserved := observed[id]

		switch {
		case inDesired && !inObserved:
			ops = append(ops, Operation{Action: ActionCreate, Resource: want})
		case !inDesired && inObserved:
			ops = append(ops, Operation{Action: ActionDelete, Resource: have})
		case want.Equal(have):
			// converged
		default:
			ops = append(ops, Operation{Action: ActionUpdate, Resource: want})
		}
	}

	return ops
}

// unionIDs returns the sorted union of the ids of a and b.
func unionIDs(a, b Collection) []string {
	all := make(Collection, len(a)+len(b))
	for id, r := range a {
		all[id] = r
	}
	for id, r := range b {
		if _, ok := all[id]; !ok {
			all[id] = r
		}
	}
	return all.IDs()
}
