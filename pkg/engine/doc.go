// Package engine provides the reconciliation core of ciadmin.
//
// # Overview
//
// A reconciliation converges the administrative resources of a remote
// management service (roles, hooks, worker types) onto the state described
// by configuration. It runs in three steps:
//
//  1. Load - read the desired side (configuration) and the observed side
//     (the live service) through ResourceSource implementations
//  2. Diff - partition the union of ids into create, update and delete
//     operations (Diff)
//  3. Apply - execute the operations one at a time through the dispatch
//     table, stopping at the first failure (Executor)
//
// Reconciler strings the steps together and adds an optional PlanGate
// between Diff and Apply.
//
// # Identity and equality
//
// Every Resource has an id of the form "<Kind>=<key>". The same remote
// object must produce the same id on both sides, otherwise the diff turns an
// update into a create plus a delete. Equal is a pure field comparison;
// a resource that is equal on both sides produces no operation, so running
// a reconciliation twice in a row makes no remote calls the second time.
//
// # Dispatch
//
// DispatchTable maps (Action, Kind) pairs to OperationFunc values. Kinds are
// registered in one place and the table can be validated at startup:
//
//	table := engine.NewDispatchTable()
//	_ = table.Register(engine.ActionCreate, engine.KindRole, createRole)
//	if err := table.Validate(engine.KindRole); err != nil {
//	    return err
//	}
//
// # Failure semantics
//
// Apply never runs two remote calls at once and never retries. The first
// failing call is returned as a *RemoteOperationError naming the action and
// resource id; operations before it remain applied, operations after it are
// not attempted. Re-running after fixing the cause is safe.
//
// Notifier sinks are called before every remote call. Their errors and
// panics are logged and never change the outcome of a run.
package engine
