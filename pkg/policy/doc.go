// Package policy gates plans with Open Policy Agent (OPA) Rego policies.
//
// Before a plan is applied, every enabled policy is evaluated with the plan
// as input. Violations with severity error or critical deny the plan;
// warnings and info findings are reported but do not block.
//
// # Input
//
// Policies see the plan under input.plan:
//
//	{
//	  "plan": {
//	    "operations": [
//	      {"action": "delete", "kind": "Role", "id": "Role=repo:x", "resource": {"roleId": "repo:x", ...}}
//	    ],
//	    "summary": {"to_create": 0, "to_update": 0, "to_delete": 1}
//	  },
//	  "context": {"timestamp": "...", "dry_run": false}
//	}
//
// and the configured parameters under data.ciadmin.params (max_deletes,
// protected).
//
// # Writing Policies
//
// A policy is a Rego module whose deny set holds violations, either message
// strings or objects with message, severity and resource keys:
//
//	# Hooks must be owned by a team address.
//	# severity: warning
//	package ciadmin.custom.owners
//
//	import rego.v1
//
//	deny contains msg if {
//	    some op in input.plan.operations
//	    op.kind == "Hook"
//	    not endswith(op.resource.owner, "@example.com")
//	    msg := sprintf("%s is not owned by a team", [op.id])
//	}
//
// Files default to severity error. The comment header supplies the
// description and may override the severity.
//
// # Built-in Policies
//
//   - protected-resources (critical): no deletes under a protected prefix
//   - bulk-delete (error): at most max_deletes deletions per plan
//   - star-scope (warning): roles granted the * scope
//
// # Usage
//
//	gate, err := policy.NewEngine(logger, policy.WithParams(policy.Params{
//	    MaxDeletes: 10,
//	    Protected:  []string{"Role=repo:github.com/org/infra"},
//	}))
//	if err != nil {
//	    return err
//	}
//	if err := gate.LoadPolicies(ctx, []string{"policies"}); err != nil {
//	    return err
//	}
//	reconciler := engine.NewReconciler(desired, observed, executor, logger, engine.WithPlanGate(gate))
package policy
