// Package config loads ciadmin settings and the desired state.
//
// # Overview
//
// Settings live in ciadmin.yaml and are decoded by LoadSettings. They name
// the management service, the id prefixes the tool owns, the CUE sources
// and Starlark generators that make up the desired state, and the policy,
// state and telemetry options.
//
// The desired state is read by DesiredSource, which implements
// engine.ResourceSource:
//
//	settings, err := config.LoadSettings("ciadmin.yaml")
//	if err != nil {
//	    return err
//	}
//	managed := resources.NewManaged(settings.Managed...)
//	desired := config.NewDesiredSource(settings, managed, logger)
//	rs, err := desired.Resources(ctx)
//
// # CUE Sources
//
// A source is a .cue file or a directory of them. Three top-level fields are
// recognized, each either a struct keyed by id or a list:
//
//	roles: "repo:github.com/org/app": {
//	    description: "CI for app"
//	    scopes: ["queue:route:index.app.*"]
//	}
//
//	hooks: "project-app/nightly": {
//	    name:     "nightly"
//	    owner:    "app@example.com"
//	    schedule: ["0 0 0 * * *"]
//	    task:     {provisionerId: "aws"}
//	}
//
//	workerTypes: "app-b-1": {
//	    owner:       "app@example.com"
//	    maxCapacity: 10
//	    launchSpec:  {ImageId: "ami-123"}
//	}
//
// Keys fill in the identifying fields (roleId, hookGroupId/hookId,
// workerType) when an entry omits them. Every entry is checked against a
// closed CUE definition from SchemaRegistry and then against the struct
// tags of the resources package.
//
// # Generators
//
// A generator is a Starlark script run with the configured input bound as
// globals. It emits resources through the list globals roles, hooks and
// workerTypes, using the same field names as CUE entries:
//
//	def repo_role(repo):
//	    return {"roleId": "repo:github.com/org/" + repo, "scopes": ["queue:*"]}
//
//	roles = [repo_role(r) for r in repos]
//
// Scripts cannot load modules or reach the filesystem and are cancelled
// after a timeout.
//
// # Errors
//
// Problems with individual entries are collected as ValidationError values
// with file and path information. DesiredSource.Resources fails with a
// *LoadError listing all of them, including resources outside the managed
// set and duplicate ids.
//
// # Watching
//
// Watcher reports changes to the configuration files so that a plan can be
// recomputed while editing.
package config
