package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/ciadmin/ciadmin/pkg/engine"
	"github.com/ciadmin/ciadmin/pkg/resources"
	"github.com/ciadmin/ciadmin/pkg/stores"
	"github.com/ciadmin/ciadmin/pkg/telemetry"
)

// printer writes human-readable output to a command's output stream. It is
// also an engine.Notifier printing one line per operation as it starts.
type printer struct {
	out io.Writer
}

var _ engine.Notifier = (*printer)(nil)

func newPrinter(out io.Writer) *printer {
	return &printer{out: out}
}

// Notify prints "Creating Role=...", "Updating ..." or "Deleting ...".
func (p *printer) Notify(_ context.Context, op engine.Operation) error {
	_, err := fmt.Fprintln(p.out, actionStyle(op.Action).Sprint(capitalize(op.Action.Gerund()))+" "+op.Resource.ID())
	return err
}

// plan prints every operation of plan followed by a summary line. With
// details, each operation is followed by a line diff of the resource.
func (p *printer) plan(plan *engine.Plan, details bool) {
	if plan.Empty() {
		fmt.Fprint(p.out, pterm.Success.Sprintln("No changes. The live state matches the desired state."))
		return
	}

	for _, op := range plan.Operations {
		fmt.Fprintln(p.out, actionStyle(op.Action).Sprint(actionSymbol(op.Action))+" "+op.Resource.ID())
		if details {
			fmt.Fprintln(p.out, indent(operationDiff(plan, op)))
		}
	}

	fmt.Fprintln(p.out)
	fmt.Fprint(p.out, pterm.Info.Sprintfln("Plan: %d to create, %d to update, %d to delete.",
		plan.Summary.ToCreate, plan.Summary.ToUpdate, plan.Summary.ToDelete))
}

// admission prints the policy verdict on a plan. A nil verdict prints
// nothing.
func (p *printer) admission(a *admissionResult) {
	switch {
	case a == nil:
	case a.Admitted:
		fmt.Fprint(p.out, pterm.Success.Sprintln("Plan admitted by policy."))
	default:
		fmt.Fprint(p.out, pterm.Warning.Sprintfln("Plan would be denied: %s", a.Reason))
	}
}

// run prints the outcome of an apply.
func (p *printer) run(run *engine.Run) {
	switch run.Status {
	case engine.RunStatusSucceeded:
		fmt.Fprint(p.out, pterm.Success.Sprintfln("Applied %d operations in %s.", run.Succeeded, run.Duration().Round(time.Millisecond)))
	case engine.RunStatusDenied:
		fmt.Fprint(p.out, pterm.Warning.Sprintfln("Plan denied: %s", run.Error))
	default:
		fmt.Fprint(p.out, pterm.Error.Sprintfln("Applied %d of %d operations: %s",
			run.Succeeded, run.Summary.Total(), run.Error))
	}
}

// runs renders run history as a table.
func (p *printer) runs(runs []*stores.RunRecord) error {
	if len(runs) == 0 {
		fmt.Fprint(p.out, pterm.Info.Sprintln("No runs recorded."))
		return nil
	}

	data := [][]string{{"ID", "Started", "Status", "Create", "Update", "Delete", "Applied"}}
	for _, r := range runs {
		data = append(data, []string{
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			statusStyle(r.Status).Sprint(r.Status),
			fmt.Sprint(r.ToCreate),
			fmt.Sprint(r.ToUpdate),
			fmt.Sprint(r.ToDelete),
			fmt.Sprintf("%d/%d", r.Succeeded, r.ToCreate+r.ToUpdate+r.ToDelete),
		})
	}
	return p.table(data)
}

// operations renders the operations of one run as a table.
func (p *printer) operations(run *stores.RunRecord, ops []*stores.OperationRecord) error {
	fmt.Fprint(p.out, pterm.DefaultSection.Sprintfln("Run %s", run.ID))
	if run.Error != nil {
		fmt.Fprint(p.out, pterm.Error.Sprintln(*run.Error))
	}
	if len(ops) == 0 {
		fmt.Fprint(p.out, pterm.Info.Sprintln("No operations attempted."))
		return nil
	}

	data := [][]string{{"#", "Action", "Resource", "Status", "Duration", "Error"}}
	for _, op := range ops {
		var errMsg string
		if op.Error != nil {
			errMsg = *op.Error
		}
		data = append(data, []string{
			fmt.Sprint(op.Sequence),
			op.Action,
			op.ResourceID,
			statusStyle(op.Status).Sprint(op.Status),
			fmt.Sprintf("%dms", op.DurationMs),
			errMsg,
		})
	}
	return p.table(data)
}

// events prints a stored run timeline.
func (p *printer) events(events []*stores.Event) {
	for _, e := range events {
		timelineLine(p.out, e.Timestamp, string(e.Level), e.Type, e.Message)
	}
}

// timeline returns a subscriber printing live run events to w in the same
// layout as a stored timeline.
func timeline(w io.Writer) telemetry.EventSubscriber {
	var mu sync.Mutex
	return func(e telemetry.Event) {
		mu.Lock()
		defer mu.Unlock()
		timelineLine(w, e.Timestamp, e.Level, string(e.Type), e.Message)
	}
}

func timelineLine(w io.Writer, ts time.Time, level, eventType, message string) {
	fmt.Fprintf(w, "%s  %-8s %-20s %s\n", ts.Local().Format("15:04:05.000"), level, eventType, message)
}

func (p *printer) table(data [][]string) error {
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.out, out)
	return err
}

// json writes v as indented JSON.
func (p *printer) json(v interface{}) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// operationDiff renders what op changes. Updates are diffed against the
// observed resource they replace.
func operationDiff(plan *engine.Plan, op engine.Operation) string {
	switch op.Action {
	case engine.ActionCreate:
		return resources.TextDiff(nil, op.Resource)
	case engine.ActionDelete:
		return resources.TextDiff(op.Resource, nil)
	default:
		return resources.TextDiff(plan.Current[op.Resource.ID()], op.Resource)
	}
}

func actionSymbol(a engine.Action) string {
	switch a {
	case engine.ActionCreate:
		return "+"
	case engine.ActionDelete:
		return "-"
	default:
		return "~"
	}
}

func actionStyle(a engine.Action) *pterm.Style {
	switch a {
	case engine.ActionCreate:
		return pterm.NewStyle(pterm.FgGreen)
	case engine.ActionDelete:
		return pterm.NewStyle(pterm.FgRed)
	default:
		return pterm.NewStyle(pterm.FgYellow)
	}
}

func statusStyle(status string) *pterm.Style {
	switch status {
	case string(engine.RunStatusSucceeded):
		return pterm.NewStyle(pterm.FgGreen)
	case string(engine.RunStatusFailed):
		return pterm.NewStyle(pterm.FgRed)
	case string(engine.RunStatusDenied):
		return pterm.NewStyle(pterm.FgYellow)
	default:
		return pterm.NewStyle(pterm.FgDefault)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}
