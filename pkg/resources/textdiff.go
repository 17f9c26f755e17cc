package resources

import (
	"bytes"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/ciadmin/ciadmin/pkg/engine"
)

// TextDiff returns a line diff between the string forms of before and after.
// Either may be nil (create or delete). Removed lines start with "- ",
// added lines with "+ " and unchanged lines with two spaces.
func TextDiff(before, after engine.Resource) string {
	var a, b string
	if before != nil {
		a = before.String() + "\n"
	}
	if after != nil {
		b = after.String() + "\n"
	}
	return LineDiff(a, b)
}

// LineDiff is TextDiff for plain text.
func LineDiff(current, desired string) string {
	dmp := diffmatchpatch.New()

	chars1, chars2, lines := dmp.DiffLinesToChars(current, desired)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(chars1, chars2, false), lines)

	var buf bytes.Buffer
	for _, d := range diffs {
		var marker string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			marker = "+ "
		case diffmatchpatch.DiffDelete:
			marker = "- "
		default:
			marker = "  "
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			buf.WriteString(marker)
			buf.WriteString(strings.TrimSuffix(line, "\n"))
			buf.WriteString("\n")
		}
	}
	return buf.String()
}
