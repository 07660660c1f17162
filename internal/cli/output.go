package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dukerupert/cadence/internal/model"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func writeRules(w io.Writer, rules []model.RecurrenceRule) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tRULE\tSTART\tEND\tACTIVE\tEXPIRY")
	for _, r := range rules {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%t\t%s\n",
			r.ID, r.Kind, r.Rule, deref(r.StartDate), deref(r.EndDate), r.IsActive, r.ExpiryBehavior)
	}
	return tw.Flush()
}

func writeMaterialized(w io.Writer, byDate map[string][]string, dates []string) error {
	for _, d := range dates {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", d, strings.Join(byDate[d], ",")); err != nil {
			return err
		}
	}
	return nil
}
