package app

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/specialistvlad/dripflow/internal/validate"
)

// writeReport prints a validation result in the configured format.
func writeReport(w io.Writer, format string, res validate.Result) error {
	if format == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	if res.IsValid {
		fmt.Fprintln(w, "Flow is valid.")
	} else {
		fmt.Fprintf(w, "Flow is invalid: %d problem(s).\n", len(res.Blocking()))
	}
	for _, is := range res.Issues {
		if _, err := fmt.Fprintf(w, "  - [%s] %s\n", is.Category, is.Message); err != nil {
			return err
		}
	}
	return nil
}
