package kiosk

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/WilliamAziza/Sign-In-App/internal/attendance"
	"github.com/WilliamAziza/Sign-In-App/internal/models"
)

// RenderHistory prints records as an aligned table, oldest first.
func RenderHistory(w io.Writer, records []models.AttendanceRecord) error {
	if _, err := fmt.Fprintf(w, "Sign-In History (%d people)\n\n", len(records)); err != nil {
		return err
	}
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No sign-ins yet")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tEMPLOYEE ID\tTIMESTAMP\tSTATUS")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, r.EmployeeID, r.Timestamp, attendance.Status(r))
	}
	return tw.Flush()
}
