package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	dombatch "github.com/kailas-cloud/resdomain/internal/domain/batch"
	"github.com/kailas-cloud/resdomain/internal/domain/resource"
)

// writeReport prints one line per item, its errors below it, then the
// batch errors and the batch status.
func writeReport(w io.Writer, b *dombatch.Batch) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tREF\tSTATUS")
	for i, item := range b.Items() {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, ref(item), item.Status())
		for _, v := range item.AllErrors() {
			fmt.Fprintf(tw, "\t  - %s\t\n", v)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	for _, v := range b.Errors() {
		fmt.Fprintf(w, "batch error: %s\n", v)
	}
	_, err := fmt.Fprintf(w, "batch: %s (%d items)\n", b.Status(), b.Len())
	return err
}

func ref(item *resource.Resource) string {
	if r := item.Ref(); r != "" {
		return r
	}
	return "-"
}
