package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/dd0wney/hydroturbo/pkg/stream"
)

func inspectCommand(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	node := fs.String("node", "", "Print the pressure series of this node")
	link := fs.String("link", "", "Print the flow series of this link")
	step := fs.Int("step", -1, "Print every value of one period")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: hydrosim inspect [-node ID] [-link ID] [-step N] <output>")
	}

	r, err := stream.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer r.Close()

	if err := summarize(w, r); err != nil {
		return err
	}
	switch {
	case *node != "":
		return series(w, r, *node, r.NodeIDs(), func(f stream.Frame) []float32 { return f.Pressure })
	case *link != "":
		return series(w, r, *link, r.LinkIDs(), func(f stream.Frame) []float32 { return f.Flow })
	case *step >= 0:
		return dumpStep(w, r, *step)
	}
	return nil
}

func summarize(w io.Writer, r stream.Reader) error {
	times, err := r.Times()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "steps:     %d\n", r.Steps())
	fmt.Fprintf(w, "nodes:     %d\n", len(r.NodeIDs()))
	fmt.Fprintf(w, "links:     %d\n", len(r.LinkIDs()))
	fmt.Fprintf(w, "completed: %t\n", r.Completed())
	if len(times) > 0 {
		fmt.Fprintf(w, "time:      %ds .. %ds\n", times[0], times[len(times)-1])
	}
	return nil
}

func series(w io.Writer, r stream.Reader, id string, ids []string, pick func(stream.Frame) []float32) error {
	pos := slices.Index(ids, id)
	if pos < 0 {
		return fmt.Errorf("no element %q in output", id)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "time\t%s\n", id)
	for i := 0; i < r.Steps(); i++ {
		f, err := r.Frame(i)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%d\t%.4f\n", f.Time, pick(f)[pos])
	}
	return tw.Flush()
}

func dumpStep(w io.Writer, r stream.Reader, step int) error {
	f, err := r.Frame(step)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "t=%ds\t\t\n", f.Time)
	for i, id := range r.NodeIDs() {
		fmt.Fprintf(tw, "node\t%s\t%.4f\n", id, f.Pressure[i])
	}
	for i, id := range r.LinkIDs() {
		fmt.Fprintf(tw, "link\t%s\t%.4f\n", id, f.Flow[i])
	}
	return tw.Flush()
}
