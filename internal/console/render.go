package console

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/rodaine/table"

	"github.com/JakeFAU/flowfact-console/internal/gate"
	"github.com/JakeFAU/flowfact-console/internal/sequencer"
)

// Title is printed once when a console session starts.
const Title = "Real Estate API Service"

// Renderer writes session output. It implements sequencer.Observer.
type Renderer struct {
	out     io.Writer
	title   *color.Color
	success *color.Color
	failure *color.Color
	muted   *color.Color
	header  *color.Color
	column  *color.Color
}

// NewRenderer writes to out, without ANSI colors when noColor is set.
func NewRenderer(out io.Writer, noColor bool) *Renderer {
	r := &Renderer{
		out:     out,
		title:   color.New(color.FgCyan, color.Bold),
		success: color.New(color.FgGreen),
		failure: color.New(color.FgRed),
		muted:   color.New(color.FgHiBlack),
		header:  color.New(color.FgGreen, color.Underline),
		column:  color.New(color.FgYellow),
	}
	if noColor {
		for _, c := range []*color.Color{r.title, r.success, r.failure, r.muted, r.header, r.column} {
			c.DisableColor()
		}
	}
	return r
}

// Banner prints the application title.
func (r *Renderer) Banner() {
	r.title.Fprintln(r.out, Title)
	fmt.Fprintln(r.out)
}

// Verdict prints the gate's answer. An unsubmitted verdict asks for input again.
func (r *Renderer) Verdict(v gate.Verdict) {
	switch {
	case !v.Submitted:
		r.muted.Fprintln(r.out, "Please enter your API Key.")
	case v.Verified:
		r.success.Fprintln(r.out, v.Diagnostic)
	default:
		r.failure.Fprintln(r.out, v.Diagnostic)
	}
}

// Started implements sequencer.Observer.
func (r *Renderer) Started(op sequencer.Operation) {
	r.muted.Fprintf(r.out, "%s...\n", op.Title)
}

// Finished implements sequencer.Observer.
func (r *Renderer) Finished(_ sequencer.Operation, res sequencer.Result) {
	switch res.Outcome {
	case sequencer.OutcomeSuccess, sequencer.OutcomeSuccessPayload:
		r.success.Fprintln(r.out, res.Message)
	case sequencer.OutcomeSkipped:
		r.muted.Fprintln(r.out, res.Message)
	default:
		r.failure.Fprintln(r.out, res.Message)
	}
	if len(res.Payload) > 0 {
		r.Payload(res.Payload)
	}
}

// Payload pretty-prints a JSON body, keeping its key order. Bodies that do not
// indent cleanly are printed as received.
func (r *Renderer) Payload(payload []byte) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "  "); err != nil {
		fmt.Fprintln(r.out, string(payload))
		return
	}
	fmt.Fprintln(r.out, buf.String())
}

// Summary prints one row per result.
func (r *Renderer) Summary(results []sequencer.Result) {
	if len(results) == 0 {
		return
	}
	fmt.Fprintln(r.out)
	tbl := table.New("OPERATION", "OUTCOME", "STATUS", "DURATION")
	tbl.WithWriter(r.out)
	tbl.WithHeaderFormatter(r.header.SprintfFunc()).WithFirstColumnFormatter(r.column.SprintfFunc())
	for _, res := range results {
		status := "-"
		if res.StatusCode != 0 {
			status = strconv.Itoa(res.StatusCode)
		}
		duration := "-"
		if res.Outcome != sequencer.OutcomeSkipped {
			duration = res.Duration.Round(time.Millisecond).String()
		}
		tbl.AddRow(res.Operation, string(res.Outcome), status, duration)
	}
	tbl.Print()
}

// Error prints a failure line.
func (r *Renderer) Error(msg string) {
	r.failure.Fprintln(r.out, msg)
}
