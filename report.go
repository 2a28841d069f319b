package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/tanpawarit/autoblog/agent/agents/maintenance"
	contractx "github.com/tanpawarit/autoblog/agent/contract"
)

var (
	okLabel   = color.New(color.FgGreen, color.Bold)
	warnLabel = color.New(color.FgYellow)
	failLabel = color.New(color.FgRed, color.Bold)
)

func printSkipped(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %v\n", warnLabel.Sprint("SKIPPED"), err)
}

func printCycle(w io.Writer, res contractx.CycleResult, err error) {
	var cycleErr *contractx.CycleError
	switch {
	case errors.As(err, &cycleErr):
		fmt.Fprintf(w, "%s cycle %s rejected after %d revision(s)\n", failLabel.Sprint("REJECTED"), cycleErr.CycleID, res.Draft.Revision)
		for _, v := range cycleErr.Verdict.Blocking() {
			fmt.Fprintf(w, "  - %s %q %s\n", v.RuleID, v.Match, v.Regulation)
		}
		return
	case err != nil:
		fmt.Fprintf(w, "%s cycle %s: %v\n", failLabel.Sprint("FAILED"), res.CycleID, err)
		return
	}

	label := okLabel.Sprint(string(res.Outcome))
	if res.DryRun {
		label = okLabel.Sprint("approved (dry run)")
	}
	fmt.Fprintf(w, "%s %s\n", label, res.Draft.Title)
	fmt.Fprintf(w, "  product:    %s (%s)\n", res.Product.Name, res.Product.Source)
	if res.Topic != nil {
		fmt.Fprintf(w, "  topic:      %s\n", res.Topic.ProposedTitle)
	}
	fmt.Fprintf(w, "  citations:  %d\n", len(res.Research.Citations))
	fmt.Fprintf(w, "  revisions:  %d\n", res.Draft.Revision)
	fmt.Fprintf(w, "  publish at: %s\n", res.PublishAt.Format("2006-01-02 15:04 MST"))
	if res.PostID > 0 {
		fmt.Fprintf(w, "  post id:    %d\n", res.PostID)
	}
	for _, v := range res.Verdict.Warnings() {
		fmt.Fprintf(w, "  %s %s %q\n", warnLabel.Sprint("warn"), v.RuleID, v.Match)
	}
}

func printMaintenance(w io.Writer, r maintenance.Report) {
	mode := ""
	if r.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(w, "%s audited %d, updated %d, failed %d%s\n",
		okLabel.Sprint("MAINTENANCE"), r.Audited, r.Updated, r.Failed, mode)
	for _, p := range r.Posts {
		if len(p.Applied) == 0 && p.Err == "" {
			continue
		}
		status := okLabel.Sprint("ok")
		if p.Err != "" {
			status = failLabel.Sprint("error")
		}
		fmt.Fprintf(w, "  post %d %s: %d fix(es), %d dropped\n", p.PostID, status, len(p.Applied), len(p.Dropped))
		for _, f := range p.Applied {
			fmt.Fprintf(w, "    %s %q -> %q\n", f.Category, f.Original, f.Correction)
		}
	}
}

func printKeyCheck(w io.Writer, provider, model string, found bool, err error) {
	switch {
	case err != nil:
		fmt.Fprintf(w, "%s %s key rejected: %v\n", failLabel.Sprint("FAIL"), provider, err)
	case !found:
		fmt.Fprintf(w, "%s %s key accepted, model %q not listed\n", warnLabel.Sprint("WARN"), provider, model)
	default:
		fmt.Fprintf(w, "%s %s key accepted, model %q available\n", okLabel.Sprint("OK"), provider, model)
	}
}
