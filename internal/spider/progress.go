package spider

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/gnomegl/gitgraph/internal/graph"
)

type progress struct {
	out io.Writer
	bar *progressbar.ProgressBar
	max int
}

func newProgress(out, barOut io.Writer, max int) *progress {
	p := &progress{out: out, max: max}
	if barOut != nil {
		p.bar = progressbar.NewOptions(max,
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(10),
			progressbar.OptionSetDescription("[cyan]Expanding repositories[reset]"),
			progressbar.OptionSetWriter(barOut),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]#[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: "-",
				BarStart:      "[",
				BarEnd:        "]",
			}))
	}
	return p
}

func (p *progress) repository(name string, added graph.Counts, total Stats, queued, quota int) {
	color.New(color.FgGreen).Fprintf(p.out, "[+] [%d/%d] %s", total.Visited, p.max, name)
	fmt.Fprintf(p.out, ": +%d users +%d edges, queued %d, quota %d\n", added.Users, added.Edges, queued, quota)
	if p.bar != nil {
		p.bar.Add(1)
	}
}

func (p *progress) finish() {
	if p.bar != nil {
		p.bar.Finish()
	}
}
