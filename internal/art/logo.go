package art

import (
	"io"

	"github.com/common-nighthawk/go-figure"
	"github.com/fatih/color"

	"github.com/gnomegl/gitgraph/internal/utils"
)

// PrintLogo writes the banner to w, usually stderr so piped output stays
// clean.
func PrintLogo(w io.Writer) {
	logo := figure.NewFigure("gitgraph", "chunky", false)
	color.New(color.FgCyan).Fprint(w, logo.String())
	color.New(color.FgHiRed).Fprintf(w, "          v%s · GitHub star graph crawler\n\n", utils.GetVersion())
}
