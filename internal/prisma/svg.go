// Package prisma renders PRISMA 2020 flow diagrams.
package prisma

import (
	"bytes"
	"fmt"
	"html"

	"github.com/helixir/review-screening/internal/domain"
)

// ContentType is the media type of RenderSVG output.
const ContentType = "image/svg+xml"

// Diagram geometry.
const (
	canvasWidth  = 800
	canvasHeight = 700
	boxWidth     = 200
	boxHeight    = 60
	margin       = 50
	stageSpacing = 150
	sideOffset   = 80
)

// Stage colors. Boxes are filled with the color at low opacity.
const (
	colorIdentification = "#4299E1"
	colorScreening      = "#48BB78"
	colorEligibility    = "#ECC94B"
	colorIncluded       = "#9F7AEA"
	colorExcluded       = "#FC8181"
)

const svgHeader = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %[1]d %[2]d" width="%[1]d" height="%[2]d">
<style>
  .box { stroke: #2D3748; stroke-width: 2; rx: 8; }
  .text { font-family: Arial, sans-serif; font-size: 12px; fill: #1A202C; text-anchor: middle; }
  .title { font-weight: bold; font-size: 14px; }
  .note { font-size: 10px; fill: #4A5568; }
  .arrow { stroke: #4A5568; stroke-width: 2; fill: none; marker-end: url(#arrowhead); }
  .section-title { font-size: 16px; font-weight: bold; fill: #2D3748; }
</style>
<defs>
  <marker id="arrowhead" markerWidth="10" markerHeight="7" refX="9" refY="3.5" orient="auto">
    <polygon points="0 0, 10 3.5, 0 7" fill="#4A5568" />
  </marker>
</defs>
`

type diagram struct {
	buf bytes.Buffer
}

// RenderSVG draws the four-stage flow: identification, screening,
// eligibility and included, with side boxes for the two exclusion points.
func RenderSVG(flow domain.PrismaFlow) ([]byte, error) {
	if err := validate(flow); err != nil {
		return nil, err
	}

	d := &diagram{}
	fmt.Fprintf(&d.buf, svgHeader, canvasWidth, canvasHeight)

	mainX := canvasWidth/2 - boxWidth/2
	sideX := mainX + boxWidth + sideOffset
	centerX := canvasWidth / 2

	idY := margin
	d.section("Identification", idY)
	d.box(mainX, idY+20, colorIdentification, "Records Identified", flow.Identification.RecordsIdentified)
	d.note(centerX, idY+20+boxHeight+14, fmt.Sprintf("%d databases searched, %d duplicates removed",
		flow.Identification.DatabasesSearched, flow.Identification.DuplicatesRemoved))
	d.arrow(centerX, idY+20+boxHeight+20, centerX, idY+stageSpacing-10)

	screenY := idY + stageSpacing
	d.section("Screening", screenY)
	d.box(mainX, screenY+20, colorScreening, "Records Screened", flow.Screening.RecordsScreened)
	d.box(sideX, screenY+20, colorExcluded, "Records Excluded", flow.Screening.RecordsExcluded)
	d.arrow(mainX+boxWidth, screenY+50, sideX, screenY+50)
	d.arrow(centerX, screenY+20+boxHeight, centerX, screenY+stageSpacing-10)

	eligY := screenY + stageSpacing
	d.section("Eligibility", eligY)
	d.box(mainX, eligY+20, colorEligibility, "Full-text Assessed", flow.Eligibility.FullTextAssessed)
	d.box(sideX, eligY+20, colorExcluded, "Full-text Excluded", flow.Eligibility.FullTextExcluded)
	d.arrow(mainX+boxWidth, eligY+50, sideX, eligY+50)
	d.arrow(centerX, eligY+20+boxHeight, centerX, eligY+stageSpacing-10)

	inclY := eligY + stageSpacing
	d.section("Included", inclY)
	d.box(mainX, inclY+20, colorIncluded, "Studies Included", flow.Included.StudiesIncluded)

	d.buf.WriteString("</svg>\n")
	return d.buf.Bytes(), nil
}

func (d *diagram) section(title string, y int) {
	fmt.Fprintf(&d.buf, "<text x=\"%d\" y=\"%d\" class=\"section-title\">%s</text>\n", margin, y+10, html.EscapeString(title))
}

func (d *diagram) box(x, y int, color, title string, n int) {
	fmt.Fprintf(&d.buf, "<rect x=\"%d\" y=\"%d\" width=\"%d\" height=\"%d\" class=\"box\" fill=\"%s20\" />\n",
		x, y, boxWidth, boxHeight, color)
	fmt.Fprintf(&d.buf, "<text x=\"%d\" y=\"%d\" class=\"text title\">%s</text>\n", x+boxWidth/2, y+25, html.EscapeString(title))
	fmt.Fprintf(&d.buf, "<text x=\"%d\" y=\"%d\" class=\"text\">n = %d</text>\n", x+boxWidth/2, y+45, n)
}

func (d *diagram) note(x, y int, text string) {
	fmt.Fprintf(&d.buf, "<text x=\"%d\" y=\"%d\" class=\"text note\">%s</text>\n", x, y, html.EscapeString(text))
}

func (d *diagram) arrow(x1, y1, x2, y2 int) {
	fmt.Fprintf(&d.buf, "<line x1=\"%d\" y1=\"%d\" x2=\"%d\" y2=\"%d\" class=\"arrow\" />\n", x1, y1, x2, y2)
}

func validate(flow domain.PrismaFlow) error {
	counts := []struct {
		field string
		n     int
	}{
		{"records_identified", flow.Identification.RecordsIdentified},
		{"records_screened", flow.Screening.RecordsScreened},
		{"records_excluded", flow.Screening.RecordsExcluded},
		{"full_text_assessed", flow.Eligibility.FullTextAssessed},
		{"full_text_excluded", flow.Eligibility.FullTextExcluded},
		{"studies_included", flow.Included.StudiesIncluded},
	}
	for _, c := range counts {
		if c.n < 0 {
			return domain.NewValidationError(c.field, fmt.Sprintf("negative count %d", c.n))
		}
	}
	return nil
}
