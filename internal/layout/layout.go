// Package layout splits an ordered sequence of rendered blocks into fixed
// height pages. Heights come from a pluggable estimator so the engine works
// the same against live terminal rendering and against deterministic metrics
// in tests.
package layout

import (
	"strconv"
	"strings"

	"github.com/muesli/reflow/wordwrap"
)

// Block is one indivisible unit of paginated content.
type Block struct {
	ID      string
	Heading bool
	Content string
}

// Page holds the blocks that fit one content box.
type Page struct {
	Blocks []Block
}

// HeightEstimator reports the rendered height of a block, in lines, at a
// given content width.
type HeightEstimator interface {
	Height(b Block, width int) int
}

// Fraction of the page a heading may start after; beyond it the heading
// moves to the next page so it is not orphaned above a page break.
const headingBreakThreshold = 0.8

// Paginate walks blocks in order, closing a page whenever the next block
// would overflow maxHeight and the page already has content. A heading
// starting in the bottom fifth of a page is pushed to the next page even if
// it would still fit. Always returns at least one page: empty input and a
// single block taller than maxHeight both yield exactly one page.
func Paginate(blocks []Block, est HeightEstimator, width, maxHeight int) []Page {
	pages := []Page{}
	current := Page{}
	running := 0

	flush := func() {
		if len(current.Blocks) == 0 {
			return
		}
		pages = append(pages, current)
		current = Page{}
		running = 0
	}

	for i, b := range blocks {
		h := est.Height(b, width)
		if len(current.Blocks) > 0 {
			overflow := running+h > maxHeight
			headingTooLow := b.Heading && float64(running) > headingBreakThreshold*float64(maxHeight)
			// A heading that alone overflows breaks before itself, not
			// after, unless the next block is also a heading.
			headingOverflow := b.Heading && overflow && !nextIsHeading(blocks, i)
			if overflow || headingTooLow || headingOverflow {
				flush()
			}
		}
		current.Blocks = append(current.Blocks, b)
		running += h
	}
	flush()

	if len(pages) == 0 {
		pages = append(pages, Page{Blocks: blocks})
	}
	return pages
}

func nextIsHeading(blocks []Block, i int) bool {
	return i+1 < len(blocks) && blocks[i+1].Heading
}

// WrapEstimator measures a block by word-wrapping its content at the page
// width, the same wrap the renderer applies. Gap counts the blank lines
// appended after each block.
type WrapEstimator struct {
	Gap int
}

func (e WrapEstimator) Height(b Block, width int) int {
	if width <= 0 {
		width = 80
	}
	wrapped := wordwrap.String(b.Content, width)
	return strings.Count(wrapped, "\n") + 1 + e.Gap
}

// MetricsEstimator is a deterministic stand-in for live measurement: lines
// are estimated as ceil(len/width). It agrees with WrapEstimator to within
// one line per block for plain text without words longer than the width.
type MetricsEstimator struct {
	Gap int
}

func (e MetricsEstimator) Height(b Block, width int) int {
	if width <= 0 {
		width = 80
	}
	lines := 0
	for _, para := range strings.Split(b.Content, "\n") {
		lines += (len(para) + width - 1) / width
		if para == "" {
			lines++
		}
	}
	if lines == 0 {
		lines = 1
	}
	return lines + e.Gap
}

// BlocksFromText splits a pre-formatted text blob into paginatable blocks:
// paragraphs separated by blank lines, with markdown-style "#" lines marked
// as headings.
func BlocksFromText(content string) []Block {
	blocks := []Block{}
	for _, chunk := range strings.Split(content, "\n\n") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		blocks = append(blocks, Block{
			ID:      "blk-" + strconv.Itoa(len(blocks)),
			Heading: strings.HasPrefix(chunk, "#"),
			Content: strings.TrimLeft(chunk, "# "),
		})
	}
	return blocks
}
