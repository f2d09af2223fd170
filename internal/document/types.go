package document

import (
	"encoding/json"
	"strings"

	"github.com/bytedance/sonic"
)

// Record is one stored unit of extracted document content tied to a page.
// Records arrive from the document store ordered by (page, id) but carry no
// ordering guarantee within a page beyond stream position.
type Record struct {
	ID         string          `json:"id"`
	Page       int             `json:"page"`
	Type       string          `json:"type"`
	Content    json.RawMessage `json:"content"`
	BBox       []float64       `json:"bbox,omitempty"`
	PageWidth  float64         `json:"page_width,omitempty"`
	PageHeight float64         `json:"page_height,omitempty"`
	GroupID    string          `json:"group_id,omitempty"`
}

// Record types produced by the extraction pipeline.
const (
	TypeComponents = "components"
	TypeImage      = "image"
	TypeTable      = "table"
	TypeText       = "text"
	TypeFormatted  = "formatted"
)

// Kind identifies one variant of the Component union.
type Kind int

const (
	KindUnknown Kind = iota
	KindTitle
	KindAbstract
	KindAuthorBlock
	KindFooter
	KindHeading
	KindText
	KindFigureTitle
	KindFigureCaption
	KindEquation
	KindList
	KindImage
	KindTable
	KindTableCaption

	// Synthetic kinds produced by the render pass, never decoded.
	KindParagraph
	KindImageGroup
	KindTableGroup
)

// Component is one decoded rendering instruction. Exactly one of the props
// pointers matching Kind is set; unrecognized tags keep their raw props so a
// renderer can degrade instead of dropping content.
type Component struct {
	Kind Kind
	Tag  string

	Text      *TextProps
	Heading   *HeadingProps
	Equation  *EquationProps
	List      *ListProps
	Figure    *FigureProps
	Paragraph *ParagraphProps
	Group     *GroupProps
	Raw       map[string]any
}

// TextProps backs Text and the caption/title/author style variants.
type TextProps struct {
	Text  string `json:"text"`
	Style string `json:"style,omitempty"`
}

// StyleSentence marks sentence-level text that coalesces into paragraphs.
const StyleSentence = "sentence"

type HeadingProps struct {
	Text          string `json:"text"`
	Level         int    `json:"level,omitempty"`
	SectionNumber string `json:"sectionNumber,omitempty"`
}

type EquationProps struct {
	Latex   string `json:"latex"`
	Display bool   `json:"display"`
	Number  string `json:"number,omitempty"`
}

type ListProps struct {
	Items   []string `json:"items"`
	Ordered bool     `json:"ordered,omitempty"`
}

// FigureProps describes one image or table asset.
type FigureProps struct {
	URL     string `json:"cdn_url"`
	Alt     string `json:"alt,omitempty"`
	Caption string `json:"caption,omitempty"`
	GroupID string `json:"group_id,omitempty"`
}

// ParagraphProps holds the sentences coalesced into one paragraph.
type ParagraphProps struct {
	Sentences []TextProps
}

// GroupProps holds a side-by-side cluster of figures or tables.
type GroupProps struct {
	Key     string
	Members []FigureMember
}

// FigureMember is one grouped figure plus the record it came from.
type FigureMember struct {
	RecordID string
	Figure   FigureProps
}

// Page is the assembled, render-ready view of one document page.
type Page struct {
	Number     int
	Components []Component
	Vision     []Record
	Width      float64
	Height     float64
}

// Empty reports whether the page carries no renderable content.
func (p Page) Empty() bool {
	return len(p.Components) == 0 && len(p.Vision) == 0
}

var tagKinds = map[string]Kind{
	"Title":         KindTitle,
	"Abstract":      KindAbstract,
	"AuthorBlock":   KindAuthorBlock,
	"Footer":        KindFooter,
	"Heading":       KindHeading,
	"Text":          KindText,
	"FigureTitle":   KindFigureTitle,
	"FigureCaption": KindFigureCaption,
	"Equation":      KindEquation,
	"List":          KindList,
	"Image":         KindImage,
	"Table":         KindTable,
	"TableCaption":  KindTableCaption,
}

type rawComponent struct {
	Tag   string          `json:"component"`
	Props json.RawMessage `json:"props"`
}

// decodeComponent maps one raw tag/props pair onto the closed union. Unknown
// tags are preserved verbatim so dispatch stays exhaustive downstream.
func decodeComponent(raw rawComponent) (Component, error) {
	comp := Component{Kind: tagKinds[raw.Tag], Tag: raw.Tag}
	switch comp.Kind {
	case KindHeading:
		props := &HeadingProps{}
		if err := unmarshalProps(raw.Props, props); err != nil {
			return Component{}, err
		}
		if props.Level <= 0 {
			props.Level = 2
		}
		comp.Heading = props
	case KindEquation:
		// display defaults to true when the field is absent.
		props := &EquationProps{Display: true}
		var probe struct {
			Latex   string `json:"latex"`
			Display *bool  `json:"display"`
			Number  string `json:"number"`
		}
		if err := unmarshalProps(raw.Props, &probe); err != nil {
			return Component{}, err
		}
		props.Latex = probe.Latex
		props.Number = probe.Number
		if probe.Display != nil {
			props.Display = *probe.Display
		}
		comp.Equation = props
	case KindList:
		props := &ListProps{}
		if err := unmarshalProps(raw.Props, props); err != nil {
			return Component{}, err
		}
		comp.List = props
	case KindImage, KindTable:
		props := &FigureProps{}
		if err := unmarshalProps(raw.Props, props); err != nil {
			return Component{}, err
		}
		comp.Figure = props
	case KindUnknown:
		props := map[string]any{}
		if err := unmarshalProps(raw.Props, &props); err != nil {
			return Component{}, err
		}
		comp.Raw = props
	default:
		// Title, Abstract, AuthorBlock, Footer, Text, FigureTitle,
		// FigureCaption, TableCaption all carry text props.
		props := &TextProps{}
		if err := unmarshalProps(raw.Props, props); err != nil {
			return Component{}, err
		}
		comp.Text = props
	}
	return comp, nil
}

func unmarshalProps(raw json.RawMessage, target any) error {
	if len(raw) == 0 {
		return nil
	}
	return sonic.Unmarshal(raw, target)
}

// PlainText returns the clickable payload for a component: the text a reader
// selects and the content an explanation request is keyed by.
func (c Component) PlainText() string {
	switch c.Kind {
	case KindHeading:
		if c.Heading != nil {
			return c.Heading.Text
		}
	case KindEquation:
		if c.Equation != nil {
			return c.Equation.Latex
		}
	case KindList:
		if c.List != nil {
			return strings.Join(c.List.Items, "\n")
		}
	case KindImage, KindTable:
		if c.Figure != nil {
			if c.Figure.Alt != "" {
				return c.Figure.Alt
			}
			return c.Figure.Caption
		}
	case KindParagraph:
		if c.Paragraph != nil {
			parts := make([]string, 0, len(c.Paragraph.Sentences))
			for _, s := range c.Paragraph.Sentences {
				parts = append(parts, s.Text)
			}
			return strings.Join(parts, " ")
		}
	default:
		if c.Text != nil {
			return c.Text.Text
		}
	}
	return ""
}
