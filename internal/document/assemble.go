package document

import (
	"encoding/json"
	"log"
	"sort"

	"github.com/bytedance/sonic"
)

// Assemble buckets raw records into render-ready pages. Records of type
// "components" contribute their decoded inner component list in stream order;
// every other type lands in the page's vision list. A record with a payload
// that fails to decode contributes nothing; the rest of the page and document
// are unaffected.
func Assemble(records []Record) []Page {
	buckets := map[int]*Page{}
	order := []int{}
	for _, rec := range records {
		page, ok := buckets[rec.Page]
		if !ok {
			page = &Page{Number: rec.Page, Width: rec.PageWidth, Height: rec.PageHeight}
			buckets[rec.Page] = page
			order = append(order, rec.Page)
		}
		if rec.Type != TypeComponents {
			page.Vision = append(page.Vision, rec)
			continue
		}
		comps, err := decodeComponentsPayload(rec.Content)
		if err != nil {
			log.Printf("[assemble] record %s on page %d: undecodable payload: %v", rec.ID, rec.Page, err)
			continue
		}
		page.Components = append(page.Components, comps...)
	}

	sort.Ints(order)
	pages := make([]Page, 0, len(order))
	for _, num := range order {
		pages = append(pages, *buckets[num])
	}
	return pages
}

// decodeComponentsPayload accepts both an object and the stringified JSON the
// pipeline sometimes stores, shaped {components: [{component, props}]}.
func decodeComponentsPayload(content json.RawMessage) ([]Component, error) {
	data := []byte(content)
	var stringified string
	if err := sonic.Unmarshal(data, &stringified); err == nil {
		data = []byte(stringified)
	}
	var wrapper struct {
		Components []rawComponent `json:"components"`
	}
	if err := sonic.Unmarshal(data, &wrapper); err != nil {
		return nil, err
	}
	comps := make([]Component, 0, len(wrapper.Components))
	for _, raw := range wrapper.Components {
		comp, err := decodeComponent(raw)
		if err != nil {
			return nil, err
		}
		comps = append(comps, comp)
	}
	return comps, nil
}

// RenderList flattens a page into the ordered component sequence a renderer
// walks: figure/table components that duplicate vision records are dropped,
// consecutive sentence-style text coalesces into paragraphs, and the page's
// vision records are appended as grouped clusters, images before tables.
func RenderList(p Page) []Component {
	out := []Component{}
	var sentences []TextProps
	flush := func() {
		if len(sentences) == 0 {
			return
		}
		out = append(out, Component{
			Kind:      KindParagraph,
			Paragraph: &ParagraphProps{Sentences: sentences},
		})
		sentences = nil
	}

	for _, comp := range p.Components {
		switch comp.Kind {
		case KindImage, KindTable, KindTableCaption:
			// Rendered from the vision records below.
			continue
		case KindText:
			if comp.Text != nil && comp.Text.Style == StyleSentence {
				sentences = append(sentences, *comp.Text)
				continue
			}
		}
		flush()
		out = append(out, comp)
	}
	flush()

	for _, group := range GroupFigures(p.Vision, TypeImage) {
		g := group
		out = append(out, Component{Kind: KindImageGroup, Group: &g})
	}
	for _, group := range GroupFigures(p.Vision, TypeTable) {
		g := group
		out = append(out, Component{Kind: KindTableGroup, Group: &g})
	}
	return out
}

// GroupFigures clusters vision records of one type by group key, preserving
// the position of each cluster's first member. The key falls back from the
// record's group id to the payload's group id to the record's own id, so an
// ungrouped record is always a singleton cluster.
func GroupFigures(vision []Record, recordType string) []GroupProps {
	groups := []GroupProps{}
	index := map[string]int{}
	for _, rec := range vision {
		if rec.Type != recordType {
			continue
		}
		fig := figureFromRecord(rec)
		key := rec.GroupID
		if key == "" {
			key = fig.GroupID
		}
		if key == "" {
			key = rec.ID
		}
		member := FigureMember{RecordID: rec.ID, Figure: fig}
		if at, ok := index[key]; ok {
			groups[at].Members = append(groups[at].Members, member)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, GroupProps{Key: key, Members: []FigureMember{member}})
	}
	return groups
}

func figureFromRecord(rec Record) FigureProps {
	fig := FigureProps{}
	if len(rec.Content) == 0 {
		return fig
	}
	if err := sonic.Unmarshal(rec.Content, &fig); err != nil {
		// Some fixtures store the asset URL as a bare string.
		var url string
		if err := sonic.Unmarshal(rec.Content, &url); err == nil {
			fig.URL = url
		}
	}
	return fig
}
