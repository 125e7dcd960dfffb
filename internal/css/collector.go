package css

import (
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/law-makers/dommap/internal/cache"
	"github.com/law-makers/dommap/pkg/dom"
	"github.com/law-makers/dommap/pkg/models"
	"github.com/rs/zerolog/log"
)

// EmbeddedPrefix prefixes the source id of stylesheets taken from <style>
// elements.
const EmbeddedPrefix = "html"

// Collect gathers every stylesheet that applied to doc: the captured
// external sheets in capture order, then each <style> element in document
// order. A <style> without a text child is skipped but still consumes its
// index, so "html<N>" always names the N-th <style> element.
func Collect(captured []models.CapturedStylesheet, doc *dom.Document) []models.StylesheetRecord {
	records := make([]models.StylesheetRecord, 0, len(captured))
	for _, c := range captured {
		records = append(records, models.StylesheetRecord{SourceID: c.URL, Content: c.Text})
	}

	if doc == nil {
		return records
	}

	doc.Query().Find("style").Each(func(i int, s *goquery.Selection) {
		n := doc.NodeFor(s)
		if n == nil || len(n.Children) == 0 || n.Children[0].Type != dom.TextNode {
			log.Debug().Int("index", i).Msg("Skipping <style> without text")
			return
		}
		records = append(records, models.StylesheetRecord{
			SourceID: fmt.Sprintf("%s%d", EmbeddedPrefix, i),
			Content:  n.Children[0].Data,
		})
	})

	return records
}

// Loader parses stylesheet records, sharing trees through a cache when one
// is configured.
type Loader struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewLoader creates a Loader. c may be nil.
func NewLoader(c cache.Cache, ttl time.Duration) *Loader {
	return &Loader{cache: c, ttl: ttl}
}

// ParseAll fills in Rules for every record. Records whose content fails to
// parse keep a nil tree and are otherwise left in place.
func (l *Loader) ParseAll(records []models.StylesheetRecord) []models.StylesheetRecord {
	for i := range records {
		records[i].Rules = l.parse(records[i].SourceID, records[i].Content)
	}
	return records
}

func (l *Loader) parse(sourceID, text string) *models.Rule {
	var key string
	if l != nil && l.cache != nil {
		key = cache.KeyForContent(text)
		if tree, ok := l.cache.Get(key); ok {
			return tree
		}
	}

	tree, err := Parse(text)
	if err != nil {
		log.Debug().Err(err).Str("source", sourceID).Msg("Stylesheet could not be parsed")
		return nil
	}

	if key != "" {
		if err := l.cache.Set(key, tree, int64(len(text)), l.ttl); err != nil {
			log.Debug().Err(err).Str("source", sourceID).Msg("Failed to cache stylesheet")
		}
	}
	return tree
}
