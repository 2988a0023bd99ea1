// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package medline

import (
	"encoding/xml"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/medline-mirror/pkg/types"
)

// ErrMissingPMID marks a citation without a usable identifier; such records
// are skipped and counted, never fatal.
var ErrMissingPMID = errors.New("record has no PMID")

const articleBase = "https://pubmed.ncbi.nlm.nih.gov/"

// pubmedArticle mirrors the slice of the PubmedArticle element the
// normalizer consumes. Everything else in the record is skipped by the
// decoder.
type pubmedArticle struct {
	MedlineCitation medlineCitation `xml:"MedlineCitation"`
	PubmedData      pubmedData      `xml:"PubmedData"`
}

type medlineCitation struct {
	PMID            string         `xml:"PMID"`
	Article         articleElement `xml:"Article"`
	MeshHeadingList struct {
		Headings []meshHeading `xml:"MeshHeading"`
	} `xml:"MeshHeadingList"`
	KeywordList struct {
		Keywords []Node `xml:"Keyword"`
	} `xml:"KeywordList"`
}

type articleElement struct {
	Journal struct {
		Title        string `xml:"Title"`
		JournalIssue struct {
			PubDate pubDate `xml:"PubDate"`
		} `xml:"JournalIssue"`
	} `xml:"Journal"`
	ArticleTitle Node `xml:"ArticleTitle"`
	Abstract     struct {
		Sections []abstractSection `xml:"AbstractText"`
	} `xml:"Abstract"`
	AuthorList struct {
		Authors []author `xml:"Author"`
	} `xml:"AuthorList"`
}

// abstractSection is one labeled segment of a structured abstract. The
// content is mixed; the label and category hint are attributes.
type abstractSection struct {
	Label       string
	NlmCategory string
	Content     Node
}

func (s *abstractSection) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, a := range start.Attr {
		switch a.Name.Local {
		case "Label":
			s.Label = a.Value
		case "NlmCategory":
			s.NlmCategory = a.Value
		}
	}
	return s.Content.UnmarshalXML(d, start)
}

type author struct {
	LastName       string `xml:"LastName"`
	ForeName       string `xml:"ForeName"`
	Initials       string `xml:"Initials"`
	CollectiveName string `xml:"CollectiveName"`
}

// displayName renders an author the way the source intends: personal names
// as "ForeName LastName", group authorship by its collective name.
func (a author) displayName() string {
	switch {
	case a.ForeName != "" && a.LastName != "":
		return a.ForeName + " " + a.LastName
	case a.Initials != "" && a.LastName != "":
		return a.Initials + " " + a.LastName
	case a.LastName != "":
		return a.LastName
	default:
		return strings.TrimSpace(a.CollectiveName)
	}
}

type meshHeading struct {
	DescriptorName string `xml:"DescriptorName"`
}

type pubDate struct {
	Year        string `xml:"Year"`
	Month       string `xml:"Month"`
	Day         string `xml:"Day"`
	MedlineDate string `xml:"MedlineDate"`
}

type pubmedData struct {
	ArticleIDs []articleID `xml:"ArticleIdList>ArticleId"`
}

type articleID struct {
	IDType string `xml:"IdType,attr"`
	Value  string `xml:",chardata"`
}

// deleteCitation lists PMIDs retracted by an update file.
type deleteCitation struct {
	PMIDs []string `xml:"PMID"`
}

// Normalize converts one parsed citation into a corpus Document. The PMID
// is mandatory; everything else degrades to empty fields.
func Normalize(sourceID string, art *pubmedArticle) (types.Document, error) {
	pmid := strings.TrimSpace(art.MedlineCitation.PMID)
	if pmid == "" {
		return types.Document{}, ErrMissingPMID
	}

	doc := types.Document{
		SourceID:   sourceID,
		ExternalID: pmid,
		URL:        articleBase + pmid + "/",
	}

	article := &art.MedlineCitation.Article
	doc.Title = strings.TrimSpace(Flatten(&article.ArticleTitle))
	doc.Abstract = formatAbstract(article.Abstract.Sections)
	doc.Journal = strings.TrimSpace(article.Journal.Title)
	doc.PublicationDate = formatDate(article.Journal.JournalIssue.PubDate)

	for _, a := range article.AuthorList.Authors {
		if name := a.displayName(); name != "" {
			doc.Authors = append(doc.Authors, name)
		}
	}

	for _, id := range art.PubmedData.ArticleIDs {
		if id.IDType == "doi" {
			doc.DOI = strings.TrimSpace(id.Value)
		}
	}

	for _, h := range art.MedlineCitation.MeshHeadingList.Headings {
		if term := strings.TrimSpace(h.DescriptorName); term != "" {
			doc.MeshTerms = append(doc.MeshTerms, term)
		}
	}
	for i := range art.MedlineCitation.KeywordList.Keywords {
		if kw := strings.TrimSpace(Flatten(&art.MedlineCitation.KeywordList.Keywords[i])); kw != "" {
			doc.Keywords = append(doc.Keywords, kw)
		}
	}

	return doc, nil
}

// formatAbstract renders abstract segments as Markdown. Each labeled
// segment becomes "**LABEL:** text"; an explicit Label wins over the
// NlmCategory hint, placeholder categories are suppressed, and segments
// join with a blank line so the structure survives as paragraphs.
func formatAbstract(sections []abstractSection) string {
	var parts []string
	for i := range sections {
		text := strings.TrimSpace(Flatten(&sections[i].Content))
		if text == "" {
			continue
		}
		label := strings.TrimSpace(sections[i].Label)
		if label == "" {
			label = categoryLabel(sections[i].NlmCategory)
		}
		if label != "" {
			text = "**" + label + ":** " + text
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n")
}

// categoryLabel returns the category hint as a usable label, suppressing
// the source's placeholder categories.
func categoryLabel(cat string) string {
	cat = strings.TrimSpace(cat)
	switch strings.ToUpper(cat) {
	case "", "UNASSIGNED", "UNLABELLED":
		return ""
	}
	return cat
}

var yearPattern = regexp.MustCompile(`\b\d{4}\b`)

// formatDate renders a PubDate as YYYY-MM-DD. The year is mandatory for a
// usable date (falling back to the first four-digit run of a MedlineDate
// range); month and day default to 01 when absent. Three-letter month
// names map to zero-padded numerics.
func formatDate(d pubDate) string {
	year := strings.TrimSpace(d.Year)
	if year == "" {
		year = yearPattern.FindString(d.MedlineDate)
	}
	if year == "" {
		return ""
	}
	return fmt.Sprintf("%s-%s-%s", year, monthNumber(d.Month), dayNumber(d.Day))
}

func monthNumber(m string) string {
	m = strings.TrimSpace(m)
	if m == "" {
		return "01"
	}
	if n, err := strconv.Atoi(m); err == nil && n >= 1 && n <= 12 {
		return fmt.Sprintf("%02d", n)
	}
	if t, err := time.Parse("Jan", m); err == nil {
		return fmt.Sprintf("%02d", int(t.Month()))
	}
	return "01"
}

func dayNumber(d string) string {
	if n, err := strconv.Atoi(strings.TrimSpace(d)); err == nil && n >= 1 && n <= 31 {
		return fmt.Sprintf("%02d", n)
	}
	return "01"
}
