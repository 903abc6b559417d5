package knowledge

import (
	"context"
	"log"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/cepa-dev/cepa-chat/internal/core"
	"github.com/cepa-dev/cepa-chat/internal/models"
)

// Candidate is one answer source in the unified corpus, drawn from either
// the chatbot documents or the resources publications.
type Candidate struct {
	ID          string
	Name        string
	Path        string // local file path; empty for external-URL publications
	URL         string
	SourceType  string // models.SourceTypeDocument or models.SourceTypePublication
	Description string
}

// Extracted is a candidate plus its extracted text.
type Extracted struct {
	Candidate
	Preview  string // first previewLen chars, used for relevance selection
	FullText string
}

const previewLen = 10000

// Corpus unifies the two document sources into one ordered candidate list.
type Corpus struct {
	dbclient     core.DbClient
	mediaRoot    string
	mediaBaseURL string
}

func NewCorpus(dbclient core.DbClient, mediaRoot, mediaBaseURL string) *Corpus {
	return &Corpus{dbclient: dbclient, mediaRoot: mediaRoot, mediaBaseURL: mediaBaseURL}
}

// ListCandidates returns active PDF documents followed by publications,
// each newest first. A publication source failure degrades the corpus to
// documents only instead of failing the chat turn.
func (c *Corpus) ListCandidates(ctx context.Context) ([]Candidate, error) {
	docs, err := c.dbclient.ListDocuments(ctx, true)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for _, d := range docs {
		if !strings.HasSuffix(strings.ToLower(d.FilePath), ".pdf") {
			continue
		}
		out = append(out, Candidate{
			ID:          d.ID,
			Name:        d.Name,
			Path:        filepath.Join(c.mediaRoot, d.FilePath),
			URL:         c.mediaURL(d.FilePath),
			SourceType:  models.SourceTypeDocument,
			Description: d.Description,
		})
	}

	pubs, err := c.dbclient.ListPublications(ctx)
	if err != nil {
		// The resources module is optional; keep answering from documents.
		log.Printf("Error loading publications: %v", err)
		return out, nil
	}
	for _, p := range pubs {
		switch {
		case p.PDFPath != "":
			out = append(out, Candidate{
				ID:          p.ID,
				Name:        p.Title,
				Path:        filepath.Join(c.mediaRoot, p.PDFPath),
				URL:         c.mediaURL(p.PDFPath),
				SourceType:  models.SourceTypePublication,
				Description: p.Description,
			})
		case p.URL != "":
			out = append(out, Candidate{
				ID:          p.ID,
				Name:        p.Title,
				URL:         p.URL,
				SourceType:  models.SourceTypePublication,
				Description: p.Description,
			})
		}
	}

	return out, nil
}

// Extract runs text extraction over the candidates and returns, in the
// original candidate order, those that yielded non-empty text. A candidate
// that cannot be extracted is logged and skipped; it never aborts the scan.
func (c *Corpus) Extract(ctx context.Context, extractor core.TextExtractor, candidates []Candidate, workers int) []Extracted {
	if workers < 1 {
		workers = 1
	}

	texts := make([]string, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, cand := range candidates {
		if cand.Path == "" {
			// External-URL publications carry no extractable file.
			continue
		}
		g.Go(func() error {
			text, err := extractor.ExtractText(gctx, cand.Path)
			if err != nil {
				log.Printf("Error reading PDF %s: %v", cand.Path, err)
				return nil
			}
			texts[i] = text
			return nil
		})
	}
	// Workers only ever return nil; the group is used for its limit.
	_ = g.Wait()

	var out []Extracted
	for i, cand := range candidates {
		if texts[i] == "" {
			continue
		}
		preview := core.TruncateRunes(texts[i], previewLen)
		out = append(out, Extracted{Candidate: cand, Preview: preview, FullText: texts[i]})
	}
	return out
}

func (c *Corpus) mediaURL(path string) string {
	return strings.TrimSuffix(c.mediaBaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}
