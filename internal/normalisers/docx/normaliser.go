// Package docx extracts the text of Word documents. Paragraphs become blank
// line separated blocks so sentence segmentation sees their boundaries.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/normalisers/plaintext"
)

var _ driven.Normaliser = (*Normaliser)(nil)

const (
	bodyPart = "word/document.xml"
	corePart = "docProps/core.xml"
)

type Normaliser struct{}

func New() *Normaliser { return &Normaliser{} }

func (n *Normaliser) Extensions() []string { return []string{".docx"} }

func (n *Normaliser) Priority() int { return 50 }

func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	archive, err := zip.NewReader(bytes.NewReader(raw.Content), int64(len(raw.Content)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a docx archive: %v", domain.ErrInvalidInput, err)
	}

	body, err := readPart(archive, bodyPart)
	if err != nil {
		return nil, err
	}
	text, err := bodyText(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, bodyPart, err)
	}

	res := &driven.NormaliseResult{
		Type:     domain.DocumentTypeText,
		Content:  plaintext.Clean(text),
		Metadata: map[string]any{"format": "docx"},
	}
	// Document properties are optional.
	if core, err := readPart(archive, corePart); err == nil {
		props := coreProperties(core)
		res.Title = props.Title
		if props.Creator != "" {
			res.Metadata["author"] = props.Creator
		}
	}
	return res, nil
}

func readPart(archive *zip.Reader, name string) ([]byte, error) {
	f, err := archive.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: missing %s", domain.ErrInvalidInput, name)
	}
	defer f.Close()
	return io.ReadAll(f)
}

// bodyText walks WordprocessingML: w:t carries text, w:tab and w:br are
// inline breaks and each w:p closes a paragraph. Table cells are paragraphs
// too, so their text is kept.
func bodyText(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		out    strings.Builder
		para   strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				para.WriteByte('\t')
			case "br", "cr":
				para.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if s := strings.TrimSpace(para.String()); s != "" {
					out.WriteString(s)
					out.WriteString("\n\n")
				}
				para.Reset()
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	return out.String(), nil
}

type properties struct {
	Title   string `xml:"title"`
	Creator string `xml:"creator"`
}

func coreProperties(data []byte) properties {
	var p properties
	if err := xml.Unmarshal(data, &p); err != nil {
		return properties{}
	}
	p.Title = strings.TrimSpace(p.Title)
	p.Creator = strings.TrimSpace(p.Creator)
	return p
}
