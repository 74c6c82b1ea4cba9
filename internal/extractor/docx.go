package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// extractDOCX pulls paragraph and table text out of the WordprocessingML
// document part. Paragraph text is emitted line by line; table rows are
// joined cell-by-cell with " | " so tabular structure survives as text.
func extractDOCX(content []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w", err)
	}

	var document *zip.File
	for _, f := range archive.File {
		if f.Name == "word/document.xml" {
			document = f
			break
		}
	}
	if document == nil {
		return "", fmt.Errorf("docx archive has no word/document.xml")
	}

	rc, err := document.Open()
	if err != nil {
		return "", fmt.Errorf("open document part: %w", err)
	}
	defer rc.Close()

	return walkDocumentXML(rc)
}

// walkDocumentXML streams the document tokens, collecting paragraph runs and
// table cells. Paragraphs nested inside table cells feed the cell, not the
// paragraph list, so table content is not duplicated.
func walkDocumentXML(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var (
		parts     []string
		rowCells  []string
		cellText  strings.Builder
		paraText  strings.Builder
		cellDepth int
		inText    bool
	)

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("decode document xml: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tc":
				cellDepth++
			case "t":
				inText = true
			case "tab":
				if cellDepth > 0 {
					cellText.WriteByte(' ')
				} else {
					paraText.WriteByte(' ')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if cellDepth > 0 {
					cellText.WriteByte(' ')
				} else if text := strings.TrimSpace(paraText.String()); text != "" {
					parts = append(parts, text)
				}
				paraText.Reset()
			case "tc":
				cellDepth--
				if cellDepth == 0 {
					if text := strings.TrimSpace(cellText.String()); text != "" {
						rowCells = append(rowCells, text)
					}
					cellText.Reset()
				}
			case "tr":
				if len(rowCells) > 0 {
					parts = append(parts, strings.Join(rowCells, " | "))
				}
				rowCells = nil
			}
		case xml.CharData:
			if inText {
				if cellDepth > 0 {
					cellText.Write(t)
				} else {
					paraText.Write(t)
				}
			}
		}
	}

	return strings.Join(parts, "\n"), nil
}
