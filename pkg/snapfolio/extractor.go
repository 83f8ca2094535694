package snapfolio

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Document is one uploaded statement file.
type Document struct {
	FileName    string
	ContentType string
	Data        []byte
	UploadedAt  time.Time
}

// ParsedDocument is the raw output of a DocumentParser for one document.
type ParsedDocument struct {
	Assets        []RawAsset
	StatementDate *DateGuess
}

// DocumentParser extracts raw asset records from a statement document.
// Actual text/field extraction is a collaborator concern; implementations
// range from the built-in CSV parser to external OCR services.
type DocumentParser interface {
	ParseDocument(ctx context.Context, doc Document) (*ParsedDocument, error)
}

// ProgressFunc receives advisory extraction progress (current of total files).
type ProgressFunc func(current, total int)

// ExtractionResult is the per-document extraction outcome.
type ExtractionResult struct {
	FileName  string
	Success   bool
	Assets    []RawAsset
	DateGuess *DateGuess
	Err       error
}

// extractDocuments runs the parser over each document sequentially.
// A single document failing does not fail the batch; the batch fails only
// when zero documents succeed.
func (c *Core) extractDocuments(ctx context.Context, docs []Document, onProgress ProgressFunc) ([]ExtractionResult, error) {
	if len(docs) == 0 {
		return nil, NewError(ErrCodeValidation, "no documents provided")
	}
	if len(docs) > c.pipeline.MaxDocuments {
		return nil, NewError(ErrCodeValidation,
			fmt.Sprintf("too many documents: %d (max %d)", len(docs), c.pipeline.MaxDocuments))
	}

	results := make([]ExtractionResult, 0, len(docs))
	successes := 0
	for i, doc := range docs {
		result := c.extractOne(ctx, doc)
		if result.Success {
			successes++
		}
		results = append(results, result)

		c.logger.Debug("document extracted",
			"file", doc.FileName,
			"success", result.Success,
			"assets", len(result.Assets),
			"progress", fmt.Sprintf("%d/%d", i+1, len(docs)))
		if onProgress != nil {
			onProgress(i+1, len(docs))
		}
	}

	if successes == 0 {
		var reasons []string
		for _, r := range results {
			if r.Err != nil {
				reasons = append(reasons, fmt.Sprintf("%s: %v", r.FileName, r.Err))
			}
		}
		return results, NewError(ErrCodeFatal,
			"all documents failed extraction: "+strings.Join(reasons, "; "))
	}
	return results, nil
}

func (c *Core) extractOne(ctx context.Context, doc Document) ExtractionResult {
	result := ExtractionResult{FileName: doc.FileName}

	parsed, err := c.parser.ParseDocument(ctx, doc)
	if err != nil {
		result.Err = err
		return result
	}

	assets := make([]RawAsset, 0, len(parsed.Assets))
	for _, a := range parsed.Assets {
		a.Name = strings.TrimSpace(a.Name)
		if a.Name == "" {
			continue
		}
		if a.CurrentValue.IsNegative() {
			continue
		}
		a.SourceFile = doc.FileName
		assets = append(assets, a)
	}
	if len(assets) == 0 {
		result.Err = fmt.Errorf("no assets found in document")
		return result
	}

	result.Success = true
	result.Assets = assets
	result.DateGuess = resolveDateGuess(parsed.StatementDate, doc)
	return result
}

// resolveDateGuess picks the best available statement date for a document:
// parser-extracted content date, then a date embedded in the file name,
// then the upload timestamp.
func resolveDateGuess(fromParser *DateGuess, doc Document) *DateGuess {
	if fromParser != nil && fromParser.Date != "" {
		guess := *fromParser
		if _, err := parseISODate(guess.Date); err != nil {
			return resolveDateGuess(nil, doc)
		}
		if guess.Confidence == "" {
			guess.Confidence = DateConfidenceHigh
		}
		if guess.Source == "" {
			guess.Source = DateSourceDocument
		}
		return &guess
	}

	if date := dateFromFileName(doc.FileName); date != "" {
		return &DateGuess{Date: date, Confidence: DateConfidenceMedium, Source: DateSourceFilename}
	}

	if !doc.UploadedAt.IsZero() {
		return &DateGuess{
			Date:       doc.UploadedAt.Format(isoDate),
			Confidence: DateConfidenceLow,
			Source:     DateSourceUploadTime,
		}
	}
	return nil
}

var fileNameDatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`),
	regexp.MustCompile(`(\d{4})_(\d{2})_(\d{2})`),
	regexp.MustCompile(`(\d{4})(\d{2})(\d{2})`),
}

func dateFromFileName(name string) string {
	for _, pattern := range fileNameDatePatterns {
		m := pattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		candidate := fmt.Sprintf("%s-%s-%s", m[1], m[2], m[3])
		if _, err := parseISODate(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
