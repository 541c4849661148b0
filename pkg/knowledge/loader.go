package knowledge

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Loader fetches corpus documents and extracts their plain text.
type Loader struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// NewLoader creates a document loader.
func NewLoader(logger *zap.Logger) *Loader {
	return &Loader{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// LoadWebsite fetches a web page and returns its visible text.
func (l *Loader) LoadWebsite(websiteURL string) (string, error) {
	resp, err := l.httpClient.Get(websiteURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", websiteURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch %s: status %d", websiteURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	text, err := extractHTMLText(body)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	l.logger.Info("Loaded website content",
		zap.String("url", websiteURL),
		zap.Int("bytes", len(text)),
	)
	return text, nil
}

// LoadPath extracts text from a local file or every supported file in a
// directory. Supported formats: .txt, .md, .pdf.
func (l *Loader) LoadPath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("corpus path not accessible: %w", err)
	}

	if !info.IsDir() {
		return l.extractFile(path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return "", fmt.Errorf("failed to read corpus directory: %w", err)
	}

	var texts []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		text, err := l.extractFile(filepath.Join(path, entry.Name()))
		if err != nil {
			l.logger.Warn("Skipping corpus file",
				zap.String("file", entry.Name()),
				zap.Error(err),
			)
			continue
		}
		if text != "" {
			texts = append(texts, text)
		}
	}

	if len(texts) == 0 {
		return "", fmt.Errorf("no text extracted from any file in %s", path)
	}

	return strings.Join(texts, "\n\n"), nil
}

func (l *Loader) extractFile(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		return string(data), nil
	case ".pdf":
		return extractPDFText(path)
	default:
		return "", fmt.Errorf("unsupported file format: %s", filepath.Ext(path))
	}
}

// extractHTMLText walks the parsed document collecting text nodes, skipping
// script and style subtrees.
func extractHTMLText(body []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				sb.WriteString(text)
				sb.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return sb.String(), nil
}

func extractPDFText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to extract page %d: %w", pageNum, err)
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	return sb.String(), nil
}
