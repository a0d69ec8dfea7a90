package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/vraagmijnoverheid/woo-web/internal/models"
)

// DocumentReader extracts page text from the source PDFs answers cite. It only downloads from the hosts
// it was created with, redirects included.
type DocumentReader struct {
	client *http.Client
	hosts  map[string]struct{}
}

var (
	// ErrPageOutOfRange is returned when the requested page does not exist in the document.
	ErrPageOutOfRange = errors.New("page out of range")
	// ErrHostNotAllowed is returned for documents outside the allowed hosts.
	ErrHostNotAllowed = errors.New("document host not allowed")
)

const maxDocumentSize = 64 << 20

// NewDocumentReader creates a reader that downloads documents with client from hosts. A host entry is a
// hostname, which allows any port, or a host:port pair. A nil client uses http.DefaultClient.
func NewDocumentReader(client *http.Client, hosts []string) DocumentReader {
	if client == nil {
		client = http.DefaultClient
	}
	d := DocumentReader{hosts: make(map[string]struct{}, len(hosts))}
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			d.hosts[h] = struct{}{}
		}
	}

	c := *client
	next := client.CheckRedirect
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if err := d.Allowed(req.URL); err != nil {
			return err
		}
		if next != nil {
			return next(req, via)
		}
		if len(via) >= 10 {
			return errors.New("stopped after 10 redirects")
		}
		return nil
	}
	d.client = &c
	return d
}

// Allowed reports whether documents may be downloaded from u.
func (d DocumentReader) Allowed(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrHostNotAllowed, u.Scheme)
	}
	host := strings.ToLower(u.Host)
	if _, ok := d.hosts[host]; ok {
		return nil
	}
	if _, ok := d.hosts[strings.ToLower(u.Hostname())]; ok {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrHostNotAllowed, u.Host)
}

// Page downloads the document at rawURL and returns the plain text of page, counting from 1.
func (d DocumentReader) Page(ctx context.Context, rawURL string, page int) (models.DocumentPage, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return models.DocumentPage{}, fmt.Errorf("%w: %w", ErrHostNotAllowed, err)
	}
	if err := d.Allowed(u); err != nil {
		return models.DocumentPage{}, err
	}

	data, err := d.download(ctx, rawURL)
	if err != nil {
		return models.DocumentPage{}, err
	}

	text, count, err := PageText(data, page)
	if err != nil {
		return models.DocumentPage{}, fmt.Errorf("failed to read %s: %w", rawURL, err)
	}
	return models.DocumentPage{URL: rawURL, Page: page, PageCount: count, Text: text}, nil
}

// PageText returns the plain text of one page of a PDF and the number of pages in it.
func PageText(data []byte, page int) (string, int, error) {
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}

	count := doc.NumPage()
	if page < 1 || page > count {
		return "", count, fmt.Errorf("page %d of %d: %w", page, count, ErrPageOutOfRange)
	}

	p := doc.Page(page)
	if p.V.IsNull() {
		return "", count, nil
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		return "", count, fmt.Errorf("extract pdf text: %w", err)
	}
	return strings.TrimSpace(text), count, nil
}

func (d DocumentReader) download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "document unavailable"}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rawURL, err)
	}
	return data, nil
}
