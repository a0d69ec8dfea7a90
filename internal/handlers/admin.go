package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vraagmijnoverheid/woo-web/internal/models"
	"github.com/vraagmijnoverheid/woo-web/internal/services"
)

type adminPageData struct {
	SEO       models.SEO
	ChatID    int
	RequestID int
	Error     string
	Messages  []message
	Questions []question
	Receipts  []models.Receipt
	Steps     []string
}

type searchResult struct {
	Text        string
	Title       string
	URL         string
	Page        int
	DocumentURL string
}

type searchPageData struct {
	SEO       models.SEO
	Query     string
	NonPublic bool
	Error     string
	Results   []searchResult
}

type documentPageData struct {
	SEO      models.SEO
	Page     models.DocumentPage
	Previous string
	Next     string
}

// HandleAdmin renders the review screen of a conversation: its questions with answers and the cited
// sources, and the receipts of submitted requests.
func (m Main) HandleAdmin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data := adminPageData{
		SEO:    m.seo(r, "Beoordelen", "/admin"),
		ChatID: parseID(r.URL.Query().Get("chatId")),
		Steps:  models.StatusPageSteps,
	}
	status := http.StatusOK

	if data.ChatID != 0 {
		conv, err := m.backend.Conversation(r.Context(), data.ChatID)
		if err != nil {
			m.logger.Error("Failed to load conversation for review",
				slog.Int("chatID", data.ChatID),
				slog.String(errLoggerKey, err.Error()))
			data.Error = "Het gesprek kon niet worden geladen."
			status = http.StatusBadGateway
		} else {
			data.RequestID = conv.Request.ID
			data.Messages = messageViews(conv.Messages)
			data.Questions = questionViews(conv.Request.Questions)
		}
	}

	receipts, err := m.store.Receipts(r.Context())
	if err != nil {
		m.logger.Error("Failed to list receipts", slog.String(errLoggerKey, err.Error()))
	}
	data.Receipts = receipts

	m.renderPage(w, status, "admin.html", data)
}

// HandleSearch searches the backend's document index.
func (m Main) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data := searchPageData{
		SEO:       m.seo(r, "Documenten zoeken", "/search"),
		Query:     strings.TrimSpace(r.URL.Query().Get("q")),
		NonPublic: r.URL.Query().Get("non_public") != "",
	}
	status := http.StatusOK

	if data.Query != "" {
		results, err := m.backend.SearchDocuments(r.Context(), data.Query, data.NonPublic)
		if err != nil {
			m.logger.Error("Failed to search documents",
				slog.String("query", data.Query),
				slog.String(errLoggerKey, err.Error()))
			data.Error = "Zoeken is op dit moment niet beschikbaar."
			status = http.StatusBadGateway
		}
		for _, res := range results {
			data.Results = append(data.Results, searchResult{
				Text:        res.Text,
				Title:       res.Source.Title,
				URL:         res.Source.URL,
				Page:        res.Source.Page,
				DocumentURL: documentURL(res.Source.URL, res.Source.Page),
			})
		}
	}

	m.renderPage(w, status, "search.html", data)
}

// HandleDocument renders the text of one page of a cited source document.
func (m Main) HandleDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	source := r.URL.Query().Get("url")
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		http.Error(w, "A document url is required", http.StatusBadRequest)
		return
	}
	page := max(parseID(r.URL.Query().Get("page")), 1)

	doc, err := m.documents.Page(r.Context(), source, page)
	if err != nil {
		m.logger.Error("Failed to read document",
			slog.String("url", source),
			slog.Int("page", page),
			slog.String(errLoggerKey, err.Error()))
		if errors.Is(err, services.ErrPageOutOfRange) {
			http.Error(w, "Page not found", http.StatusNotFound)
			return
		}
		if errors.Is(err, services.ErrHostNotAllowed) {
			http.Error(w, "Document host not allowed", http.StatusForbidden)
			return
		}
		http.Error(w, "Document unavailable", http.StatusBadGateway)
		return
	}

	data := documentPageData{
		SEO:  m.seo(r, "Brondocument", "/document"),
		Page: doc,
	}
	if page > 1 {
		data.Previous = documentURL(source, page-1)
	}
	if page < doc.PageCount {
		data.Next = documentURL(source, page+1)
	}
	m.renderPage(w, http.StatusOK, "document.html", data)
}
