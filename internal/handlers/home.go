package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/vraagmijnoverheid/woo-web/internal/models"
)

type homePageData struct {
	SEO      models.SEO
	Message  string
	Error    string
	Receipts []models.Receipt
}

const recentReceipts = 5

// HandleHome renders the landing page with the question box and the most recent submitted requests.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	m.renderHome(w, r, http.StatusOK, homePageData{})
}

// HandleStart starts a conversation with the first message of the landing page and redirects to the
// request view of the new conversation.
func (m Main) HandleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	msg := strings.TrimSpace(r.FormValue("message"))
	if msg == "" {
		m.renderHome(w, r, http.StatusBadRequest, homePageData{Error: "Vul eerst uw vraag in."})
		return
	}

	res, err := m.backend.SendMessage(r.Context(), 0, msg)
	if err != nil {
		m.logger.Error("Failed to start conversation", slog.String(errLoggerKey, err.Error()))
		m.renderHome(w, r, http.StatusBadGateway, homePageData{
			Message: msg,
			Error:   "Uw vraag kon niet worden verstuurd. Probeer het opnieuw.",
		})
		return
	}

	q := url.Values{}
	q.Set("chatId", fmt.Sprint(res.ConversationID))
	if res.RequestID != 0 {
		q.Set("wooRequestId", fmt.Sprint(res.RequestID))
	}
	http.Redirect(w, r, "/request?"+q.Encode(), http.StatusSeeOther)
}

func (m Main) renderHome(w http.ResponseWriter, r *http.Request, status int, data homePageData) {
	receipts, err := m.store.Receipts(r.Context())
	if err != nil {
		m.logger.Error("Failed to list receipts", slog.String(errLoggerKey, err.Error()))
	}
	data.Receipts = receipts[:min(len(receipts), recentReceipts)]
	data.SEO = m.seo(r, "", "/")
	m.renderPage(w, status, "home.html", data)
}
