package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vraagmijnoverheid/woo-web/internal/models"
)

type finalizePageData struct {
	SEO       models.SEO
	ViewID    string
	ChatID    int
	RequestID int
	Email     string
	Error     string
	Questions []question
}

type completedPageData struct {
	SEO       models.SEO
	RequestID int
	Receipt   *models.Receipt
}

type statusPageData struct {
	SEO       models.SEO
	RequestID int
	Receipt   *models.Receipt
	Steps     []models.Step
}

// errMissingRequest is reported for a status update without a valid request_id.
var errMissingRequest = errors.New("request id is required")

// HandleFinalize shows the letter with the questions of a conversation on GET and submits the request
// on POST.
func (m Main) HandleFinalize(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		m.showFinalize(w, r)
	case http.MethodPost:
		m.submitFinalize(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (m Main) showFinalize(w http.ResponseWriter, r *http.Request) {
	chatID := parseID(r.URL.Query().Get("chatId"))
	data := finalizePageData{ChatID: chatID, ViewID: r.URL.Query().Get("view_id")}
	data.SEO = m.seo(r, "Verzoek afronden", "/finalize")

	// Without a conversation the letter is shown empty.
	if chatID == 0 {
		m.renderPage(w, http.StatusOK, "finalize.html", data)
		return
	}

	status := http.StatusOK
	if err := m.loadLetter(r, &data); err != nil {
		m.logger.Error("Failed to load request letter",
			slog.Int("chatID", chatID),
			slog.String(errLoggerKey, err.Error()))
		data.Error = "Uw verzoek kon niet worden geladen. Probeer het opnieuw."
		status = http.StatusBadGateway
	}
	m.renderPage(w, status, "finalize.html", data)
}

func (m Main) submitFinalize(w http.ResponseWriter, r *http.Request) {
	data := finalizePageData{
		ChatID:    parseID(r.FormValue("chat_id")),
		RequestID: parseID(r.FormValue("request_id")),
		ViewID:    r.FormValue("view_id"),
		Email:     strings.TrimSpace(r.FormValue("email")),
	}
	data.SEO = m.seo(r, "Verzoek afronden", "/finalize")

	if data.RequestID == 0 {
		data.Error = "Er is geen verzoek om af te ronden."
		m.renderPage(w, http.StatusBadRequest, "finalize.html", data)
		return
	}

	if err := m.backend.FinalizeRequest(r.Context(), data.RequestID, data.Email); err != nil {
		m.logger.Error("Failed to finalize request",
			slog.Int("requestID", data.RequestID),
			slog.String(errLoggerKey, err.Error()))
		if data.ChatID != 0 {
			_ = m.loadLetter(r, &data)
		}
		data.Error = "Uw verzoek kon niet worden ingediend. Probeer het opnieuw."
		m.renderPage(w, http.StatusBadGateway, "finalize.html", data)
		return
	}

	receipt := models.Receipt{
		RequestID:      data.RequestID,
		ConversationID: data.ChatID,
		Email:          data.Email,
		SubmittedAt:    m.cfg.Now().UTC(),
		Step:           1,
	}
	if err := m.store.AddReceipt(r.Context(), receipt); err != nil {
		m.logger.Error("Failed to store receipt",
			slog.Int("requestID", data.RequestID),
			slog.String(errLoggerKey, err.Error()))
	}
	if v, ok := m.views.get(data.ViewID); ok {
		v.form.SetQuestions(nil)
	}

	http.Redirect(w, r, fmt.Sprintf("/completed-request?wooRequestId=%d", data.RequestID), http.StatusSeeOther)
}

// loadLetter fills the request id and questions of the conversation in data.
func (m Main) loadLetter(r *http.Request, data *finalizePageData) error {
	conv, err := m.backend.Conversation(r.Context(), data.ChatID)
	if err != nil {
		return err
	}
	if data.RequestID == 0 {
		data.RequestID = conv.Request.ID
	}
	data.Questions = questionViews(conv.Request.Questions)
	return nil
}

// HandleCompleted confirms a submitted request.
func (m Main) HandleCompleted(w http.ResponseWriter, r *http.Request) {
	requestID, receipt := m.receipt(r)
	m.renderPage(w, http.StatusOK, "completed.html", completedPageData{
		SEO:       m.seo(r, "Verzoek ingediend", "/completed-request"),
		RequestID: requestID,
		Receipt:   receipt,
	})
}

// HandleStatus shows the progress of a submitted request on GET. A POST records a new step for it.
func (m Main) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		m.updateStatus(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	requestID, receipt := m.receipt(r)
	step := 0
	if receipt != nil {
		step = receipt.Step
	}
	m.renderPage(w, http.StatusOK, "status.html", statusPageData{
		SEO:       m.seo(r, "Status van uw verzoek", "/status"),
		RequestID: requestID,
		Receipt:   receipt,
		Steps:     models.StatusProgress(models.StatusPageSteps, step),
	})
}

func (m Main) updateStatus(w http.ResponseWriter, r *http.Request) {
	requestID := parseID(r.FormValue("request_id"))
	if requestID == 0 {
		http.Error(w, errMissingRequest.Error(), http.StatusBadRequest)
		return
	}
	step := max(0, min(parseID(r.FormValue("step")), len(models.StatusPageSteps)-1))

	if err := m.store.UpdateReceiptStep(r.Context(), requestID, step); err != nil {
		m.logger.Error("Failed to update request step",
			slog.Int("requestID", requestID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, "Request not found", http.StatusNotFound)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/status?wooRequestId=%d", requestID), http.StatusSeeOther)
}

// receipt reads the wooRequestId query parameter and the stored receipt for it. A missing or malformed
// id gives 0. The receipt is nil when the request was not submitted through this server.
func (m Main) receipt(r *http.Request) (int, *models.Receipt) {
	requestID := parseID(r.URL.Query().Get("wooRequestId"))
	if requestID == 0 {
		return 0, nil
	}

	receipt, err := m.store.Receipt(r.Context(), requestID)
	if err != nil {
		m.logger.Debug("No receipt for request",
			slog.Int("requestID", requestID),
			slog.String(errLoggerKey, err.Error()))
		return requestID, nil
	}
	return requestID, &receipt
}
