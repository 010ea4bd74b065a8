package http

import (
	"encoding/json"
	"log"
	"net/http"

	"quiz-session-service/internal/app"
)

// ResultHandler serves the recorded result of a completed session.
type ResultHandler struct {
	service *app.QuizService
}

func NewResultHandler(service *app.QuizService) *ResultHandler {
	return &ResultHandler{service: service}
}

// ServeResult answers GET /result?quizId=&userId= with 404 until a result exists.
func (h *ResultHandler) ServeResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	quizID := r.URL.Query().Get("quizId")
	userID := r.URL.Query().Get("userId")
	if quizID == "" || userID == "" {
		http.Error(w, "missing quizId or userId", http.StatusBadRequest)
		return
	}

	result, err := h.service.Result(r.Context(), quizID, userID)
	if err != nil {
		log.Printf("load result %s/%s: %v", userID, quizID, err)
		http.Error(w, "result unavailable", http.StatusServiceUnavailable)
		return
	}
	if result == nil {
		http.Error(w, "no result recorded", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		log.Printf("write result: %v", err)
	}
}
