package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// maxQuestionLength bounds request bodies; documentation questions are
// short, anything larger is abuse.
const maxQuestionLength = 4096

// askRequest is the payload for POST /api/ask.
type askRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"sessionId"` // optional: empty starts a new session
}

// askResponse is the reply for POST /api/ask.
type askResponse struct {
	Answer    string `json:"answer"`
	SessionID string `json:"sessionId"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQuestionLength)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeError(w, http.StatusBadRequest, "question must not be empty")
		return
	}

	sessionID := uuid.New()
	if req.SessionID != "" {
		parsed, err := uuid.Parse(req.SessionID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid session id")
			return
		}
		sessionID = parsed
	}

	turn, err := s.answerer.Answer(r.Context(), sessionID, question)
	if err != nil {
		s.logger.Error("failed to answer question", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to answer question")
		return
	}

	writeJSON(w, http.StatusOK, askResponse{
		Answer:    turn.Content,
		SessionID: sessionID.String(),
	})
}

// syncResponse is the reply for POST /api/sync.
type syncResponse struct {
	FilesAdded       int    `json:"filesAdded"`
	FilesFailed      int    `json:"filesFailed"`
	ChunksCreated    int    `json:"chunksCreated"`
	ChunksUnembedded int    `json:"chunksUnembedded"`
	Duration         string `json:"duration"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.syncer == nil {
		writeError(w, http.StatusNotImplemented, "no documentation source configured")
		return
	}

	result, err := s.syncer.Sync(r.Context())
	if err != nil {
		s.logger.Error("sync failed", "error", err)
		writeError(w, http.StatusInternalServerError, "sync failed")
		return
	}

	writeJSON(w, http.StatusOK, syncResponse{
		FilesAdded:       result.FilesAdded,
		FilesFailed:      result.FilesFailed,
		ChunksCreated:    result.ChunksCreated,
		ChunksUnembedded: result.ChunksUnembedded,
		Duration:         result.Duration.String(),
	})
}
