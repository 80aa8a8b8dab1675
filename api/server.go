package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/fabfab/heraklion-chatbot/chat"
	"github.com/fabfab/heraklion-chatbot/index"
)

const (
	livenessMessage = "Chatbot server running"

	msgNoQuestion      = "No question provided"
	msgProcessingError = "Error processing request"

	maxBodyBytes = 1 << 20
)

// Answerer is the part of chat.Service the HTTP layer depends on.
type Answerer interface {
	Answer(ctx context.Context, question string) (chat.Response, error)
}

// StateReporter exposes the index lifecycle for health checks.
type StateReporter interface {
	State() index.State
}

// Server exposes the question answering pipeline over HTTP.
type Server struct {
	answerer Answerer
	states   StateReporter
	logger   *zap.Logger
	handler  http.Handler
}

type healthResponse struct {
	Message string `json:"message"`
	State   string `json:"state,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

// New constructs a Server. states may be nil.
func New(answerer Answerer, states StateReporter, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		answerer: answerer,
		states:   states,
		logger:   logger,
	}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/ask", s.handleAsk)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/openapi.yaml", s.handleOpenAPI)
	return s.recoverPanics(s.logRequests(mux))
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "Not found"})
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.methodNotAllowed(w, http.MethodGet+", "+http.MethodHead)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, livenessMessage); err != nil {
		s.logger.Warn("write liveness message", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	resp := healthResponse{Message: "ok"}
	if s.states != nil {
		resp.State = s.states.State().String()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	w.Header().Set("Content-Type", "text/yaml; charset=utf-8")
	w.Header().Set("Content-Disposition", "inline; filename=\"openapi.yaml\"")
	_, _ = w.Write(openAPISpecYAML)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, msgNoQuestion, fmt.Errorf("decode request: %w", err))
		return
	}

	// Question validation belongs to the service; it reports ErrInvalidInput.
	resp, err := s.answerer.Answer(r.Context(), req.Question)
	if err != nil {
		if errors.Is(err, chat.ErrInvalidInput) {
			s.writeError(w, http.StatusBadRequest, msgNoQuestion, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, msgProcessingError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, askResponse{Answer: resp.Answer})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	s.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode response", zap.Error(err))
	}
}

// writeError logs err in full and sends only the public message.
func (s *Server) writeError(w http.ResponseWriter, status int, public string, err error) {
	fields := []zap.Field{zap.Int("status", status), zap.Error(err)}
	var perr *chat.ProcessingError
	if errors.As(err, &perr) {
		fields = append(fields, zap.String("kind", string(perr.Kind)))
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("api error", fields...)
	} else {
		s.logger.Info("api error", fields...)
	}
	s.writeJSON(w, status, errorResponse{Error: public})
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}

	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}

	return nil
}
