package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"salesbridge/internal/constants"
	"salesbridge/internal/database"
	apperrors "salesbridge/internal/errors"
	"salesbridge/internal/middleware"
	"salesbridge/internal/models"
	"salesbridge/internal/service"
	"salesbridge/internal/tracing"
	"salesbridge/internal/validation"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const defaultConversationPageSize = 50

type Server struct {
	cfg       *models.Config
	router    *mux.Router
	logger    *logrus.Logger
	pipeline  *service.Pipeline
	payments  *service.PaymentProcessor
	tracker   *service.Tracker
	store     *database.Database
	server    *http.Server
	startTime time.Time

	// baseCtx seeds every request context, carrying process-wide values
	// like the verbose logging flag.
	baseCtx context.Context
}

func NewServer(cfg *models.Config, pipeline *service.Pipeline, payments *service.PaymentProcessor, tracker *service.Tracker, store *database.Database, logger *logrus.Logger) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		router:    mux.NewRouter(),
		logger:    logger,
		pipeline:  pipeline,
		payments:  payments,
		tracker:   tracker,
		store:     store,
		startTime: time.Now(),
		baseCtx:   context.Background(),
	}

	if err := s.setupRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) setupRoutes() error {
	s.router.Use(middleware.ObservabilityMiddleware(s.logger))

	if s.cfg.LogLevel == "debug" {
		s.router.Use(middleware.DetailedLoggingMiddleware(s.logger, middleware.DefaultDetailedLoggingConfig()))
	}

	if s.cfg.RateLimit.Enabled {
		limiter, err := middleware.NewRateLimiter(
			s.cfg.RateLimit.RedisURL,
			s.cfg.RateLimit.WindowSec,
			s.cfg.RateLimit.Max,
			s.logger,
		)
		if err != nil {
			return fmt.Errorf("failed to build rate limiter: %w", err)
		}
		s.router.Use(limiter.Middleware)
	}

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	whatsappHook := s.router.PathPrefix("/webhook").Subrouter()
	whatsappHook.Use(middleware.WebhookObservabilityMiddleware(s.logger, "whatsapp"))
	whatsappHook.HandleFunc("", s.handleWebhookVerify()).Methods(http.MethodGet)
	whatsappHook.HandleFunc("", s.handleWhatsAppWebhook()).Methods(http.MethodPost)

	asaasHook := s.router.PathPrefix("/webhooks/asaas").Subrouter()
	asaasHook.Use(middleware.WebhookObservabilityMiddleware(s.logger, "asaas"))
	asaasHook.HandleFunc("", s.handleAsaasWebhook()).Methods(http.MethodPost)

	ops := s.router.PathPrefix("/conversations").Subrouter()
	ops.HandleFunc("", s.handleListConversations()).Methods(http.MethodGet)
	ops.HandleFunc("/{phone}/messages", s.handleConversationMessages()).Methods(http.MethodGet)
	ops.HandleFunc("/{phone}/close", s.handleConversationStatus(models.ConversationStatusClosed)).Methods(http.MethodPost)
	ops.HandleFunc("/{phone}/archive", s.handleConversationStatus(models.ConversationStatusArchived)).Methods(http.MethodPost)

	s.router.HandleFunc("/messages/{id}/statuses", s.handleMessageStatuses()).Methods(http.MethodGet)

	return nil
}

func (s *Server) Start() error {
	port := s.cfg.Server.Port
	if port == 0 {
		port = constants.DefaultServerPort
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  constants.DefaultServerReadTimeoutSec * time.Second,
		WriteTimeout: constants.DefaultServerWriteTimeoutSec * time.Second,
		IdleTimeout:  constants.DefaultServerIdleTimeoutSec * time.Second,
		BaseContext:  func(net.Listener) context.Context { return s.baseCtx },
	}

	s.logger.Infof("Starting server on port %d", port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"uptime":    time.Since(s.startTime).String(),
		}, s.logger)
	}
}

// handleWebhookVerify answers the Cloud API verification handshake:
// the challenge is echoed back verbatim when the token matches.
func (s *Server) handleWebhookVerify() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		mode := q.Get("hub.mode")
		token := q.Get("hub.verify_token")
		challenge := q.Get("hub.challenge")

		if mode != "subscribe" || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.WhatsApp.VerifyToken)) != 1 {
			s.logger.WithField("mode", mode).Warn("Webhook verification rejected")
			w.WriteHeader(http.StatusForbidden)
			return
		}

		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(challenge)); err != nil {
			s.logger.WithError(err).Error("Failed to write verification challenge")
		}
	}
}

// handleWhatsAppWebhook acknowledges before processing: once the
// payload parses, the sender gets its 200 and everything else happens
// on the dispatcher. Cloud API retries whole envelopes on non-2xx, so
// a processing failure must never surface here.
func (s *Server) handleWhatsAppWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := validation.ValidateHTTPRequestSize(r, constants.MaxWebhookPayloadBytes); err != nil {
			s.writeError(w, r, err)
			return
		}

		var payload models.WhatsAppWebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			s.logger.WithError(err).Warn("Malformed webhook payload")
			s.writeError(w, r, apperrors.NewValidationError("payload", "", err.Error()))
			return
		}

		if err := s.pipeline.HandleWhatsAppWebhook(r.Context(), &payload); err != nil {
			s.logger.WithError(err).Error("Failed to accept webhook")
		}

		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) handleAsaasWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("asaas-access-token")
		expected := s.cfg.Asaas.WebhookToken
		if expected == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			s.logger.Warn("Asaas webhook rejected: bad access token")
			s.writeError(w, r, apperrors.NewAuthError("invalid asaas access token"))
			return
		}

		if err := validation.ValidateHTTPRequestSize(r, constants.MaxWebhookPayloadBytes); err != nil {
			s.writeError(w, r, err)
			return
		}

		var payload models.AsaasWebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			s.logger.WithError(err).Warn("Malformed Asaas payload")
			s.writeError(w, r, apperrors.NewValidationError("payload", "", err.Error()))
			return
		}

		if err := s.payments.HandleAsaasWebhook(r.Context(), &payload); err != nil {
			s.logger.WithError(err).Error("Failed to process payment event")
		}

		// Asaas retries on non-2xx; the event is recorded either way.
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) handleListConversations() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		status := models.ConversationStatus(q.Get("status"))
		limit := queryInt(q.Get("limit"), defaultConversationPageSize)
		offset := queryInt(q.Get("offset"), 0)

		conversations, err := s.tracker.List(r.Context(), status, limit, offset)
		if err != nil {
			s.writeError(w, r, apperrors.NewDatabaseError("list conversations", err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"conversations": conversations,
			"count":         len(conversations),
		}, s.logger)
	}
}

func (s *Server) handleConversationMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		phone := mux.Vars(r)["phone"]
		if err := validation.ValidatePhoneNumber(phone); err != nil {
			s.writeError(w, r, apperrors.NewValidationError("phone", phone, err.Error()))
			return
		}
		limit := queryInt(r.URL.Query().Get("limit"), constants.DefaultHistoryLimit)

		messages, err := s.store.GetRecentMessages(r.Context(), phone, limit)
		if err != nil {
			s.writeError(w, r, apperrors.NewDatabaseError("get messages", err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"messages": messages,
			"count":    len(messages),
		}, s.logger)
	}
}

// handleMessageStatuses returns the delivery timeline for one message,
// ordered by the provider's timestamps rather than arrival order.
func (s *Server) handleMessageStatuses() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if err := validation.ValidateMessageID(id); err != nil {
			s.writeError(w, r, apperrors.NewValidationError("id", "", err.Error()))
			return
		}

		msg, err := s.store.GetMessageByProviderID(r.Context(), id)
		if err != nil {
			s.writeError(w, r, apperrors.NewDatabaseError("get message", err))
			return
		}
		if msg == nil {
			s.writeError(w, r, apperrors.NewNotFoundError("message", service.SanitizeMessageID(id)))
			return
		}

		statuses, err := s.store.GetMessageStatuses(r.Context(), id)
		if err != nil {
			s.writeError(w, r, apperrors.NewDatabaseError("get message statuses", err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message":  msg,
			"statuses": statuses,
			"count":    len(statuses),
		}, s.logger)
	}
}

func (s *Server) handleConversationStatus(status models.ConversationStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		phone := mux.Vars(r)["phone"]
		if err := validation.ValidatePhoneNumber(phone); err != nil {
			s.writeError(w, r, apperrors.NewValidationError("phone", phone, err.Error()))
			return
		}

		var err error
		if status == models.ConversationStatusArchived {
			err = s.tracker.Archive(r.Context(), phone)
		} else {
			err = s.tracker.Close(r.Context(), phone)
		}
		if err != nil {
			s.writeError(w, r, apperrors.NewDatabaseError("set conversation status", err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": status,
		}, s.logger)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := tracing.GetRequestInfo(r.Context()).RequestID
	s.logger.WithFields(apperrors.LogFields(err)).WithField("request_id", requestID).Warn("Request rejected")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperrors.HTTPStatusCode(err))
	if encodeErr := json.NewEncoder(w).Encode(apperrors.ToHTTPResponse(err, requestID)); encodeErr != nil {
		s.logger.WithError(encodeErr).Error("Failed to write error response")
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}, logger *logrus.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithError(err).Error("Failed to write response")
	}
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
