package server

import (
	"net/http"
	"strconv"
	"time"

	"dashchat/internal/auth"
	"dashchat/internal/constants"
	apperrors "dashchat/internal/errors"
	"dashchat/internal/httputil"
	"dashchat/internal/models"
	"dashchat/internal/service"
	"dashchat/internal/tracing"

	"github.com/coder/websocket"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// multipartMemoryBytes is how much of an upload is kept in memory before
// spilling to temporary files.
const multipartMemoryBytes = 8 << 20

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := tracing.GetRequestID(r.Context())
	if apperrors.HTTPStatusCode(err) >= http.StatusInternalServerError {
		s.logger.WithFields(logrus.Fields{
			service.LogFieldRequestID: requestID,
			service.LogFieldURL:       r.URL.Path,
			service.LogFieldMethod:    r.Method,
		}).WithError(err).Error("Request failed")
	}
	httputil.WriteError(w, err, requestID)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	if err := httputil.WriteJSON(w, status, v); err != nil {
		s.logger.WithField(service.LogFieldRequestID, tracing.GetRequestID(r.Context())).
			WithError(err).Debug("Failed to write response")
	}
}

func (s *Server) handleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.LoginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		resp, err := s.auth.Login(r.Context(), req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, r, http.StatusOK, resp)
	}
}

func (s *Server) handleListCompanies() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companies, err := s.db.ListCompanies(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if companies == nil {
			companies = []models.Company{}
		}
		s.writeJSON(w, r, http.StatusOK, companies)
	}
}

func (s *Server) handleListUsers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := s.db.ListUsers(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if users == nil {
			users = []models.User{}
		}
		s.writeJSON(w, r, http.StatusOK, users)
	}
}

func (s *Server) handleListMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := auth.IdentityFromContext(r.Context())
		query := r.URL.Query()

		limit := 0
		if raw := query.Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				s.writeError(w, r, apperrors.NewValidationError("limit", raw, "must be a non-negative integer"))
				return
			}
			limit = n
		}

		messages, err := s.messages.List(r.Context(), identity.UserID, query.Get("withUser"), limit)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if messages == nil {
			messages = []models.Message{}
		}
		s.writeJSON(w, r, http.StatusOK, messages)
	}
}

func (s *Server) handleSendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := auth.IdentityFromContext(r.Context())

		var req models.SendMessageRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		msg, err := s.messages.Send(r.Context(), identity.UserID, req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		s.hub.Deliver(r.Context(), msg)
		s.writeJSON(w, r, http.StatusCreated, msg)
	}
}

func (s *Server) handleUpdateStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := auth.IdentityFromContext(r.Context())
		id := mux.Vars(r)["id"]

		var req models.StatusUpdateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		msg, err := s.messages.UpdateStatus(r.Context(), identity.UserID, id, req.Status)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		s.hub.NotifyStatus(msg)
		s.writeJSON(w, r, http.StatusOK, service.ViewFor(*msg, identity.UserID))
	}
}

func (s *Server) handleMarkRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := auth.IdentityFromContext(r.Context())

		var req models.MarkReadRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		updated, err := s.messages.MarkRead(r.Context(), identity.UserID, req.WithUser)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, r, http.StatusOK, models.MarkReadResponse{Updated: updated})
	}
}

func (s *Server) handleListDocuments() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := s.documents.List(r.Context(), mux.Vars(r)["taskId"])
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if docs == nil {
			docs = []models.TaskDocument{}
		}
		s.writeJSON(w, r, http.StatusOK, docs)
	}
}

func (s *Server) handleUploadDocument() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := auth.IdentityFromContext(r.Context())

		// room for the multipart envelope and the description field
		r.Body = http.MaxBytesReader(w, r.Body, s.documents.MaxSizeBytes()+constants.MaxRequestBodyBytes)
		if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
			s.writeError(w, r, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "invalid multipart upload").
				WithUserMessage("Upload must be a multipart form with a file field no larger than the size limit"))
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		file, header, err := r.FormFile("file")
		if err != nil {
			s.writeError(w, r, apperrors.NewValidationError("file", "", "file is required"))
			return
		}
		defer file.Close()

		doc, err := s.documents.Upload(r.Context(), service.DocumentUpload{
			TaskID:      mux.Vars(r)["taskId"],
			UploaderID:  identity.UserID,
			Filename:    header.Filename,
			MimeType:    header.Header.Get("Content-Type"),
			Size:        header.Size,
			Description: r.FormValue("description"),
			Body:        file,
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, r, http.StatusCreated, doc)
	}
}

// handleLive upgrades to the live channel. Browsers cannot set headers on a
// websocket handshake, so the token may also come from the token query parameter.
func (s *Server) handleLive() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := httputil.BearerToken(r)
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			s.writeError(w, r, apperrors.NewAuthError("missing bearer token"))
			return
		}
		identity, err := s.tokens.Verify(token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		// the hijacked connection keeps the server's deadlines otherwise
		rc := http.NewResponseController(w)
		_ = rc.SetReadDeadline(time.Time{})
		_ = rc.SetWriteDeadline(time.Time{})

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			s.logger.WithError(err).WithField(service.LogFieldRemoteIP, httputil.GetClientIP(r)).
				Warn("Failed to accept live channel connection")
			return
		}

		s.logger.WithFields(service.LogFields(r.Context(), logrus.Fields{
			service.LogFieldUserID:   identity.UserID,
			service.LogFieldRemoteIP: httputil.GetClientIP(r),
		})).Info("Live channel connected")

		s.hub.Serve(r.Context(), conn, identity)
	}
}
