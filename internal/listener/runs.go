package listener

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ishandutta2007/taskt/internal/auth"
	"github.com/ishandutta2007/taskt/internal/automation"
	"github.com/ishandutta2007/taskt/internal/script"
)

// maxHistoryLimit caps the history page size.
const maxHistoryLimit = 500

// ─── Control envelope ───────────────────────────────────────────────────────

// handleControl serves the envelope contract. Credentials come from the
// usual headers or, failing those, the envelope's auth_token.
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	var env Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{
			Result: ResultError,
			Code:   ErrCodeBadRequest,
			Detail: "invalid JSON envelope",
		})
		return
	}

	var (
		p   *auth.Principal
		err error
	)
	if key, bearer := credentials(r); key != "" || bearer != "" {
		p, err = s.authn.Authenticate(key, bearer)
	} else {
		p, err = s.authn.AuthenticateToken(env.AuthToken)
	}
	if err != nil {
		status, code := classify(err)
		s.logger.Warn("control request not authenticated", "remote", r.RemoteAddr, "action", env.Action)
		writeJSON(w, status, Response{
			RequestID: env.RequestID,
			Result:    ResultError,
			Code:      code,
			Detail:    "authentication failed",
		})
		return
	}

	resp, err := s.controller.Handle(p, env)
	if err != nil {
		status, _ := classify(err)
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ─── Tokens ─────────────────────────────────────────────────────────────────

type tokenRequest struct {
	Key        string    `json:"key"`
	Subject    string    `json:"subject"`
	Role       auth.Role `json:"role"`
	TTLMinutes int       `json:"ttl_minutes"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Role      auth.Role `json:"role"`
}

// handleIssueToken exchanges the shared key for a signed bearer token.
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if !auth.KeyMatches(s.authn.Key(), req.Key) {
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid key")
		return
	}

	if req.Subject == "" {
		req.Subject = "client"
	}
	if req.Role == "" {
		req.Role = auth.RoleOperator
	}
	ttl := time.Duration(s.cfg.TokenTTL) * time.Minute
	if req.TTLMinutes > 0 {
		ttl = time.Duration(req.TTLMinutes) * time.Minute
	}

	token, expires, err := auth.IssueToken(req.Subject, req.Role, s.authn.Key(), ttl)
	if err != nil {
		if errors.Is(err, auth.ErrForbidden) {
			writeBadRequest(w, err.Error())
			return
		}
		writeErr(w, err)
		return
	}

	s.logger.Info("listener token issued", "subject", req.Subject, "role", req.Role, "expires_at", expires)
	writeJSON(w, http.StatusCreated, tokenResponse{Token: token, ExpiresAt: expires, Role: req.Role})
}

// ─── Runs ───────────────────────────────────────────────────────────────────

func (s *Server) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	runs := s.manager.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"runs":   runs,
		"count":  len(runs),
		"active": s.manager.Active(),
	})
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var payload StartPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	e, err := s.controller.Start(payload)
	if err != nil {
		if problems := validationDetails(err); problems != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"status":   http.StatusUnprocessableEntity,
				"code":     ErrCodeValidation,
				"message":  "script failed validation",
				"problems": problems,
			})
			return
		}
		writeErr(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/runs/"+e.ID())
	writeJSON(w, http.StatusAccepted, e.Status())
}

// handleGetRun returns the live status of a run, falling back to the
// history repository for runs the Manager no longer retains.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	e, err := s.manager.Get(id)
	if err == nil {
		body := map[string]any{"status": e.Status()}
		if res := e.Result(); res != nil {
			body["result"] = res
		}
		writeJSON(w, http.StatusOK, body)
		return
	}
	if !errors.Is(err, automation.ErrRunNotFound) || s.repo == nil {
		writeErr(w, err)
		return
	}

	rec, err := s.repo.GetRun(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": rec})
}

func (s *Server) handleRunAction(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	switch action {
	case ActionCancel, ActionPause, ActionResume:
	default:
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "unknown run action: "+action)
		return
	}

	resp, err := s.controller.Handle(principalFrom(r.Context()), Envelope{
		RequestID: fmt.Sprint(r.Context().Value(ctxKeyRequestID)),
		Action:    action,
		Target:    chi.URLParam(r, "id"),
	})
	if err != nil {
		status, _ := classify(err)
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ─── History ────────────────────────────────────────────────────────────────

func (s *Server) handleGetRunHistory(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		writeErr(w, ErrHistoryDisabled)
		return
	}
	rec, err := s.repo.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		writeErr(w, ErrHistoryDisabled)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	runs, err := s.repo.ListRuns(r.Context(), limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// ─── Commands ───────────────────────────────────────────────────────────────

func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	cat := s.loader.Catalog()
	group := r.URL.Query().Get("group")

	descs := cat.Descriptors()
	out := make([]script.Descriptor, 0, len(descs))
	for _, d := range descs {
		if group != "" && d.Group != group {
			continue
		}
		out = append(out, s.loader.Help(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"commands": out,
		"count":    len(out),
	})
}

func (s *Server) handleListScripts(w http.ResponseWriter, _ *http.Request) {
	names, err := script.List(s.scripts)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scripts": names,
		"count":   len(names),
	})
}
