package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"grab-relay/internal/core"
	"grab-relay/internal/upstream"
)

const maxBodyBytes = 100 << 10

type okResponse struct {
	OK  bool   `json:"ok"`
	Msg string `json:"msg,omitempty"`
}

type configResponse struct {
	OK     bool              `json:"ok"`
	Config core.ClientConfig `json:"config"`
}

type tokenResponse struct {
	OK      bool   `json:"ok"`
	WSToken string `json:"wsToken"`
}

type healthResponse struct {
	OK bool  `json:"ok"`
	TS int64 `json:"ts"`
}

type codeResponse struct {
	Code  int             `json:"code"`
	Msg   string          `json:"msg"`
	Error json.RawMessage `json:"error,omitempty"`
}

func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	body, err := readObject(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, okResponse{Msg: "invalid JSON body"})
		return
	}
	clientID, ok := stringField(body, "clientId")
	if !ok || clientID == "" {
		log.Printf("level=WARN event=config_rejected reason=%q", "missing client id")
		writeJSON(w, http.StatusBadRequest, okResponse{Msg: "clientId is required"})
		return
	}
	key, keyOK := stringField(body, "key")
	version, versionOK := stringField(body, "version")
	token, tokenOK := stringField(body, "token")
	if !keyOK || !versionOK || !tokenOK {
		log.Printf("level=WARN event=config_rejected client_id=%q reason=%q", clientID, "non-string fields")
		writeJSON(w, http.StatusBadRequest, okResponse{Msg: "key/version/token must be strings"})
		return
	}
	if err := s.store.Set(clientID, core.ClientConfig{Key: key, Version: version, Token: token}); err != nil {
		writeJSON(w, http.StatusBadRequest, okResponse{Msg: "clientId is required"})
		return
	}
	log.Printf("level=INFO event=config_saved client_id=%q version=%q", clientID, version)
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("clientId")
	cfg, err := s.store.Get(clientID)
	if err != nil {
		log.Printf("level=WARN event=config_not_found client_id=%q", clientID)
		writeJSON(w, http.StatusNotFound, okResponse{Msg: "config not found"})
		return
	}
	writeJSON(w, http.StatusOK, configResponse{OK: true, Config: cfg})
}

func (s *Server) handleGrabOrder(w http.ResponseWriter, r *http.Request) {
	body, err := readObject(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, codeResponse{Code: http.StatusBadRequest, Msg: "invalid JSON body"})
		return
	}
	orderID, ok := core.ParseOrderID(body["orderId"])
	if !ok {
		s.rejectGrab(w, "", "orderId is required")
		return
	}
	clientID, ok := stringField(body, "clientId")
	if !ok || clientID == "" {
		s.rejectGrab(w, "", "clientId is required")
		return
	}
	creds, err := s.store.Get(clientID)
	if err != nil {
		s.rejectGrab(w, clientID, "Config not set for this clientId")
		return
	}

	// The upstream call outlives a caller that hangs up; only its own timeout bounds it.
	resp, err := s.grabber.GrabOrder(context.WithoutCancel(r.Context()), creds, orderID)
	if err != nil {
		s.failGrab(w, clientID, orderID.Text, err)
		return
	}
	log.Printf("level=INFO event=grab_order_ok client_id=%q order_id=%q request_id=%q upstream_status=%d body=%s",
		clientID, orderID.Text, resp.RequestID, resp.Status, resp.Body)
	writeRaw(w, http.StatusOK, resp.Body)
}

func (s *Server) rejectGrab(w http.ResponseWriter, clientID, msg string) {
	log.Printf("level=WARN event=grab_order_rejected client_id=%q reason=%q", clientID, msg)
	writeJSON(w, http.StatusBadRequest, codeResponse{Code: http.StatusBadRequest, Msg: msg})
}

func (s *Server) failGrab(w http.ResponseWriter, clientID, orderID string, err error) {
	var detail json.RawMessage
	var upErr *upstream.UpstreamError
	if errors.As(err, &upErr) {
		detail = upErr.Detail()
	} else {
		detail, _ = json.Marshal(err.Error())
	}
	log.Printf("level=ERROR event=grab_order_upstream_failed client_id=%q order_id=%q err=%q detail=%s",
		clientID, orderID, err.Error(), detail)
	if s.alerts != nil {
		s.alerts.Important("grab_order_upstream_failed", map[string]string{
			"client_id": clientID,
			"order_id":  orderID,
			"error":     err.Error(),
		})
	}
	writeJSON(w, http.StatusBadGateway, codeResponse{
		Code:  http.StatusBadGateway,
		Msg:   "Upstream request failed",
		Error: detail,
	})
}

func (s *Server) handleGetWSToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, tokenResponse{OK: true, WSToken: s.token.Get()})
}

func (s *Server) handleSaveWSToken(w http.ResponseWriter, r *http.Request) {
	body, err := readObject(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, okResponse{Msg: "invalid JSON body"})
		return
	}
	token, _ := stringField(body, "wsToken")
	if err := s.token.Set(token); err != nil {
		log.Printf("level=WARN event=ws_token_rejected reason=%q", err.Error())
		writeJSON(w, http.StatusBadRequest, okResponse{Msg: "wsToken must be a string"})
		return
	}
	log.Printf("level=INFO event=ws_token_updated token=%q", token)
	if s.alerts != nil {
		s.alerts.Important("ws_token_updated", map[string]string{"token": token})
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{OK: true, TS: time.Now().UnixMilli()})
}

// readObject decodes a JSON object body. An empty body is an empty object.
func readObject(w http.ResponseWriter, r *http.Request) (map[string]json.RawMessage, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	obj := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(data)) == 0 {
		return obj, nil
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		obj = map[string]json.RawMessage{}
	}
	return obj, nil
}

func stringField(obj map[string]json.RawMessage, name string) (string, bool) {
	raw := bytes.TrimSpace(obj[name])
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	writeRaw(w, status, data)
}

func writeRaw(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
