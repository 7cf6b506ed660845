package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JonMunkholm/regionalert/internal/core"
	"github.com/JonMunkholm/regionalert/internal/logging"
)

// maxAlertBody caps the JSON body of an alert request.
const maxAlertBody = 64 << 10

// flexString is a JSON field that accepts a string or a number. A number
// keeps its literal text, so 75056 and "75056" are the same region code.
// An absent key or null leaves set false.
type flexString struct {
	value string
	set   bool
}

func (f *flexString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*f = flexString{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString{value: s, set: true}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexString{value: n.String(), set: true}
		return nil
	}
	return errors.New("expected a string or a number")
}

func (f flexString) ptr() *string {
	if !f.set {
		return nil
	}
	v := f.value
	return &v
}

// alertBody accepts the legacy "insee" key as an alias of "regionCode".
type alertBody struct {
	RegionCode flexString `json:"regionCode"`
	Insee      flexString `json:"insee"`
	Message    flexString `json:"message"`
}

func (b alertBody) request() core.AlertRequest {
	code := b.RegionCode
	if !code.set {
		code = b.Insee
	}
	return core.AlertRequest{RegionCode: code.ptr(), Message: b.Message.ptr()}
}

type alertResponse struct {
	Status     string `json:"status"`
	RegionCode string `json:"regionCode"`
	Insee      string `json:"insee,omitempty"`
	Sent       int    `json:"sent"`
}

// handleAlert serves POST /alerter and POST /api/alerts.
func (s *Server) handleAlert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAlertBody)

	var body alertBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondBadRequest(w, r, "REQ001", "Invalid JSON payload", "Send a JSON object with regionCode and message")
		return
	}

	req := body.request()
	result, err := s.deps.Dispatcher.Dispatch(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	resp := alertResponse{
		Status:     "success",
		RegionCode: *req.RegionCode,
		Sent:       result.SentCount,
	}
	if !body.RegionCode.set {
		resp.Insee = resp.RegionCode
	}

	logging.FromContext(r.Context()).Info("alert accepted",
		"region_code", resp.RegionCode,
		"sent", resp.Sent,
	)
	respondJSON(w, http.StatusOK, resp)
}
