package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/nerrad567/incoming-webhook/internal/switches"
)

// webhookRequest is the decoded POST /webhook body.
type webhookRequest struct {
	SwitchID   string
	Action     string
	Attributes switches.Attributes
}

// webhookResponse is the 200 body for POST /webhook.
type webhookResponse struct {
	Status     string              `json:"status"`
	SwitchID   string              `json:"switch_id"`
	Action     string              `json:"action"`
	State      string              `json:"state"`
	Attributes switches.Attributes `json:"attributes"`
}

// switchView is one entry of GET /switches.
type switchView struct {
	SwitchID   string              `json:"switch_id"`
	Name       string              `json:"name,omitempty"`
	State      string              `json:"state"`
	Attributes switches.Attributes `json:"attributes"`
}

// handleWebhook applies one action to one switch.
//
// Order: body validation (422), switch lookup (404), action (422), apply (500 on failure).
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeValidationErrors(w, []FieldError{{
			Loc: []string{"body"}, Msg: "could not read request body", Type: errTypeJSON,
		}})
		return
	}

	req, fieldErrs := parseWebhookRequest(body)
	if len(fieldErrs) > 0 {
		writeValidationErrors(w, fieldErrs)
		return
	}

	if _, ok := s.store.Get(req.SwitchID); !ok {
		writeNotFound(w, fmt.Sprintf("Switch '%s' not found", req.SwitchID))
		return
	}

	res, err := s.dispatcher.Dispatch(r.Context(), req.SwitchID, req.Action, req.Attributes)
	if err != nil {
		s.writeDispatchError(w, r, req, err)
		return
	}

	logArgs := []any{
		"switch_id", res.Switch.ID,
		"action", string(res.Action),
		"state", string(res.Switch.State),
		"request_id", requestIDFrom(r.Context()),
	}
	if c := claimsFrom(r.Context()); c != nil && c.Subject != "" {
		logArgs = append(logArgs, "subject", c.Subject)
	}
	s.logger.Info("webhook action applied", logArgs...)

	writeJSON(w, http.StatusOK, webhookResponse{
		Status:     "success",
		SwitchID:   res.Switch.ID,
		Action:     string(res.Action),
		State:      string(res.Switch.State),
		Attributes: res.Switch.ResponseAttributes(),
	})
}

func (s *Server) writeDispatchError(w http.ResponseWriter, r *http.Request, req webhookRequest, err error) {
	var attrErr *switches.AttributeError
	switch {
	case errors.Is(err, switches.ErrUnknownAction):
		writeValidationErrors(w, []FieldError{unknownActionError(req.Action)})
	case errors.Is(err, switches.ErrNotFound):
		writeNotFound(w, fmt.Sprintf("Switch '%s' not found", req.SwitchID))
	case errors.As(err, &attrErr):
		writeValidationErrors(w, []FieldError{{
			Loc: []string{"body", "attributes", attrErr.Key}, Msg: attrErr.Reason, Type: errTypeScalar,
		}})
	default:
		s.logger.Error("webhook action failed",
			"switch_id", req.SwitchID,
			"action", req.Action,
			"error", err,
			"request_id", requestIDFrom(r.Context()),
		)
		writeInternalError(w)
	}
}

func unknownActionError(action string) FieldError {
	return FieldError{
		Loc:  []string{"body", "action"},
		Msg:  fmt.Sprintf("unknown action '%s', expected one of: on, off, toggle, status", action),
		Type: errTypeUnknownAct,
	}
}

// parseWebhookRequest decodes body and collects every field error.
func parseWebhookRequest(body []byte) (webhookRequest, []FieldError) {
	var req webhookRequest

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		if json.Valid(body) {
			return req, []FieldError{{Loc: []string{"body"}, Msg: "value is not a valid dict", Type: errTypeDict}}
		}
		return req, []FieldError{{Loc: []string{"body"}, Msg: "invalid JSON body", Type: errTypeJSON}}
	}

	var errs []FieldError
	var fe *FieldError

	if req.SwitchID, fe = requiredString(fields, "switch_id"); fe != nil {
		errs = append(errs, *fe)
	}
	if req.Action, fe = requiredString(fields, "action"); fe != nil {
		errs = append(errs, *fe)
	}

	attrs, attrErrs := parseAttributes(fields["attributes"])
	req.Attributes = attrs
	errs = append(errs, attrErrs...)

	return req, errs
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || strings.TrimSpace(string(raw)) == "null"
}

func requiredString(fields map[string]json.RawMessage, name string) (string, *FieldError) {
	raw, ok := fields[name]
	if !ok || isNull(raw) {
		return "", &FieldError{Loc: []string{"body", name}, Msg: "field required", Type: errTypeMissing}
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", &FieldError{Loc: []string{"body", name}, Msg: "str type expected", Type: errTypeString}
	}
	return v, nil
}

// parseAttributes accepts an absent or null member as no attributes.
func parseAttributes(raw json.RawMessage) (switches.Attributes, []FieldError) {
	if isNull(raw) {
		return switches.Attributes{}, nil
	}

	var members map[string]json.RawMessage
	if err := json.Unmarshal(raw, &members); err != nil {
		return nil, []FieldError{{Loc: []string{"body", "attributes"}, Msg: "value is not a valid dict", Type: errTypeDict}}
	}

	keys := make([]string, 0, len(members))
	for k := range members {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	attrs := make(switches.Attributes, len(members))
	var errs []FieldError
	for _, k := range keys {
		loc := []string{"body", "attributes", k}
		switch {
		case k == switches.AttrLastTriggeredAt:
			errs = append(errs, FieldError{Loc: loc, Msg: "reserved attribute", Type: errTypeReserved})
			continue
		case k == "":
			errs = append(errs, FieldError{Loc: loc, Msg: "attribute name must not be empty", Type: errTypeEmptyKey})
			continue
		}

		var v any
		if err := json.Unmarshal(members[k], &v); err != nil {
			errs = append(errs, FieldError{Loc: loc, Msg: "invalid value", Type: errTypeJSON})
			continue
		}
		switch v.(type) {
		case string, float64, bool:
			attrs[k] = v
		default:
			errs = append(errs, FieldError{Loc: loc, Msg: "value must be a string, number or boolean", Type: errTypeScalar})
		}
	}
	return attrs, errs
}

// handleListSwitches returns every configured switch ordered by id.
func (s *Server) handleListSwitches(w http.ResponseWriter, _ *http.Request) {
	list := s.store.List()
	out := make([]switchView, 0, len(list))
	for _, sw := range list {
		out = append(out, newSwitchView(sw))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"switches": out,
		"count":    len(out),
	})
}

func newSwitchView(sw switches.Switch) switchView {
	return switchView{
		SwitchID:   sw.ID,
		Name:       sw.Name,
		State:      string(sw.State),
		Attributes: sw.ResponseAttributes(),
	}
}
