package apiutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
)

type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

type HandlerError struct {
	Status  int
	Message string
	Err     error
}

func (e HandlerError) Error() string {
	return e.Message
}

func (e HandlerError) Unwrap() error {
	return e.Err
}

func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("missing request body")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	if err := encoder.Encode(payload); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteError renders an error as JSON. HandlerError picks its own status;
// anything else becomes a logged 500.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var handlerErr HandlerError
	if ok := AsHandlerError(err, &handlerErr); ok {
		if handlerErr.Err != nil {
			log.Ctx(r.Context()).Warn().Err(handlerErr.Err).Int("status", handlerErr.Status).Msg(handlerErr.Message)
		}
		_ = WriteJSON(w, handlerErr.Status, map[string]string{"error": handlerErr.Message})
		return
	}

	log.Ctx(r.Context()).Error().Err(err).Msg("Unhandled request error")
	_ = WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

// AsHandlerError unwraps err into a HandlerError, matching both value and
// pointer forms.
func AsHandlerError(err error, target *HandlerError) bool {
	for err != nil {
		if he, ok := err.(HandlerError); ok {
			*target = he
			return true
		}
		if he, ok := err.(*HandlerError); ok {
			*target = *he
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// PathID parses the {id} path segment of a request routed with Go 1.22
// pattern matching.
func PathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	var id int64
	if _, err := fmt.Sscanf(raw, "%d", &id); err != nil || id <= 0 {
		return 0, HandlerError{Status: http.StatusBadRequest, Message: "invalid id"}
	}
	return id, nil
}
