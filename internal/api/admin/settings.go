package admin

import (
	"net/http"
	"strings"

	"github.com/tfrey42/pitchside/internal/api/apiutil"
	"github.com/tfrey42/pitchside/internal/db"
	"github.com/tfrey42/pitchside/internal/store"
)

// HandleListSettings returns every runtime setting.
func HandleListSettings(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireSuperuser(w, r); !ok {
		return
	}
	all, err := siteCfg.List(r.Context())
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	payload := make([]map[string]any, 0, len(all))
	for _, s := range all {
		payload = append(payload, map[string]any{
			"key":         s.Key,
			"value":       s.Value,
			"description": s.Description,
		})
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, payload)
}

type settingRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// HandleUpsertSetting creates or overwrites a runtime setting.
func HandleUpsertSetting(w http.ResponseWriter, r *http.Request) {
	user, ok := requireSuperuser(w, r)
	if !ok {
		return
	}
	var req settingRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "invalid request body", Err: err})
		return
	}
	req.Key = strings.TrimSpace(req.Key)
	if req.Key == "" {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "key is required"})
		return
	}

	err := database.RunInTx(r.Context(), func(txdb *db.DB) error {
		if err := siteCfg.WithQueries(txdb.Queries).Set(r.Context(), req.Key, req.Value); err != nil {
			return err
		}
		return audit(r, txdb.Queries, user, store.AuditChange, "setting", req.Key+"="+req.Value)
	})
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
