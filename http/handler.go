package http

import (
	"encoding/json"
	"net/http"
)

// NewHandler returns a net/http handler serving the receipt routes.
func NewHandler(v ReceiptVerifier, opts ...Option) http.Handler {
	o := NewOptions(opts...)

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+ReceiptsPath, func(w http.ResponseWriter, r *http.Request) {
		result := ProcessReceipt(r.Context(), v, r.Body)
		if result.Status == http.StatusInternalServerError {
			o.Logger.ErrorContext(r.Context(), "receipt verification failed", "error", result.Err)
		}
		WriteResult(w, result)
	})
	mux.HandleFunc("GET "+HealthPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Healthy)
	})
	if o.SPSP != nil {
		mux.Handle("GET "+SPSPPath, o.SPSP)
		mux.Handle("GET "+SPSPPath+"/", o.SPSP)
	}
	if o.MCP != nil {
		mux.Handle(MCPPath, o.MCP)
	}

	return RequestLogger(o.Logger)(mux)
}

// WriteResult writes result as JSON on success and as plain text otherwise.
func WriteResult(w http.ResponseWriter, result VerifyResult) {
	if result.Status == http.StatusOK {
		writeJSON(w, http.StatusOK, result.Response)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(result.Status)
	_, _ = w.Write([]byte(result.Message))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
