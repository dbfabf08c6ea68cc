package trace

import (
	"encoding/json"
	"net/http"
)

// Middleware continues or starts a trace for each HTTP request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc := FromMap(map[string]string{
			TraceIDKey: r.Header.Get(TraceIDKey),
			SpanIDKey:  r.Header.Get(SpanIDKey),
		})
		ctx := WithContext(r.Context(), tc)
		if id := r.Header.Get(SessionIDKey); id != "" {
			ctx = WithSession(ctx, id)
		}
		w.Header().Set(TraceIDKey, tc.TraceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ExtractFromJSON pulls an optional trace_id out of a WebSocket message.
func ExtractFromJSON(data []byte) (Context, bool) {
	var msg struct {
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(data, &msg); err != nil || msg.TraceID == "" {
		return New(), false
	}
	return Context{TraceID: msg.TraceID, SpanID: randomHex(8)}, true
}
