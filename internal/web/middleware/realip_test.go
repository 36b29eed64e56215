package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTrustedRealIP(t *testing.T) {
	trusted := []string{"10.0.0.0/8", "192.0.2.1", "", "not-an-ip"}

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "untrusted peer keeps remote addr",
			remoteAddr: "203.0.113.5:5555",
			headers:    map[string]string{"X-Real-IP": "1.2.3.4"},
			want:       "203.0.113.5",
		},
		{
			name:       "trusted cidr uses x-real-ip",
			remoteAddr: "10.1.2.3:80",
			headers:    map[string]string{"X-Real-IP": " 198.51.100.9 "},
			want:       "198.51.100.9",
		},
		{
			name:       "trusted single ip uses first forwarded hop",
			remoteAddr: "192.0.2.1:80",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.2"},
			want:       "198.51.100.1",
		},
		{
			name:       "invalid forwarded value is ignored",
			remoteAddr: "10.1.2.3:80",
			headers:    map[string]string{"X-Real-IP": "garbage"},
			want:       "10.1.2.3",
		},
		{
			name:       "trusted peer without headers",
			remoteAddr: "10.1.2.3:80",
			want:       "10.1.2.3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := TrustedRealIP(trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = ClientIP(r)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResponseWriter_CapturesFirstStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	ww := wrapWriter(rec)

	ww.WriteHeader(http.StatusCreated)
	ww.WriteHeader(http.StatusInternalServerError)
	ww.Write([]byte("ok"))

	if ww.status != http.StatusCreated {
		t.Errorf("status = %d, want %d", ww.status, http.StatusCreated)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("recorder code = %d, want %d", rec.Code, http.StatusCreated)
	}
	if wrapWriter(ww) != ww {
		t.Error("wrapWriter should not double wrap")
	}
}
