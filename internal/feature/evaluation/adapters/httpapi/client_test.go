package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deck_evaluator/internal/feature/evaluation/domain"
	"deck_evaluator/internal/feature/evaluation/domain/entity"
	"deck_evaluator/internal/feature/evaluation/usecase"
	jwtauth "deck_evaluator/internal/platform/jwt"
)

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n%%EOF\n")

func testDoc() entity.Document {
	return entity.Document{Name: "deck.pdf", ContentType: "application/pdf", MIMEType: "application/pdf", Data: pdfBytes}
}

// progressLog records progress events in a goroutine-safe way.
type progressLog struct {
	mu     sync.Mutex
	events []entity.ProgressEvent
}

func (p *progressLog) add(ev entity.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *progressLog) stages() []entity.Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []entity.Stage
	for _, ev := range p.events {
		out = append(out, ev.Stage)
	}
	return out
}

func newTestClient(t *testing.T, url string, creds CredentialSource) *Client {
	t.Helper()
	return NewClient(Config{BaseURL: url}, &http.Client{Timeout: 10 * time.Second}, creds)
}

func TestClient_Evaluate_Success(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/evaluate", r.URL.Path)
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))

		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, pdfBytes, data)
		assert.Equal(t, "deck.pdf", header.Filename)
		assert.Equal(t, "application/pdf", header.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"startup_id": "startup_88",
			"investment_score": 88,
			"investment_recommendation": "Invest",
			"risk_assessment": {"risk_level": "Low", "red_flags": []}
		}`))
	}))
	defer server.Close()

	log := &progressLog{}
	client := newTestClient(t, server.URL, jwtauth.NewStaticCredential("token-123"))

	res, err := client.Evaluate(context.Background(), testDoc(), log.add)
	require.NoError(t, err)
	assert.Equal(t, "startup_88", res.StartupID)
	require.NotNil(t, res.InvestmentScore)
	assert.InDelta(t, 88, *res.InvestmentScore, 0.001)
	assert.Equal(t, "Low", res.RiskAssessment.RiskLevel)

	stages := log.stages()
	require.NotEmpty(t, stages)
	assert.Equal(t, entity.StageAnalyzing, stages[len(stages)-1])
	assert.Contains(t, stages, entity.StageUploading)
	for i := 1; i < len(stages); i++ {
		assert.GreaterOrEqual(t, stages[i], stages[i-1])
	}
}

func TestClient_Evaluate_ErrorResponses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		status      int
		body        string
		wantErr     error
		wantMessage string
	}{
		{
			name:        "unauthorized",
			status:      http.StatusUnauthorized,
			body:        `{"detail": "Invalid authentication credentials"}`,
			wantErr:     domain.ErrUnauthorized,
			wantMessage: usecase.MsgUnauthorized,
		},
		{
			name:        "forbidden",
			status:      http.StatusForbidden,
			body:        `{"detail": "Not authenticated"}`,
			wantErr:     domain.ErrUnauthorized,
			wantMessage: usecase.MsgUnauthorized,
		},
		{
			name:        "payload too large",
			status:      http.StatusRequestEntityTooLarge,
			body:        `<html>413</html>`,
			wantErr:     domain.ErrPayloadTooLarge,
			wantMessage: usecase.MsgPayloadTooLarge,
		},
		{
			name:        "server detail shown verbatim",
			status:      http.StatusInternalServerError,
			body:        `{"detail": "Evaluation failed: Vision API quota exceeded"}`,
			wantMessage: "Evaluation failed: Vision API quota exceeded",
		},
		{
			name:        "error field",
			status:      http.StatusBadRequest,
			body:        `{"error": "Only PDF files are supported"}`,
			wantMessage: "Only PDF files are supported",
		},
		{
			name:        "validation detail array",
			status:      http.StatusUnprocessableEntity,
			body:        `{"detail": [{"loc": ["body", "file"], "msg": "field required"}]}`,
			wantMessage: usecase.MsgUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.Copy(io.Discard, r.Body)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newTestClient(t, server.URL, nil)
			_, err := client.Evaluate(context.Background(), testDoc(), nil)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			var se *domain.ServerError
			assert.ErrorAs(t, err, &se)
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Equal(t, tt.wantMessage, usecase.UserMessage(err))
		})
	}
}

func TestClient_Evaluate_InvalidJSON(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL, nil).Evaluate(context.Background(), testDoc(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidResponse)
}

func TestClient_Evaluate_ConnectionRefused(t *testing.T) {
	t.Parallel()

	// 空いているポートを確保してから閉じ、接続拒否を再現する
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = newTestClient(t, "http://"+addr, nil).Evaluate(context.Background(), testDoc(), nil)
	assert.ErrorIs(t, err, domain.ErrConnection)
	assert.Equal(t, usecase.MsgConnection, usecase.UserMessage(err))
}

func TestClient_Evaluate_Timeout(t *testing.T) {
	t.Parallel()

	done := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-done:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(done)

	log := &progressLog{}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := newTestClient(t, server.URL, nil).Evaluate(ctx, testDoc(), log.add)
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.Contains(t, log.stages(), entity.StageAnalyzing)
}

func TestClient_Evaluate_Canceled(t *testing.T) {
	t.Parallel()

	done := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-done:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(done)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := newTestClient(t, server.URL, nil).Evaluate(ctx, testDoc(), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, usecase.KindCanceled, usecase.ClassifyError(err))
}

func TestClient_Evaluate_ExpiredTokenNotSent(t *testing.T) {
	t.Parallel()

	var called atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Store(true)
	}))
	defer server.Close()

	gen := jwtauth.NewGenerator("secret", -time.Minute)
	token, err := gen.GenerateToken("analyst", "analyst")
	require.NoError(t, err)

	_, err = newTestClient(t, server.URL, jwtauth.NewStaticCredential(token)).Evaluate(context.Background(), testDoc(), nil)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.ErrorIs(t, err, jwtauth.ErrTokenExpired)
	assert.False(t, called.Load())
}

func TestClient_LoginAndHealth(t *testing.T) {
	t.Parallel()

	var logins int
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/login":
			mu.Lock()
			logins++
			mu.Unlock()
			if r.URL.Query().Get("username") != "analyst" || r.URL.Query().Get("password") != "pw" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"detail": "Invalid credentials"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "token_type": "bearer", "expires_in": 3600})
		case "/health":
			_, _ = w.Write([]byte(`{"status": "healthy", "services": {"vision": "up"}}`))
		case "/evaluate":
			if r.Header.Get("Authorization") != "Bearer tok-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = io.Copy(io.Discard, r.Body)
			_, _ = w.Write([]byte(`{"startup_id": "s", "risk_assessment": {"red_flags": []}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	anon := newTestClient(t, server.URL, nil)

	health, err := anon.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.NoError(t, anon.Ping(context.Background()))

	creds := NewLoginCredential(anon, "analyst", "pw")
	client := newTestClient(t, server.URL, creds)
	for i := 0; i < 2; i++ {
		res, err := client.Evaluate(context.Background(), testDoc(), nil)
		require.NoError(t, err)
		assert.Equal(t, "s", res.StartupID)
	}
	mu.Lock()
	assert.Equal(t, 1, logins, "token must be reused until it expires")
	mu.Unlock()

	bad := newTestClient(t, server.URL, NewLoginCredential(anon, "analyst", "wrong"))
	_, err = bad.Evaluate(context.Background(), testDoc(), nil)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestClient_Startup(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("Authorization") != "Bearer token-123" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail": "Invalid authentication credentials"}`))
			return
		}
		switch r.URL.EscapedPath() {
		case "/startup/startup_42":
			_, _ = w.Write([]byte(`{
				"startup_id": "startup_42",
				"data": {
					"company_name": "Acme Robotics",
					"sector": "Robotics",
					"stage": "Series A",
					"revenue_model": "SaaS",
					"arr_crore": 12.5,
					"team_size": 40,
					"valuation_pre_money_crore": null,
					"investment_score": 81.5,
					"risk_level": "Medium"
				},
				"retrieved_at": "2024-05-01T10:00:00"
			}`))
		case "/startup/a%2Fb":
			_, _ = w.Write([]byte(`{"startup_id": "a/b", "data": {}}`))
		case "/startup/broken":
			_, _ = w.Write([]byte(`<html>`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail": "Startup missing not found"}`))
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, jwtauth.NewStaticCredential("token-123"))

	t.Run("found", func(t *testing.T) {
		res, err := client.Startup(context.Background(), "startup_42")
		require.NoError(t, err)

		assert.Equal(t, "startup_42", res.StartupID)
		assert.Equal(t, "2024-05-01T10:00:00", res.Timestamp)
		require.NotNil(t, res.ExtractedData)
		assert.Equal(t, "Acme Robotics", res.ExtractedData.CompanyName)
		assert.Equal(t, "Series A", res.ExtractedData.Stage)
		require.NotNil(t, res.ExtractedData.ARRCrore)
		assert.InDelta(t, 12.5, *res.ExtractedData.ARRCrore, 1e-9)
		assert.Nil(t, res.ExtractedData.ValuationCrore)
		require.NotNil(t, res.InvestmentScore)
		assert.InDelta(t, 81.5, *res.InvestmentScore, 1e-9)
		assert.Equal(t, "Medium", res.RiskAssessment.RiskLevel)
	})

	t.Run("id is path escaped", func(t *testing.T) {
		res, err := client.Startup(context.Background(), "a/b")
		require.NoError(t, err)
		assert.Equal(t, "a/b", res.StartupID)
	})

	t.Run("not found keeps detail", func(t *testing.T) {
		_, err := client.Startup(context.Background(), "missing")

		var se *domain.ServerError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusNotFound, se.StatusCode)
		assert.Equal(t, "Startup missing not found", se.Detail)
	})

	t.Run("invalid body", func(t *testing.T) {
		_, err := client.Startup(context.Background(), "broken")
		assert.ErrorIs(t, err, domain.ErrInvalidResponse)
	})

	t.Run("unauthorized", func(t *testing.T) {
		_, err := newTestClient(t, server.URL, nil).Startup(context.Background(), "startup_42")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("empty id", func(t *testing.T) {
		_, err := client.Startup(context.Background(), " ")
		assert.Error(t, err)
	})
}

func TestLoginCredential_Refresh(t *testing.T) {
	t.Parallel()

	var logins atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logins.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 60})
	}))
	defer server.Close()

	now := time.Now()
	creds := NewLoginCredential(newTestClient(t, server.URL, nil), "u", "p")
	creds.now = func() time.Time { return now }

	_, err := creds.Token(context.Background())
	require.NoError(t, err)
	_, err = creds.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), logins.Load())

	now = now.Add(45 * time.Second)
	_, err = creds.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), logins.Load(), "token inside the expiry skew must be refreshed")
}

func TestProgressReader(t *testing.T) {
	t.Parallel()

	log := &progressLog{}
	data := make([]byte, 1000)
	pr := newProgressReader(&chunkReader{data: data, chunk: 100}, int64(len(data)), log.add)

	n, err := io.Copy(io.Discard, pr)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), n)

	// 100バイトずつ10回で10%刻み、最後に1回だけAnalyzing
	stages := log.stages()
	require.Len(t, stages, 11)
	for _, s := range stages[:10] {
		assert.Equal(t, entity.StageUploading, s)
	}
	assert.Equal(t, entity.StageAnalyzing, stages[10])

	// EOFの後に再度読んでもAnalyzingは繰り返されない
	_, _ = pr.Read(make([]byte, 10))
	assert.Len(t, log.stages(), 11)
}

// chunkReader returns at most chunk bytes per Read.
type chunkReader struct {
	data  []byte
	chunk int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	n := c.chunk
	if n > len(p) {
		n = len(p)
	}
	if n > len(c.data) {
		n = len(c.data)
	}
	copy(p, c.data[:n])
	c.data = c.data[n:]
	return n, nil
}
