package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"syscall"

	"deck_evaluator/internal/feature/evaluation/adapters/httpapi/dto"
	"deck_evaluator/internal/feature/evaluation/domain"
	"deck_evaluator/internal/feature/evaluation/domain/entity"
	"deck_evaluator/internal/feature/evaluation/usecase"
)

const (
	// maxResponseBytes はレスポンス本文の読み込み上限です。
	maxResponseBytes = 8 << 20
	// maxErrorBytes はエラーレスポンス本文の読み込み上限です。
	maxErrorBytes = 64 << 10
)

// CredentialSource はBearerトークンを提供するインターフェースです。
type CredentialSource interface {
	Token(ctx context.Context) (string, error)
}

// Client は評価エンドポイントへファイルを送信するusecase.Evaluator実装です。
type Client struct {
	cfg    Config
	client *http.Client
	creds  CredentialSource
}

// ClientがEvaluatorを実装していることをコンパイル時に検証します。
var _ usecase.Evaluator = (*Client)(nil)

// NewClient は指定された設定とHTTPクライアントでClientの新しいインスタンスを生成します。
// credsがnilの場合はAuthorizationヘッダーを付与しません。
func NewClient(cfg Config, client *http.Client, creds CredentialSource) *Client {
	return &Client{cfg: cfg.withDefaults(), client: client, creds: creds}
}

// Evaluate はファイルを1つのmultipartフィールドとして送信し、評価結果を返します。
// 再試行は行いません。
func (c *Client) Evaluate(ctx context.Context, doc entity.Document, onProgress usecase.ProgressFunc) (*entity.EvaluationResult, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	body, contentType, err := encodeMultipart(c.cfg.FieldName, doc)
	if err != nil {
		return nil, fmt.Errorf("encode multipart body: %w", err)
	}

	// リクエストオブジェクトを作成
	total := int64(body.Len())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(c.cfg.EvaluatePath), newProgressReader(body, total, onProgress))
	if err != nil {
		return nil, err
	}
	req.ContentLength = total
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	// リクエストを実行
	res, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer closeBody(res)

	if res.StatusCode >= 400 {
		return nil, decodeErrorResponse(res)
	}

	// JSONレスポンスをエンティティにデコード
	var out entity.EvaluationResult
	if err := json.NewDecoder(io.LimitReader(res.Body, maxResponseBytes)).Decode(&out); err != nil {
		if ctx.Err() != nil {
			return nil, classifyTransportError(ctx, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidResponse, err)
	}
	return &out, nil
}

// Login はユーザー名とパスワードでアクセストークンを取得します。
func (c *Client) Login(ctx context.Context, username, password string) (*dto.LoginResponse, error) {
	q := url.Values{}
	q.Set("username", username)
	q.Set("password", password)
	u := c.endpoint(c.cfg.LoginPath) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer closeBody(res)

	if res.StatusCode >= 400 {
		return nil, decodeErrorResponse(res)
	}

	var body dto.LoginResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, maxErrorBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidResponse, err)
	}
	if body.AccessToken == "" {
		return nil, fmt.Errorf("%w: login response has no access_token", domain.ErrInvalidResponse)
	}
	return &body, nil
}

// Health は評価エンドポイントのヘルスチェックを呼び出します。
func (c *Client) Health(ctx context.Context) (*dto.HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(c.cfg.HealthPath), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer closeBody(res)

	if res.StatusCode >= 400 {
		return nil, decodeErrorResponse(res)
	}

	var body dto.HealthResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, maxErrorBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidResponse, err)
	}
	return &body, nil
}

// Startup は保存済みの評価をstartup_idで取得します。
// 見つからない場合はエンドポイントのdetailを持つServerError（404）を返します。
func (c *Client) Startup(ctx context.Context, id string) (*entity.EvaluationResult, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("startup id is required")
	}
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	u := c.endpoint(c.cfg.StartupPath) + "/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer closeBody(res)

	if res.StatusCode >= 400 {
		return nil, decodeErrorResponse(res)
	}

	var body dto.StartupResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, maxResponseBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidResponse, err)
	}
	if body.StartupID == "" {
		body.StartupID = id
	}
	return body.ToEntity(), nil
}

// Ping は評価エンドポイントに到達できるかを返します。
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Health(ctx)
	return err
}

func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// token は認証情報を取得します。取得失敗は認証エラーとして扱います。
func (c *Client) token(ctx context.Context) (string, error) {
	if c.creds == nil {
		return "", nil
	}
	token, err := c.creds.Token(ctx)
	if err == nil {
		return token, nil
	}
	switch {
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrConnection),
		errors.Is(err, domain.ErrTimeout),
		errors.Is(err, context.Canceled):
		return "", err
	}
	return "", fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
}

// encodeMultipart はファイルを1つのフィールドに持つmultipart本文を生成します。
func encodeMultipart(field string, doc entity.Document) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	contentType := doc.MIMEType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     field,
		"filename": doc.Name,
	}))
	h.Set("Content-Type", contentType)

	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(doc.Data); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}

// classifyTransportError は通信エラーをドメインエラーに変換します。
func classifyTransportError(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	case errors.Is(ctx.Err(), context.Canceled):
		return fmt.Errorf("evaluation request cancelled: %w", context.Canceled)
	}

	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Errorf("%w: %v", domain.ErrConnection, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return fmt.Errorf("%w: %v", domain.ErrConnection, err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("%w: %v", domain.ErrConnection, err)
	}
	return fmt.Errorf("evaluation request failed: %w", err)
}

// decodeErrorResponse はエラーステータスのレスポンスをドメインエラーに変換します。
func decodeErrorResponse(res *http.Response) error {
	se := &domain.ServerError{StatusCode: res.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxErrorBytes))
	if err == nil && len(raw) > 0 {
		var body dto.ErrorResponse
		if json.Unmarshal(raw, &body) == nil {
			se.Detail = body.Text()
		}
	}

	switch res.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", domain.ErrUnauthorized, se)
	case http.StatusRequestEntityTooLarge:
		return fmt.Errorf("%w: %w", domain.ErrPayloadTooLarge, se)
	}
	return se
}

func closeBody(res *http.Response) {
	if err := res.Body.Close(); err != nil {
		slog.Warn("failed to close response body", "error", err)
	}
}
