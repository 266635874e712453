package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ucams-cli/pkg/models"
)

// backend emulates the portal and the camera service on one TLS server.
type backend struct {
	t   *testing.T
	srv *httptest.Server

	portalToken string // guarded by mu once the server runs
	camToken    string

	logins    atomic.Int32
	exchanges atomic.Int32
	listings  atomic.Int32 // requests for page 1
	screens   atomic.Int32
	archives  atomic.Int32

	mu             sync.Mutex
	cameras        []models.RawCamera
	pages          []int
	camsServerURL  *string
	loginStatus    int
	listStatus     func(page int) int
	screenStatuses []int
	skudStatuses   []int
	archiveResults *[]models.ArchiveToken
	lastArchiveReq models.ArchiveTokenRequest
	lastDetailsReq models.ContractInfoRequest

	// listGate, when set, holds page 1 until closed; listStarted is signalled
	// once the first page request arrived.
	listGate    chan struct{}
	listStarted chan struct{}
}

var tokenSeq atomic.Int64

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"iat": time.Now().Unix(), "jti": tokenSeq.Add(1)}
	if !exp.IsZero() {
		claims["exp"] = exp.Unix()
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func pop(queue *[]int) int {
	if len(*queue) == 0 {
		return 0
	}
	s := (*queue)[0]
	*queue = (*queue)[1:]
	return s
}

func newBackend(t *testing.T) *backend {
	t.Helper()

	b := &backend{
		t:           t,
		portalToken: signedToken(t, time.Now().Add(time.Hour)),
		camToken:    signedToken(t, time.Now().Add(time.Hour)),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/auth_by_contract/", b.handleLogin)
	mux.HandleFunc("GET /api/v0/contract/", b.portalOnly(b.handleContract))
	mux.HandleFunc("GET /api/v0/skud/shared/", b.portalOnly(b.handleSkud))
	mux.HandleFunc("GET /api/v0/skud/shared/{id}/open/", b.portalOnly(b.handleOpen))
	mux.HandleFunc("GET /api/v0/contract_info/get_all_contract/", b.portalOnly(b.handleAllContracts))
	mux.HandleFunc("POST /api/v0/contract_info/get_contract_info/", b.portalOnly(b.handleContractInfo))
	mux.HandleFunc("POST /api/v0/auth/", b.handleExchange)
	mux.HandleFunc("POST /api/v0/cameras/my/", b.camsOnly(b.handleList))
	mux.HandleFunc("POST /api/v0/cameras/this/", b.camsOnly(b.handleArchive))
	mux.HandleFunc("GET /api/v0/screenshots/{file}", b.camsOnly(b.handleScreenshot))

	b.srv = httptest.NewTLSServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *backend) config() Config {
	return Config{
		Name:       "Test Config",
		DomURL:     b.srv.URL,
		Contract:   "100500",
		Password:   "secret",
		HTTPClient: b.srv.Client(),
	}
}

func (b *backend) portal() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.portalToken
}

func (b *backend) cams() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.camToken
}

// rotateTokens revokes every issued token server side.
func (b *backend) rotateTokens() {
	portal := signedToken(b.t, time.Now().Add(time.Hour))
	cams := signedToken(b.t, time.Now().Add(time.Hour))
	b.mu.Lock()
	b.portalToken, b.camToken = portal, cams
	b.mu.Unlock()
}

func (b *backend) host() string {
	return strings.TrimPrefix(b.srv.URL, "https://")
}

func (b *backend) setCameras(cams []models.RawCamera) {
	b.mu.Lock()
	b.cameras = cams
	b.mu.Unlock()
}

func (b *backend) camera(id, tok string) models.RawCamera {
	return models.RawCamera{
		Number: id,
		Title:  "камера " + id,
		Server: models.CameraServer{
			Domain:           "flussonic-msk-1.cams.example.com",
			ScreenshotDomain: b.host(),
		},
		TokenL: tok,
	}
}

func (b *backend) portalOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "JWT "+b.portal() {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "bad portal token"})
			return
		}
		next(w, r)
	}
}

func (b *backend) camsOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+b.cams() {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "bad camera token"})
			return
		}
		next(w, r)
	}
}

func (b *backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	b.logins.Add(1)

	var body models.PortalLoginPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, nil)
		return
	}

	b.mu.Lock()
	status := b.loginStatus
	b.mu.Unlock()

	if status != 0 {
		writeJSON(w, status, map[string]string{"detail": "login rejected"})
		return
	}
	if body.Contract != "100500" || body.Password != "secret" {
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": "bad credentials"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": map[string]any{
			"access": b.portal(),
			"exp":    time.Now().Add(time.Hour).Unix(),
		},
	})
}

func (b *backend) handleContract(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	u := b.srv.URL + "/"
	if b.camsServerURL != nil {
		u = *b.camsServerURL
	}
	b.mu.Unlock()

	if u == "" {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, []any{
		map[string]any{"isp_org": map[string]any{"cams_server": map[string]any{"url": u}}},
	})
}

func (b *backend) handleSkud(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	status := pop(&b.skudStatuses)
	b.mu.Unlock()

	if status != 0 {
		writeJSON(w, status, map[string]string{"detail": "nope"})
		return
	}
	writeJSON(w, http.StatusOK, []any{
		map[string]any{"id": 7, "cctv_number": "1234567890ABCDEF", "string_view": "Подъезд 1", "timeout": 5},
		map[string]any{"id": 8, "cctv_number": nil, "string_view": "Калитка", "timeout": 3},
	})
}

func (b *backend) handleOpen(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"result": true, "id": r.PathValue("id")})
}

func (b *backend) handleAllContracts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"detail": map[string]any{
			"contracts": []any{map[string]any{"contract_id": 11, "billing_id": 22, "title": "Дом"}},
		},
	})
}

func (b *backend) handleContractInfo(w http.ResponseWriter, r *http.Request) {
	var body models.ContractInfoRequest
	_ = json.NewDecoder(r.Body).Decode(&body)
	b.mu.Lock()
	b.lastDetailsReq = body
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"detail": []any{map[string]any{
			"contract_id":      11,
			"contract_title":   "Дом",
			"contract_address": map[string]any{"city": "Уфа", "street": "Ленина", "house": "1", "flat": ""},
			"balance":          map[string]any{"current": 150.5, "recommended": 500, "expiry_date": nil},
			"services": []any{map[string]any{
				"service_id":         5,
				"service_title_name": "Интернет",
				"service_status":     1,
				"period_end":         1700000000,
				"cost":               450,
				"date_from":          "2020-01-01",
				"tariff":             map[string]any{"title": "Turbo", "speed": 100},
			}},
		}},
	})
}

func (b *backend) handleExchange(w http.ResponseWriter, r *http.Request) {
	b.exchanges.Add(1)
	if r.URL.Query().Get("ttl") != "20800" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "ttl"})
		return
	}
	if r.Header.Get("Authorization") != "JWT "+b.portal() {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "bad portal token"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": b.cams()})
}

func (b *backend) handleList(w http.ResponseWriter, r *http.Request) {
	var body models.CameraListRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, nil)
		return
	}

	if body.Page == 1 {
		b.listings.Add(1)
		if b.listStarted != nil {
			select {
			case b.listStarted <- struct{}{}:
			default:
			}
		}
		if b.listGate != nil {
			<-b.listGate
		}
	}

	b.mu.Lock()
	b.pages = append(b.pages, body.Page)
	hook := b.listStatus
	cams := b.cameras
	b.mu.Unlock()

	if hook != nil {
		if status := hook(body.Page); status != 0 {
			writeJSON(w, status, map[string]string{"detail": "fail"})
			return
		}
	}

	start := (body.Page - 1) * body.PageSize
	end := start + body.PageSize
	if start > len(cams) {
		start = len(cams)
	}
	if end > len(cams) {
		end = len(cams)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(cams),
		"results": cams[start:end],
	})
}

func (b *backend) handleArchive(w http.ResponseWriter, r *http.Request) {
	b.archives.Add(1)
	if r.URL.Query().Get("lang") != "ru" {
		writeJSON(w, http.StatusBadRequest, nil)
		return
	}

	var body models.ArchiveTokenRequest
	_ = json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	b.lastArchiveReq = body
	override := b.archiveResults
	b.mu.Unlock()

	results := []models.ArchiveToken{}
	if override != nil {
		results = *override
	} else {
		for _, n := range body.Numbers {
			results = append(results, models.ArchiveToken{Number: n, TokenD: fmt.Sprintf("DL-%s", n)})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (b *backend) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	b.screens.Add(1)

	b.mu.Lock()
	status := pop(&b.screenStatuses)
	b.mu.Unlock()

	if status != 0 {
		writeJSON(w, status, map[string]string{"detail": "nope"})
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	_, _ = w.Write([]byte("image_data:" + r.PathValue("file")))
}

func (b *backend) pagesRequested() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int(nil), b.pages...)
}
