package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"ucams-cli/pkg/models"
)

func newSessions(t *testing.T, b *backend) (*PortalClient, *CamerasClient) {
	t.Helper()
	p := NewPortal(b.config(), nil)
	return p, NewCameras(b.config(), p, nil)
}

func freshCameras(t *testing.T, b *backend, n int) []models.RawCamera {
	t.Helper()
	tok := signedToken(t, time.Now().Add(24*time.Hour))
	cams := make([]models.RawCamera, n)
	for i := range cams {
		cams[i] = b.camera(fmtID(i), tok)
	}
	return cams
}

func fmtID(i int) string {
	const hex = "0123456789ABCDEF"
	id := []byte("CAM0000000000000")
	for pos := len(id) - 1; i > 0 && pos >= 3; pos-- {
		id[pos] = hex[i%16]
		i /= 16
	}
	return string(id)
}

func TestCamerasExchangeAndDiscovery(t *testing.T) {
	b := newBackend(t)
	p, c := newSessions(t, b)
	ctx := context.Background()

	if c.Origin() != "" {
		t.Fatal("origin known before first use")
	}
	if err := c.EnsureAuthenticated(ctx); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := c.EnsureAuthenticated(ctx); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	if c.Origin() != b.srv.URL {
		t.Errorf("origin = %q, want %q", c.Origin(), b.srv.URL)
	}
	if got := b.exchanges.Load(); got != 1 {
		t.Errorf("exchanges = %d, want 1", got)
	}
	if got := b.logins.Load(); got != 1 {
		t.Errorf("logins = %d, want 1", got)
	}
	if p.BearerExpiry().IsZero() {
		t.Error("portal session not established by camera exchange")
	}
}

func TestCamerasOriginUnavailable(t *testing.T) {
	b := newBackend(t)
	empty := ""
	b.camsServerURL = &empty
	_, c := newSessions(t, b)

	_, err := c.ListCameras(context.Background())
	if !errors.Is(err, ErrOriginUnavailable) {
		t.Fatalf("err = %v, want ErrOriginUnavailable", err)
	}
	if got := b.exchanges.Load(); got != 0 {
		t.Errorf("exchanges = %d, want 0", got)
	}
}

type stubPortal struct {
	mu      sync.Mutex
	bearer  string
	expiry  time.Time
	origin  string
	bearers int
}

func (s *stubPortal) CurrentBearer(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bearers++
	return s.bearer, nil
}

func (s *stubPortal) BearerExpiry() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiry
}

func (s *stubPortal) Contracts(context.Context) ([]models.Contract, error) {
	var c models.Contract
	c.ISPOrg.CamsServer.URL = s.origin
	return []models.Contract{c}, nil
}

func TestCamerasReexchangeAfterPortalExpiry(t *testing.T) {
	b := newBackend(t)
	stub := &stubPortal{
		bearer: b.portal(),
		expiry: time.Now().Add(time.Hour),
		origin: b.srv.URL,
	}
	c := NewCameras(b.config(), stub, nil)
	ctx := context.Background()

	if err := c.EnsureAuthenticated(ctx); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := c.EnsureAuthenticated(ctx); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if got := b.exchanges.Load(); got != 1 {
		t.Fatalf("exchanges = %d, want 1", got)
	}

	stub.mu.Lock()
	stub.expiry = time.Now().Add(-time.Minute)
	stub.mu.Unlock()

	if err := c.EnsureAuthenticated(ctx); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if got := b.exchanges.Load(); got != 2 {
		t.Errorf("exchanges = %d, want 2", got)
	}
}

func TestCamerasExchangeRejected(t *testing.T) {
	b := newBackend(t)
	stub := &stubPortal{bearer: "not-the-portal-token", expiry: time.Now().Add(time.Hour), origin: b.srv.URL}
	c := NewCameras(b.config(), stub, nil)

	err := c.EnsureAuthenticated(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) || authErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("err = %v, want 401 AuthError", err)
	}
	if got := b.exchanges.Load(); got != 1 {
		t.Errorf("exchanges = %d, want 1", got)
	}
}

func TestCamerasRecoverAfterServerRevokesTokens(t *testing.T) {
	b := newBackend(t)
	b.setCameras(freshCameras(t, b, 2))
	p, c := newSessions(t, b)
	ctx := context.Background()

	if _, err := c.ListCameras(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}
	old, err := p.CurrentBearer(ctx)
	if err != nil {
		t.Fatalf("current bearer: %v", err)
	}

	// both tokens are still fresh locally but the server no longer accepts them
	b.rotateTokens()

	cams, err := c.ListCameras(ctx)
	if err != nil {
		t.Fatalf("list after revocation: %v", err)
	}
	if len(cams) != 2 {
		t.Errorf("cameras = %d, want 2", len(cams))
	}
	if got := b.logins.Load(); got != 2 {
		t.Errorf("logins = %d, want 2", got)
	}
	// initial, refused with the revoked bearer, retried after re-login
	if got := b.exchanges.Load(); got != 3 {
		t.Errorf("exchanges = %d, want 3", got)
	}

	bearer, err := p.CurrentBearer(ctx)
	if err != nil {
		t.Fatalf("current bearer: %v", err)
	}
	if bearer == old || bearer != b.portal() {
		t.Error("portal still holds the revoked bearer")
	}
}

func TestListCamerasPagination(t *testing.T) {
	b := newBackend(t)
	b.setCameras(freshCameras(t, b, 125))
	_, c := newSessions(t, b)

	cams, err := c.ListCameras(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(cams) != 125 {
		t.Errorf("cameras = %d, want 125", len(cams))
	}

	pages := b.pagesRequested()
	if len(pages) != 3 || pages[0] != 1 || pages[1] != 2 || pages[2] != 3 {
		t.Errorf("pages = %v, want [1 2 3]", pages)
	}
}

func TestListCamerasExactMultipleOfPageSize(t *testing.T) {
	b := newBackend(t)
	b.setCameras(freshCameras(t, b, 120))
	_, c := newSessions(t, b)

	cams, err := c.ListCameras(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(cams) != 120 {
		t.Errorf("cameras = %d, want 120", len(cams))
	}
	// the empty third page ends the listing
	if pages := b.pagesRequested(); len(pages) != 3 {
		t.Errorf("pages = %v, want 3 requests", pages)
	}
}

func TestListCamerasRestartsAfter401(t *testing.T) {
	b := newBackend(t)
	b.setCameras(freshCameras(t, b, 125))

	failed := false
	b.listStatus = func(page int) int {
		if page == 2 && !failed {
			failed = true
			return http.StatusUnauthorized
		}
		return 0
	}
	_, c := newSessions(t, b)

	cams, err := c.ListCameras(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(cams) != 125 {
		t.Errorf("cameras = %d, want 125 without duplicates", len(cams))
	}

	pages := b.pagesRequested()
	want := []int{1, 2, 1, 2, 3}
	if len(pages) != len(want) {
		t.Fatalf("pages = %v, want %v", pages, want)
	}
	for i := range want {
		if pages[i] != want[i] {
			t.Fatalf("pages = %v, want %v", pages, want)
		}
	}
	if got := b.exchanges.Load(); got != 2 {
		t.Errorf("exchanges = %d, want 2", got)
	}
}

func TestListCamerasReplacesInventory(t *testing.T) {
	b := newBackend(t)
	cams := freshCameras(t, b, 2)
	b.setCameras(cams)
	_, c := newSessions(t, b)
	ctx := context.Background()

	if _, err := c.ListCameras(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}

	b.setCameras(cams[:1])
	got, err := c.ListCameras(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("cameras = %d, want 1", len(got))
	}
	if _, ok := c.Cameras()[cams[1].Number]; ok {
		t.Error("removed camera still cached")
	}
}

func TestListCamerasCoalesced(t *testing.T) {
	b := newBackend(t)
	b.setCameras(freshCameras(t, b, 3))
	b.listGate = make(chan struct{})
	b.listStarted = make(chan struct{}, 1)
	_, c := newSessions(t, b)
	ctx := context.Background()

	const callers = 5
	errs := make(chan error, callers)

	go func() {
		_, err := c.ListCameras(ctx)
		errs <- err
	}()
	<-b.listStarted

	for i := 1; i < callers; i++ {
		go func() {
			_, err := c.ListCameras(ctx)
			errs <- err
		}()
	}
	// let the late callers join the flight before releasing it
	time.Sleep(100 * time.Millisecond)
	close(b.listGate)

	for i := 0; i < callers; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("list: %v", err)
		}
	}
	if got := b.listings.Load(); got != 1 {
		t.Errorf("listings = %d, want 1", got)
	}
}

func TestListCamerasCancelledWaiter(t *testing.T) {
	b := newBackend(t)
	b.setCameras(freshCameras(t, b, 3))
	b.listGate = make(chan struct{})
	b.listStarted = make(chan struct{}, 1)
	_, c := newSessions(t, b)

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := c.ListCameras(ctx)
		errs <- err
	}()

	<-b.listStarted
	cancel()
	if err := <-errs; !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	close(b.listGate)

	deadline := time.Now().Add(5 * time.Second)
	for len(c.Cameras()) != 3 {
		if time.Now().After(deadline) {
			t.Fatal("abandoned listing never populated the inventory")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCameraURL(t *testing.T) {
	b := newBackend(t)
	tok := signedToken(t, time.Now().Add(24*time.Hour))
	b.setCameras([]models.RawCamera{b.camera("1234567890ABCDEF", tok)})
	_, c := newSessions(t, b)
	ctx := context.Background()

	u, ok, err := c.CameraURL(ctx, "1234567890ABCDEF", CapabilityStream)
	if err != nil || !ok {
		t.Fatalf("url: ok=%v err=%v", ok, err)
	}
	if want := "rtsp://flussonic-msk-1.cams.example.com/1234567890ABCDEF?token=" + tok + "&tracks=v1a1"; u != want {
		t.Errorf("stream = %q, want %q", u, want)
	}

	u, _, _ = c.CameraURL(ctx, "1234567890ABCDEF", CapabilityScreenshot)
	if want := "https://" + b.host() + "/api/v0/screenshots/1234567890ABCDEF~600.jpg?token=" + tok; u != want {
		t.Errorf("screenshot = %q, want %q", u, want)
	}

	// unknown id on the first access, then served from the cache
	if got := b.listings.Load(); got != 1 {
		t.Errorf("listings = %d, want 1", got)
	}

	_, ok, err = c.CameraURL(ctx, "FFFFFFFFFFFFFFFF", CapabilityStream)
	if err != nil || ok {
		t.Errorf("unknown camera: ok=%v err=%v", ok, err)
	}
	if got := b.listings.Load(); got != 2 {
		t.Errorf("listings = %d, want 2 after one refresh for the unknown id", got)
	}
}

func TestCameraURLStaleTokenRefreshesOnce(t *testing.T) {
	b := newBackend(t)
	// inside the refresh buffer, and the backend keeps serving it
	stale := signedToken(t, time.Now().Add(2*time.Minute))
	b.setCameras([]models.RawCamera{b.camera("1234567890ABCDEF", stale)})
	_, c := newSessions(t, b)
	ctx := context.Background()

	if _, err := c.ListCameras(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}

	u, ok, err := c.CameraURL(ctx, "1234567890ABCDEF", CapabilityWSStream)
	if err != nil || !ok {
		t.Fatalf("url: ok=%v err=%v", ok, err)
	}
	if want := "wss://flussonic-msk-1.cams.example.com/1234567890ABCDEF/mse_ld?tracks=a1v1&realtime=true&token=" + stale; u != want {
		t.Errorf("ws stream = %q, want %q", u, want)
	}
	if got := b.listings.Load(); got != 2 {
		t.Errorf("listings = %d, want 2", got)
	}
}

func TestCameraURLPicksUpRenewedToken(t *testing.T) {
	b := newBackend(t)
	stale := signedToken(t, time.Now().Add(time.Minute))
	b.setCameras([]models.RawCamera{b.camera("1234567890ABCDEF", stale)})
	_, c := newSessions(t, b)
	ctx := context.Background()

	if _, err := c.ListCameras(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}

	fresh := signedToken(t, time.Now().Add(24*time.Hour))
	b.setCameras([]models.RawCamera{b.camera("1234567890ABCDEF", fresh)})

	u, _, err := c.CameraURL(ctx, "1234567890ABCDEF", CapabilityStream)
	if err != nil {
		t.Fatalf("url: %v", err)
	}
	if want := StreamURL("flussonic-msk-1.cams.example.com", "1234567890ABCDEF", fresh); u != want {
		t.Errorf("stream = %q, want renewed token", u)
	}
}

func TestCameraLookup(t *testing.T) {
	b := newBackend(t)
	b.setCameras(freshCameras(t, b, 2))
	_, c := newSessions(t, b)
	ctx := context.Background()

	id := fmtID(1)
	cam, ok, err := c.Camera(ctx, id)
	if err != nil || !ok {
		t.Fatalf("camera: ok=%v err=%v", ok, err)
	}
	if cam.ID != id || cam.Title != "камера "+id {
		t.Errorf("unexpected camera: %+v", cam)
	}

	if _, ok, _ := c.Camera(ctx, "missing"); ok {
		t.Error("missing camera reported present")
	}
}

func TestCamerasBuildDeviceName(t *testing.T) {
	b := newBackend(t)
	_, c := newSessions(t, b)

	if got := c.BuildDeviceName("камера1_фасад1"); got != "Test config.kamera1_fasad1" {
		t.Errorf("BuildDeviceName = %q", got)
	}
}
