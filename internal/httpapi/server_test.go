package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"agritrace/internal/domain/lot"
	"agritrace/internal/infrastructure/blob/fs"
	"agritrace/internal/infrastructure/cache"
	"agritrace/internal/infrastructure/metrics"
	"agritrace/internal/infrastructure/persistence/sqlite/model"
	"agritrace/internal/infrastructure/persistence/sqlite/repository"
	"agritrace/internal/infrastructure/persistence/sqlite/uow"
	"agritrace/internal/infrastructure/session"
	"agritrace/internal/ports"
	"agritrace/internal/usecase/lots"
)

type testAPI struct {
	handler http.Handler
	metrics *metrics.Prometheus
}

type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, ports.ContractPrompt) (ports.ContractDraft, error) {
	return ports.ContractDraft{}, errors.New("upstream 500")
}

func (failingGenerator) Name() string { return "failing" }

func newTestAPI(t *testing.T, opts ...lots.Option) testAPI {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "api.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	blobs, err := fs.New(filepath.Join(t.TempDir(), "blobs"))
	if err != nil {
		t.Fatalf("fs.New() error = %v", err)
	}
	prom := metrics.NewPrometheus()
	base := []lots.Option{lots.WithBlobStore(blobs), lots.WithMetrics(prom)}
	svc := lots.NewService(repository.NewLotRepository(db), uow.NewUnitOfWork(db), cache.NewSQLiteCache(db), append(base, opts...)...)

	issuer, err := session.NewJWTIssuer("test-secret-at-least-16", time.Hour)
	if err != nil {
		t.Fatalf("NewJWTIssuer() error = %v", err)
	}
	handler, err := NewHandler(Deps{
		Lots:           svc,
		Sessions:       issuer,
		Metrics:        prom,
		MetricsHandler: prom.Handler(),
		Health:         func(ctx context.Context) error { return sqlDB.PingContext(ctx) },
		StreamPoll:     20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	return testAPI{handler: handler, metrics: prom}
}

func (a testAPI) do(t *testing.T, method string, path string, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	a.handler.ServeHTTP(resp, req)
	return resp
}

func (a testAPI) signIn(t *testing.T, name string, role string) string {
	t.Helper()

	resp := a.do(t, http.MethodPost, "/api/session", "", sessionRequest{Name: name, Email: name + "@example.com", Role: role})
	if resp.Code != http.StatusCreated {
		t.Fatalf("session status = %d; body=%s", resp.Code, resp.Body.String())
	}
	var out sessionResponse
	decodeBody(t, resp, &out)
	return out.Token
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder, dst any) {
	t.Helper()

	if err := json.Unmarshal(resp.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response: %v; body=%s", err, resp.Body.String())
	}
}

func (a testAPI) registerLot(t *testing.T, token string) lotResponse {
	t.Helper()

	resp := a.do(t, http.MethodPost, "/api/lots", token, registerLotRequest{
		ProduceName:  "Heirloom Tomatoes",
		Origin:       "Green Valley Farms",
		PlantingDate: "2026-01-01",
		HarvestDate:  "2026-03-01",
		ItemCount:    300,
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("register status = %d; body=%s", resp.Code, resp.Body.String())
	}
	var out lotResponse
	decodeBody(t, resp, &out)
	return out
}

func TestLotLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	farmer := api.signIn(t, "ana", "farmer")
	distributor := api.signIn(t, "hub", "distributor")

	created := api.registerLot(t, farmer)
	if !strings.HasPrefix(created.ID, "LOT-") || created.CurrentStatus != lot.StatusRegistered {
		t.Fatalf("created = %+v", created)
	}

	resp := api.do(t, http.MethodPost, "/api/lots/"+created.ID+"/advance", distributor, advanceLotRequest{Status: "In-Transit to Distributor"})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("distributor advance status = %d, want 403; body=%s", resp.Code, resp.Body.String())
	}

	resp = api.do(t, http.MethodPost, "/api/lots/"+created.ID+"/advance", farmer, advanceLotRequest{Status: "received-by-retailer"})
	if resp.Code != http.StatusConflict {
		t.Fatalf("skip advance status = %d, want 409; body=%s", resp.Code, resp.Body.String())
	}

	resp = api.do(t, http.MethodPost, "/api/lots/"+created.ID+"/advance", farmer, advanceLotRequest{Status: "in-transit-to-distributor", Location: "Truck 3"})
	if resp.Code != http.StatusOK {
		t.Fatalf("advance status = %d; body=%s", resp.Code, resp.Body.String())
	}
	var advanced lotResponse
	decodeBody(t, resp, &advanced)
	if len(advanced.History) != 2 || advanced.History[1].Location != "Truck 3" {
		t.Fatalf("history = %+v", advanced.History)
	}

	resp = api.do(t, http.MethodGet, "/api/lots?status=in-transit-to-distributor", distributor, nil)
	var listed []lotResponse
	decodeBody(t, resp, &listed)
	if resp.Code != http.StatusOK || len(listed) != 1 || listed[0].ID != created.ID {
		t.Fatalf("list status = %d, lots = %+v", resp.Code, listed)
	}

	resp = api.do(t, http.MethodGet, "/api/lots/"+created.ID+"/status", distributor, nil)
	var status statusResponse
	decodeBody(t, resp, &status)
	if status.Status != lot.StatusInTransitToDistributor {
		t.Fatalf("status = %+v", status)
	}

	resp = api.do(t, http.MethodGet, "/api/dashboard", distributor, nil)
	var dash dashboardResponse
	decodeBody(t, resp, &dash)
	if resp.Code != http.StatusOK || len(dash.Incoming) != 1 || dash.Incoming[0].ShippedBy != "ana" {
		t.Fatalf("dashboard status = %d, body = %s", resp.Code, resp.Body.String())
	}

	if resp := api.do(t, http.MethodGet, "/api/lots/LOT-MISSING", farmer, nil); resp.Code != http.StatusNotFound {
		t.Fatalf("missing lot status = %d, want 404", resp.Code)
	}
}

func TestAPIRequiresSession(t *testing.T) {
	api := newTestAPI(t)

	if resp := api.do(t, http.MethodGet, "/api/lots", "", nil); resp.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", resp.Code)
	}
	if resp := api.do(t, http.MethodGet, "/api/me", "not-a-token", nil); resp.Code != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d, want 401", resp.Code)
	}
	if resp := api.do(t, http.MethodPost, "/api/session", "", sessionRequest{Name: "x", Role: "consumer"}); resp.Code != http.StatusBadRequest {
		t.Fatalf("bad role status = %d, want 400", resp.Code)
	}

	token := api.signIn(t, "ana", "farmer")
	resp := api.do(t, http.MethodGet, "/api/me", token, nil)
	var actor ports.Actor
	decodeBody(t, resp, &actor)
	if actor.Role != lot.RoleFarmer || actor.DisplayName != "ana" || actor.ID == "" {
		t.Fatalf("actor = %+v", actor)
	}
}

func TestRegisterValidationErrorListsFields(t *testing.T) {
	api := newTestAPI(t)
	token := api.signIn(t, "ana", "farmer")

	resp := api.do(t, http.MethodPost, "/api/lots", token, registerLotRequest{ProduceName: "Kale"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Code)
	}
	var body errorResponse
	decodeBody(t, resp, &body)
	if len(body.Fields) == 0 {
		t.Fatalf("body = %+v, want field errors", body)
	}
}

func TestPublicTraceAndFeedback(t *testing.T) {
	api := newTestAPI(t)
	created := api.registerLot(t, api.signIn(t, "ana", "farmer"))

	resp := api.do(t, http.MethodPost, "/trace/"+created.ID+"/feedback", "", feedbackRequest{FeedbackText: "  "})
	var body errorResponse
	decodeBody(t, resp, &body)
	if resp.Code != http.StatusBadRequest || body.Error != feedbackRequiredMessage {
		t.Fatalf("empty feedback status = %d, body = %+v", resp.Code, body)
	}

	resp = api.do(t, http.MethodPost, "/trace/"+created.ID+"/feedback", "", feedbackRequest{FeedbackText: "Juicy"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("feedback status = %d; body=%s", resp.Code, resp.Body.String())
	}

	resp = api.do(t, http.MethodGet, "/trace/"+created.ID, "", nil)
	var trace traceResponse
	decodeBody(t, resp, &trace)
	if resp.Code != http.StatusOK || len(trace.Feedback) != 1 || trace.Lot.CurrentStatus != lot.StatusRegistered {
		t.Fatalf("trace status = %d, trace = %+v", resp.Code, trace)
	}

	if resp := api.do(t, http.MethodGet, "/trace/LOT-NONE", "", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("unknown trace status = %d, want 404", resp.Code)
	}
}

func TestCertificateUploadAndDownload(t *testing.T) {
	api := newTestAPI(t)
	token := api.signIn(t, "ana", "farmer")
	created := api.registerLot(t, token)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("name", "organic.txt"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	part, err := form.CreateFormFile("file", "organic.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte("certified organic"))
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/lots/"+created.ID+"/certificates", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	api.handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("upload status = %d; body=%s", resp.Code, resp.Body.String())
	}

	resp = api.do(t, http.MethodGet, "/trace/"+created.ID+"/certificates/organic.txt", "", nil)
	if resp.Code != http.StatusOK || resp.Body.String() != "certified organic" {
		t.Fatalf("download status = %d, body = %q", resp.Code, resp.Body.String())
	}
}

func TestGenerateContractErrors(t *testing.T) {
	input := contractRequest{ProduceDetails: "apples", TrackingRequirements: "cold chain"}

	disabled := newTestAPI(t)
	admin := disabled.signIn(t, "ops", "admin")
	if resp := disabled.do(t, http.MethodPost, "/api/contracts/generate", admin, input); resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("disabled status = %d, want 503", resp.Code)
	}
	farmer := disabled.signIn(t, "ana", "farmer")
	if resp := disabled.do(t, http.MethodPost, "/api/contracts/generate", farmer, input); resp.Code != http.StatusForbidden {
		t.Fatalf("farmer status = %d, want 403", resp.Code)
	}

	failing := newTestAPI(t, lots.WithGenerator(failingGenerator{}))
	admin = failing.signIn(t, "ops", "admin")
	if resp := failing.do(t, http.MethodPost, "/api/contracts/generate", admin, input); resp.Code != http.StatusBadGateway {
		t.Fatalf("upstream failure status = %d, want 502", resp.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	api := newTestAPI(t)
	token := api.signIn(t, "ana", "farmer")
	api.registerLot(t, token)

	if resp := api.do(t, http.MethodGet, "/healthz", "", nil); resp.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.Code)
	}

	resp := api.do(t, http.MethodGet, "/metrics", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", resp.Code)
	}
	text := resp.Body.String()
	for _, want := range []string{
		`agritrace_http_request_duration_seconds_count{code="201",method="POST"`,
		`agritrace_lot_transitions_total{result="ok",status="Registered"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics missing %s", want)
		}
	}
}

func TestTraceStreamPushesUpdates(t *testing.T) {
	api := newTestAPI(t)
	farmer := api.signIn(t, "ana", "farmer")
	created := api.registerLot(t, farmer)

	srv := httptest.NewServer(api.handler)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/trace/" + created.ID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first streamMessage
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if first.Type != "snapshot" || first.Trace.Lot.CurrentStatus != lot.StatusRegistered {
		t.Fatalf("snapshot = %+v", first)
	}

	resp := api.do(t, http.MethodPost, "/api/lots/"+created.ID+"/advance", farmer, advanceLotRequest{Status: "in-transit-to-distributor"})
	if resp.Code != http.StatusOK {
		t.Fatalf("advance status = %d", resp.Code)
	}

	var update streamMessage
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if update.Type != "update" || update.Trace.Lot.CurrentStatus != lot.StatusInTransitToDistributor {
		t.Fatalf("update = %+v", update)
	}
	if update.Trace.LastEventID <= first.Trace.LastEventID {
		t.Fatalf("last event id = %d, want > %d", update.Trace.LastEventID, first.Trace.LastEventID)
	}
}
