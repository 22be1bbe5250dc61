package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp"
	gototp "github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	iauth "github.com/medlemine/ashport/internal/auth"
	"github.com/medlemine/ashport/internal/auth/totp"
	"github.com/medlemine/ashport/internal/database/testutil"
	"github.com/medlemine/ashport/internal/realtime"
	"github.com/medlemine/ashport/internal/sealing"
	"github.com/medlemine/ashport/internal/services"
	"github.com/medlemine/ashport/internal/storage"
	"github.com/medlemine/ashport/pkg/crypto"
	"github.com/medlemine/ashport/pkg/response"
)

var testEncryptionKey = []byte("0123456789abcdef0123456789abcdef")

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "router-test-secret",
		Issuer:         "ashport-test",
		AccessTokenTTL: time.Minute,
	})
	require.NoError(t, err)

	sealer, err := sealing.New(testEncryptionKey,
		sealing.WithArgon2Parameters(crypto.Argon2Parameters{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLength: 32}))
	require.NoError(t, err)

	totpSvc, err := totp.NewService(db, testEncryptionKey)
	require.NoError(t, err)

	audit, err := services.NewAuditService(db)
	require.NoError(t, err)

	admins, err := services.NewAdminService(db)
	require.NoError(t, err)

	portal, err := services.NewPortalService(db)
	require.NoError(t, err)

	verifications, err := services.NewVerificationService(db, storage.NewMemoryImageStore(), sealer, audit)
	require.NoError(t, err)

	devices, err := services.NewDeviceService(db, totpSvc)
	require.NoError(t, err)

	subscriptions, err := services.NewSubscriptionService(db, totpSvc)
	require.NoError(t, err)

	_, err = admins.Create(context.Background(), services.CreateAdminInput{
		Email:    "root@example.com",
		Password: "super-secret",
		Role:     "super_admin",
	})
	require.NoError(t, err)

	router, err := NewRouter(Dependencies{
		JWT:           jwtSvc,
		Admins:        admins,
		Portal:        portal,
		Verifications: verifications,
		Devices:       devices,
		Subscriptions: subscriptions,
		Relay:         realtime.NewRelay(),
	})
	require.NoError(t, err)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var payload response.Response
	if len(w.Body.Bytes()) > 0 && w.Header().Get("Content-Type") != "image/png" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload), "body: %s", w.Body.String())
	}
	return w, payload
}

func adminToken(t *testing.T, router *gin.Engine) string {
	t.Helper()

	w, payload := doJSON(t, router, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "root@example.com",
		"password": "super-secret",
	})
	require.Equal(t, http.StatusOK, w.Code)

	data := payload.Data.(map[string]any)
	tokens := data["tokens"].(map[string]any)
	return tokens["access_token"].(string)
}

func submitPayload() gin.H {
	img := base64.StdEncoding.EncodeToString([]byte("license-photo"))
	return gin.H{
		"full_name":    "Jane Doe",
		"address":      "1 Main St, Springfield",
		"phone_number": "+15551234567",
		"images":       []string{img, img},
	}
}

func TestHealthAndEnvelope(t *testing.T) {
	router := newTestRouter(t)

	w, payload := doJSON(t, router, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, payload.Success)

	w, payload = doJSON(t, router, http.MethodGet, "/api/admins", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.False(t, payload.Success)
	require.Equal(t, "UNAUTHORIZED", payload.Error.Code)
}

func TestVerificationReviewJourney(t *testing.T) {
	router := newTestRouter(t)

	// Submit
	w, payload := doJSON(t, router, http.MethodPost, "/api/verifications", "", submitPayload())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := payload.Data.(map[string]any)
	require.Equal(t, "+15551234567", created["phone_number"])
	require.Equal(t, "pending", created["status"])
	recordID := created["id"].(string)

	// Status check records a slugged resubmission
	w, payload = doJSON(t, router, http.MethodPost, "/api/verifications/status-check", "", gin.H{
		"phone_number": "+15551234567",
	})
	require.Equal(t, http.StatusOK, w.Code)
	check := payload.Data.(map[string]any)
	require.Equal(t, "pending", check["status"])
	require.EqualValues(t, 2, check["total_checks"])

	token := adminToken(t, router)

	// History shows both entries
	w, payload = doJSON(t, router, http.MethodGet, "/api/verifications/phone/+15551234567", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := payload.Data.(map[string]any)
	require.Len(t, history["entries"].([]any), 2)

	// Approve
	w, payload = doJSON(t, router, http.MethodPost, "/api/verifications/"+recordID+"/approve", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	approved := payload.Data.(map[string]any)
	require.Equal(t, "encrypted", approved["status"])
	_, leaked := approved["sealed_data"]
	require.False(t, leaked)

	// Second decision conflicts
	w, payload = doJSON(t, router, http.MethodPost, "/api/verifications/"+recordID+"/decline", token, gin.H{"reason": "nope"})
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "VERIFICATION_ALREADY_PROCESSED", payload.Error.Code)

	// Reveal round-trips the original triple
	w, payload = doJSON(t, router, http.MethodGet, "/api/verifications/"+recordID+"/decrypted", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	revealed := payload.Data.(map[string]any)
	require.Equal(t, "Jane Doe", revealed["full_name"])
	require.Equal(t, "1 Main St, Springfield", revealed["address"])
	require.Equal(t, "+15551234567", revealed["phone_number"])

	// Decrypted reveal is admin-only
	w, _ = doJSON(t, router, http.MethodGet, "/api/verifications/"+recordID+"/decrypted", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPortalSubscriptionJourney(t *testing.T) {
	router := newTestRouter(t)

	// Register portal user
	w, payload := doJSON(t, router, http.MethodPost, "/api/portal/register", "", gin.H{
		"email":    "jane@example.com",
		"password": "long-enough-pw",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	tokens := payload.Data.(map[string]any)["tokens"].(map[string]any)
	token := tokens["access_token"].(string)

	// Plans are public
	w, payload = doJSON(t, router, http.MethodGet, "/api/plans", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, payload.Data.([]any), 3)

	// Register a device, capture the TOTP secret from the provisioning URI
	w, payload = doJSON(t, router, http.MethodPost, "/api/devices", token, gin.H{
		"name":   "Living room unit",
		"serial": "SN-0001",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	enrolment := payload.Data.(map[string]any)
	deviceID := enrolment["device"].(map[string]any)["id"].(string)

	key, err := otp.NewKeyFromURL(enrolment["provisioning_uri"].(string))
	require.NoError(t, err)

	// QR code can be re-issued
	req := httptest.NewRequest(http.MethodGet, "/api/devices/"+deviceID+"/qr", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	qr := httptest.NewRecorder()
	router.ServeHTTP(qr, req)
	require.Equal(t, http.StatusOK, qr.Code)
	require.Equal(t, "image/png", qr.Header().Get("Content-Type"))

	// Purchase stays inactive until a valid code arrives
	w, payload = doJSON(t, router, http.MethodPost, "/api/subscriptions", token, gin.H{
		"device_id": deviceID,
		"plan_code": "monthly",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sub := payload.Data.(map[string]any)
	require.Equal(t, "inactive", sub["status"])
	subID := sub["id"].(string)

	w, payload = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/subscriptions/%s/activate", subID), token, gin.H{
		"code": "000000",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "INVALID_TOTP_CODE", payload.Error.Code)

	code, err := gototp.GenerateCode(key.Secret(), time.Now())
	require.NoError(t, err)

	w, payload = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/subscriptions/%s/activate", subID), token, gin.H{
		"code": code,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "active", payload.Data.(map[string]any)["status"])

	// Progress is visible to the owner
	w, payload = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/subscriptions/%s/progress", subID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	progress := payload.Data.(map[string]any)
	require.EqualValues(t, 30, progress["days_total"])

	// Admin tokens do not open portal routes
	w, _ = doJSON(t, router, http.MethodGet, "/api/devices", adminToken(t, router), nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSuperAdminGateOnAdminManagement(t *testing.T) {
	router := newTestRouter(t)
	token := adminToken(t, router)

	// Super admin can create a regular admin
	w, payload := doJSON(t, router, http.MethodPost, "/api/admins", token, gin.H{
		"email":    "ops@example.com",
		"password": "long-enough-pw",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// A second super admin is rejected
	w, payload = doJSON(t, router, http.MethodPost, "/api/admins", token, gin.H{
		"email":    "root2@example.com",
		"password": "long-enough-pw",
		"role":     "super_admin",
	})
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "SUPER_ADMIN_EXISTS", payload.Error.Code)

	// The regular admin cannot manage admins
	w, opsPayload := doJSON(t, router, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "ops@example.com",
		"password": "long-enough-pw",
	})
	require.Equal(t, http.StatusOK, w.Code)
	opsToken := opsPayload.Data.(map[string]any)["tokens"].(map[string]any)["access_token"].(string)

	w, payload = doJSON(t, router, http.MethodPost, "/api/admins", opsToken, gin.H{
		"email":    "intruder@example.com",
		"password": "long-enough-pw",
	})
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "FORBIDDEN", payload.Error.Code)

	// But can read the review queue
	w, _ = doJSON(t, router, http.MethodGet, "/api/verifications", opsToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
}
