package endpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/A-tamer/hospital-management-system/config"
	"github.com/A-tamer/hospital-management-system/middleware"
	"github.com/A-tamer/hospital-management-system/model"
	"github.com/A-tamer/hospital-management-system/store"
	"github.com/A-tamer/hospital-management-system/util"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	adminEmail  = "admin@clinic.test"
	doctorEmail = "dr@clinic.test"
)

// setupEndpointTest returns a router over a fresh in-memory SQLite store
// seeded with an admin and a doctor account without financial access.
func setupEndpointTest(t *testing.T) (*gin.Engine, *store.SQLStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	config.SetRedisClient(nil)
	util.SetAuditLoggerDB(nil)
	util.InitAccountCache(time.Minute)

	dsn := fmt.Sprintf("file:endpoint_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	s := store.NewSQLStore(db)
	require.NoError(t, s.Migrate())

	ctx := context.Background()
	require.NoError(t, s.SaveAccount(ctx, &model.UserAccount{Email: adminEmail, Role: model.RoleAdmin}))
	require.NoError(t, s.SaveAccount(ctx, &model.UserAccount{Email: doctorEmail, Role: model.RoleDoctor}))

	r := NewRouter(RouterOptions{
		AppName: "clinic-test",
		Backend: middleware.Backend{Patients: s, Accounts: s},
	})
	return r, s
}

func doRequest(r *gin.Engine, method, path, email string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if email != "" {
		req.Header.Set(middleware.UserEmailHeader, email)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func doUpload(t *testing.T, r *gin.Engine, path, email, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(middleware.UserEmailHeader, email)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func decodePatient(t *testing.T, w *httptest.ResponseRecorder) model.Patient {
	t.Helper()
	var p model.Patient
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &p))
	return p
}

func currentCode(serial int) string {
	now := time.Now()
	return fmt.Sprintf("%04d/%02d/%04d", now.Year(), int(now.Month()), serial)
}
