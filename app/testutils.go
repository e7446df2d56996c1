package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/sushihentaime/blogpipe/internal/blogservice"
	"github.com/sushihentaime/blogpipe/internal/commentservice"
	"github.com/sushihentaime/blogpipe/internal/common"
	"github.com/sushihentaime/blogpipe/internal/config"
	"github.com/sushihentaime/blogpipe/internal/userservice"
)

type testServer struct {
	*httptest.Server
}

func newTestServer(t *testing.T, h http.Handler) *testServer {
	ts := httptest.NewServer(h)

	t.Cleanup(ts.Close)

	return &testServer{ts}
}

type fakeBroker struct{ connected bool }

func (b fakeBroker) IsConnected() bool { return b.connected }

type mockApplication struct {
	*application
	dbMock   sqlmock.Sqlmock
	producer *common.MockMessageProducer
}

// newMockApplication builds an application on sqlmock, an in-memory cache and a mock producer.
func newMockApplication(t *testing.T) *mockApplication {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	cache := common.NewMemoryCache(time.Minute, time.Minute)
	metrics := common.NewMetrics()
	producer := new(common.MockMessageProducer)

	app := &application{
		config:          &config.Config{Environment: "testing", Version: "test"},
		logger:          logger,
		db:              db,
		broker:          fakeBroker{connected: true},
		metricsRegistry: metrics,
		userService:     userservice.NewUserService(db, cache, nil, logger, metrics),
		blogService:     blogservice.NewBlogService(db, cache, producer, logger, metrics),
		commentService:  commentservice.NewCommentService(db, logger),
	}

	return &mockApplication{application: app, dbMock: dbMock, producer: producer}
}

// newTestApplication wires the application to postgres and rabbitmq containers and starts the blog consumer.
func newTestApplication(t *testing.T) (*application, *sql.DB) {
	db := common.TestDB("file://../migrations", t)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	broker, err := common.NewMessageBroker(common.TestRabbitMQ(t))
	require.NoError(t, err)
	t.Cleanup(func() { broker.Close() })

	require.NoError(t, common.SetupBlogQueue(broker))

	cfg, err := config.Load("../.test.env")
	require.NoError(t, err)

	cache := common.NewMemoryCache(common.CacheTTL, time.Minute)
	metrics := common.NewMetrics()

	app := &application{
		config:          cfg,
		logger:          logger,
		db:              db,
		broker:          broker,
		metricsRegistry: metrics,
		userService:     userservice.NewUserService(db, cache, nil, logger, metrics),
		blogService:     blogservice.NewBlogService(db, cache, broker, logger, metrics),
		commentService:  commentservice.NewCommentService(db, logger),
	}

	ctx, cancel := context.WithCancel(context.Background())
	consumer := blogservice.NewConsumer(db, broker, "blogpipe-test", cfg.ConsumerTimeout, logger, metrics)
	app.background("blog consumer", func() error {
		return consumer.Run(ctx)
	})
	t.Cleanup(func() {
		cancel()
		app.wg.Wait()
	})

	return app, db
}

func readResponse(t *testing.T, res *http.Response) (int, http.Header, envelope) {
	defer res.Body.Close()

	responseBody, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(responseBody, &env))

	return res.StatusCode, res.Header, env
}

func (ts *testServer) do(t *testing.T, method, path string, payload any) (int, http.Header, envelope) {
	var body io.Reader
	if payload != nil {
		js, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(js)
	}

	req, err := http.NewRequest(method, ts.URL+path, body)
	require.NoError(t, err)

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := ts.Client().Do(req)
	require.NoError(t, err)

	return readResponse(t, res)
}

func (ts *testServer) get(t *testing.T, path string) (int, http.Header, envelope) {
	return ts.do(t, http.MethodGet, path, nil)
}

func (ts *testServer) post(t *testing.T, path string, payload any) (int, http.Header, envelope) {
	return ts.do(t, http.MethodPost, path, payload)
}

func (ts *testServer) put(t *testing.T, path string, payload any) (int, http.Header, envelope) {
	return ts.do(t, http.MethodPut, path, payload)
}

func (ts *testServer) patch(t *testing.T, path string) (int, http.Header, envelope) {
	return ts.do(t, http.MethodPatch, path, nil)
}

func (ts *testServer) delete(t *testing.T, path string) (int, http.Header, envelope) {
	return ts.do(t, http.MethodDelete, path, nil)
}
