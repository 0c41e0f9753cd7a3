package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BearBump/ParcelDesk/config"
	"github.com/BearBump/ParcelDesk/internal/broker/kafka"
	"github.com/BearBump/ParcelDesk/internal/broker/messages"
	"github.com/BearBump/ParcelDesk/internal/integrations/track17/fake"
	"github.com/BearBump/ParcelDesk/internal/metrics"
	"github.com/BearBump/ParcelDesk/internal/models"
	"github.com/BearBump/ParcelDesk/internal/ratelimit"
	"github.com/BearBump/ParcelDesk/internal/services/syncer"
)

type recordingProducer struct {
	values [][]byte
}

func (p *recordingProducer) Publish(_ context.Context, _, value []byte, _ map[string]string) error {
	p.values = append(p.values, value)
	return nil
}

func (p *recordingProducer) Close() error { return nil }

type sliceConsumer struct {
	values [][]byte
}

func (c *sliceConsumer) Consume(ctx context.Context, handle func(context.Context, kafka.Record) error) error {
	for i, v := range c.values {
		if err := handle(ctx, kafka.Record{Value: v, Offset: int64(i)}); err != nil {
			return err
		}
	}
	return context.Canceled
}

func (c *sliceConsumer) Close() error { return nil }

type testEnv struct {
	cfgPath  string
	remote   *fake.Remote
	producer *recordingProducer
	consumer *sliceConsumer
}

func newTestEnv(t *testing.T, withKafka bool) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "parceldesk.yaml")
	yaml := "log:\n  env: production\n  level: error\n" +
		"storage:\n  driver: sqlite\n  path: " + filepath.Join(dir, "cache.db") + "\n" +
		"track17:\n  request_interval_ms: 1\n"
	if withKafka {
		yaml += "kafka:\n  enabled: true\n"
	}
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o600))
	return &testEnv{
		cfgPath:  cfgPath,
		remote:   fake.New(),
		producer: &recordingProducer{},
		consumer: &sliceConsumer{},
	}
}

func (e *testEnv) factories() factories {
	f := defaultFactories()
	f.newRemote = func(*config.Config, *ratelimit.Queue, *metrics.Recorder) syncer.Remote { return e.remote }
	f.newProducer = func(*config.Config) producer { return e.producer }
	f.newConsumer = func(*config.Config, bool) feedConsumer { return e.consumer }
	return f
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmdWith(e.factories())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", e.cfgPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_PackageLifecycle(t *testing.T) {
	env := newTestEnv(t, true)

	out, err := env.run(t, "list")
	require.NoError(t, err)
	require.Contains(t, out, "no packages")

	out, err = env.run(t, "add", "LX100200300CN", "--carrier", "3011", "--title", "Headphones")
	require.NoError(t, err)
	require.Contains(t, out, "added LX100200300CN (China Post)")

	out, err = env.run(t, "list")
	require.NoError(t, err)
	require.Contains(t, out, "LX100200300CN")
	require.Contains(t, out, "Headphones")
	require.Contains(t, out, "China Post")

	out, err = env.run(t, "rename", "LX100200300CN", "Earbuds")
	require.NoError(t, err)
	require.Contains(t, out, `renamed LX100200300CN to "Earbuds"`)

	out, err = env.run(t, "carrier", "LX100200300CN", "100001")
	require.NoError(t, err)
	require.Contains(t, out, "DHL Express")

	out, err = env.run(t, "show", "LX100200300CN")
	require.NoError(t, err)
	require.Contains(t, out, "LX100200300CN")
	require.Contains(t, out, "Earbuds")

	out, err = env.run(t, "rm", "LX100200300CN")
	require.NoError(t, err)
	require.Contains(t, out, "removed")

	out, err = env.run(t, "list")
	require.NoError(t, err)
	require.Contains(t, out, "no packages")

	require.NotEmpty(t, env.producer.values)
	var last messages.PackageUpdated
	require.NoError(t, json.Unmarshal(env.producer.values[len(env.producer.values)-1], &last))
	require.True(t, last.Deleted)
	require.Equal(t, "LX100200300CN", last.TrackingNumber)
}

func TestCLI_Errors(t *testing.T) {
	env := newTestEnv(t, false)

	_, err := env.run(t, "add", "LX1")
	require.Error(t, err)

	_, err = env.run(t, "show", "UNKNOWN")
	require.Error(t, err)

	_, err = env.run(t, "carrier", "LX1", "abc")
	require.Error(t, err)

	_, err = env.run(t, "carrier", "LX1", "42")
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)

	_, err = env.run(t, "rename", "missing", "x")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestCLI_Carriers(t *testing.T) {
	env := newTestEnv(t, false)

	out, err := env.run(t, "carriers", "post")
	require.NoError(t, err)
	require.Contains(t, out, "Canada Post")
	require.NotContains(t, out, "FedEx")

	out, err = env.run(t, "carriers", "--popular")
	require.NoError(t, err)
	require.Contains(t, out, "USPS")

	out, err = env.run(t, "carriers", "zzz")
	require.NoError(t, err)
	require.Contains(t, out, "no carriers match")
}

func TestCLI_Version(t *testing.T) {
	env := newTestEnv(t, false)
	out, err := env.run(t, "version", "--format", "json")
	require.NoError(t, err)

	var info versionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	require.Equal(t, "dev", info.Version)
}

func TestCLI_Watch(t *testing.T) {
	env := newTestEnv(t, true)
	at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	upd, err := json.Marshal(messages.NewPackageUpdated(models.Package{
		TrackingNumber: "LX1", Status: models.StatusDelivered, Title: "Books", UpdatedAt: at,
	}, messages.SourceList))
	require.NoError(t, err)
	del, err := json.Marshal(messages.NewPackageDeleted("LX2", at))
	require.NoError(t, err)
	env.consumer.values = [][]byte{upd, []byte("not json"), del}

	out, err := env.run(t, "watch")
	require.NoError(t, err)
	require.Contains(t, out, "LX1")
	require.Contains(t, out, "Delivered")
	require.Contains(t, out, "(list)  Books")
	require.Contains(t, out, "LX2")
	require.Contains(t, out, "removed")
}

func TestRunServe(t *testing.T) {
	env := newTestEnv(t, false)
	cfg, err := config.LoadConfig(env.cfgPath)
	require.NoError(t, err)

	d, err := bootstrap(cfg, env.factories())
	require.NoError(t, err)
	defer d.Close()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, cfg, d, lis) }()

	base := "http://" + lis.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.Contains(t, string(body), "parceldesk_")

	resp, err = http.Get(base + "/stats")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for server to stop")
	}
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Storage.Driver = "floppy"
	_, err = openStore(cfg)
	require.Error(t, err)
}

func TestOpenStore_Badger(t *testing.T) {
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Storage.Driver = "badger"
	cfg.Storage.Path = t.TempDir()
	st, err := openStore(cfg)
	require.NoError(t, err)
	require.NoError(t, st.Close())
}

func TestNewRemote_DemoRemoteUsesQueue(t *testing.T) {
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	require.Empty(t, cfg.Track17.BaseURL)

	var queued atomic.Int64
	q := ratelimit.NewQueue(time.Millisecond).WithWaitObserver(func(time.Duration) { queued.Add(1) })
	t.Cleanup(q.Close)

	remote := newRemote(cfg, q, metrics.New())
	require.IsType(t, &fake.Remote{}, remote)
	require.NoError(t, remote.Register(context.Background(), "LX1", 3011, ""))
	_, err = remote.ListTracks(context.Background(), 1, 40)
	require.NoError(t, err)
	require.Equal(t, int64(2), queued.Load())
}
