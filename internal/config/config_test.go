package config

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/example/letter-snap/internal/camera"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LETTERSNAP_ADDR", "LETTERSNAP_GRPC_ADDR", "LETTERSNAP_PREDICTION_URL",
		"LETTERSNAP_CAMERA", "LETTERSNAP_CAMERA_DEVICE", "LETTERSNAP_STILL_IMAGE",
		"LETTERSNAP_LOG_LEVEL", "LETTERSNAP_LOG_DEVELOPMENT", "JWT_SECRET", "JWT_AUDIENCE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.Prediction.BaseURL != "http://localhost:8000" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Camera.Type != CameraOpenCV || cfg.Camera.Width != 1280 || cfg.Camera.Height != 720 {
		t.Fatalf("unexpected camera defaults %+v", cfg.Camera)
	}
	if cfg.ShutdownTimeout() != 15*time.Second {
		t.Fatalf("unexpected shutdown timeout %v", cfg.ShutdownTimeout())
	}
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "letter-snap.yaml", `
server:
  addr: ":9090"
  grpc_addr: ":9091"
prediction:
  base_url: "https://classifier.internal"
camera:
  type: none
auth:
  jwt_secret: s3cret
log:
  level: debug
  development: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != ":9090" || cfg.Server.GRPCAddr != ":9091" {
		t.Fatalf("unexpected server %+v", cfg.Server)
	}
	if cfg.Prediction.BaseURL != "https://classifier.internal" {
		t.Fatalf("unexpected base url %q", cfg.Prediction.BaseURL)
	}
	if cfg.Auth.JWTSecret != "s3cret" || cfg.Log.Level != "debug" || !cfg.Log.Development {
		t.Fatalf("unexpected auth/log %+v %+v", cfg.Auth, cfg.Log)
	}
	if cfg.Camera.Width != 1280 {
		t.Fatalf("expected unset fields to keep defaults, got width %d", cfg.Camera.Width)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "letter-snap.yaml", "prediction:\n  base_url: http://file:8000\n")
	t.Setenv("LETTERSNAP_PREDICTION_URL", "http://env:8000")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("LETTERSNAP_LOG_DEVELOPMENT", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Prediction.BaseURL != "http://env:8000" {
		t.Fatalf("expected env override, got %q", cfg.Prediction.BaseURL)
	}
	if cfg.Auth.JWTSecret != "from-env" || !cfg.Log.Development {
		t.Fatalf("unexpected overrides %+v %+v", cfg.Auth, cfg.Log)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"relative url":  "prediction:\n  base_url: localhost:8000\n",
		"ftp url":       "prediction:\n  base_url: ftp://host\n",
		"camera type":   "camera:\n  type: webcam9000\n",
		"still no path": "camera:\n  type: still\n",
		"bad yaml":      "server: [",
		"empty addr":    "server:\n  addr: \"\"\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			if _, err := Load(writeFile(t, "c.yaml", content)); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}
}

func TestLoadRejectsBadBoolEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("LETTERSNAP_LOG_DEVELOPMENT", "sometimes")
	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "LETTERSNAP_LOG_DEVELOPMENT") {
		t.Fatalf("expected env parse error, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("LETTERSNAP_CAMERA_DEVICE")
	path := writeFile(t, ".env", "LETTERSNAP_CAMERA_DEVICE=/dev/video2\n")
	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("LETTERSNAP_CAMERA_DEVICE") })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Camera.Device != "/dev/video2" {
		t.Fatalf("expected device from .env, got %q", cfg.Camera.Device)
	}
}

func TestLoadEnvFileMissingIsIgnored(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("expected missing .env to be ignored, got %v", err)
	}
	if err := LoadEnvFile(""); err != nil {
		t.Fatalf("expected empty path to be ignored, got %v", err)
	}
}

func TestCameraSource(t *testing.T) {
	cfg := Default()
	cfg.Camera.Type = CameraNone
	src, err := cfg.CameraSource()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := src.RequestStream(context.Background(), cfg.Constraints()); !errors.Is(err, camera.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	imgPath := filepath.Join(t.TempDir(), "hand.png")
	f, err := os.Create(imgPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 3, 3))); err != nil {
		t.Fatal(err)
	}
	f.Close()

	cfg.Camera.Type = CameraStill
	cfg.Camera.StillImage = imgPath
	src, err = cfg.CameraSource()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stream, err := src.RequestStream(context.Background(), cfg.Constraints())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stream.Close()
}
