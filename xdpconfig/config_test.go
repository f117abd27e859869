package xdpconfig

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	d, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if d.Arena.ChunkSize != 4096 {
		t.Errorf("ChunkSize = %d, want 4096", d.Arena.ChunkSize)
	}
	if d.Arena.FrameHeadroom != 256 {
		t.Errorf("FrameHeadroom = %d, want 256", d.Arena.FrameHeadroom)
	}
	if d.Socket.Mode != "driver" {
		t.Errorf("Mode = %q, want driver", d.Socket.Mode)
	}
	if !d.Socket.ZeroCopy {
		t.Error("ZeroCopy should default to true")
	}
	if d.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", d.LogLevel)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	os.Setenv("XDPCORE_ARENA_CHUNK_SIZE", "2048")
	os.Setenv("XDPCORE_SOCKET_MODE", "generic")
	os.Setenv("XDPCORE_LOG_LEVEL", "debug")
	defer func() {
		os.Unsetenv("XDPCORE_ARENA_CHUNK_SIZE")
		os.Unsetenv("XDPCORE_SOCKET_MODE")
		os.Unsetenv("XDPCORE_LOG_LEVEL")
	}()

	d, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.Arena.ChunkSize != 2048 {
		t.Errorf("ChunkSize = %d, want 2048", d.Arena.ChunkSize)
	}
	if d.Socket.Mode != "generic" {
		t.Errorf("Mode = %q, want generic", d.Socket.Mode)
	}
	if d.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", d.LogLevel)
	}
}

func TestLoadMissingConfigFileErrors(t *testing.T) {
	if _, err := Load("/nonexistent/xdpcore.yaml"); err == nil {
		t.Fatal("Load with missing config file succeeded, want error")
	}
}
