// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordingStartStop(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "test_recording.wav")
	engine := newEngine(testAudioConfig(2))

	if err := engine.StartRecording(filename, 16, 0); err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}
	if !engine.IsRecording() {
		t.Error("Engine should be in recording state")
	}

	block := interleave(constantBuffer(testFrameSize, 0.5), constantBuffer(testFrameSize, -0.25))
	for i := 0; i < 3; i++ {
		engine.process(block)
	}

	if err := engine.StopRecording(); err != nil {
		t.Fatalf("Failed to stop recording: %v", err)
	}
	if engine.IsRecording() {
		t.Error("Engine should not be in recording state after stopping")
	}

	f, err := os.Open(filename)
	require.NoError(t, err)
	defer f.Close()

	d := wav.NewDecoder(f)
	require.True(t, d.IsValidFile())
	buf, err := d.FullPCMBuffer()
	require.NoError(t, err)

	assert.Equal(t, 2, buf.Format.NumChannels)
	assert.Equal(t, testSampleRate, buf.Format.SampleRate)
	assert.EqualValues(t, 16, d.BitDepth)
	require.Len(t, buf.Data, 3*testFrameSize*2)
	assert.Equal(t, 16384, buf.Data[0])  // 0.5 * 32767, rounded.
	assert.Equal(t, -8192, buf.Data[1])  // -0.25 * 32767, rounded.
	assert.Equal(t, -16384, buf.Data[2]) // Alternating sign.
}

func TestRecordingErrorCases(t *testing.T) {
	dir := t.TempDir()

	t.Run("Already recording", func(t *testing.T) {
		engine := newEngine(testAudioConfig(2))
		require.NoError(t, engine.StartRecording(filepath.Join(dir, "a.wav"), 16, 0))
		defer engine.StopRecording()

		err := engine.StartRecording(filepath.Join(dir, "b.wav"), 16, 0)
		if !errors.Is(err, ErrAlreadyRecording) {
			t.Errorf("got %v, want ErrAlreadyRecording", err)
		}
	})

	t.Run("Invalid path", func(t *testing.T) {
		engine := newEngine(testAudioConfig(2))
		blocker := filepath.Join(dir, "file")
		require.NoError(t, os.WriteFile(blocker, nil, 0o644))

		if err := engine.StartRecording(filepath.Join(blocker, "x.wav"), 16, 0); err == nil {
			t.Error("Expected error but got none")
		}
		assert.False(t, engine.IsRecording())
	})

	t.Run("Invalid bit depth", func(t *testing.T) {
		engine := newEngine(testAudioConfig(2))
		if err := engine.StartRecording(filepath.Join(dir, "c.wav"), 12, 0); err == nil {
			t.Error("Expected error but got none")
		}
	})

	t.Run("Stop when not recording", func(t *testing.T) {
		engine := newEngine(testAudioConfig(2))
		if err := engine.StopRecording(); err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
	})
}

func TestRecorderMaxDuration(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "short.wav")
	// 1000 frames at 1 kHz.
	r, err := NewRecorder(filename, 1000, 1, 16, 256, time.Second)
	require.NoError(t, err)

	block := constantBuffer(256, 0.1)
	for i := 0; i < 8; i++ {
		require.NoError(t, r.Write(block, block))
	}
	assert.EqualValues(t, 1000, r.Frames())
	require.NoError(t, r.Close())
	require.NoError(t, r.Close(), "second Close")
}

func TestCloseEngineWithRecording(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "test_close_engine.wav")
	engine := newEngine(testAudioConfig(2))

	if err := engine.StartRecording(filename, 24, 0); err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}
	if err := engine.Close(); err != nil {
		t.Fatalf("Failed to close engine: %v", err)
	}
	if engine.IsRecording() {
		t.Error("Engine should not be in recording state after Close()")
	}
	if _, err := os.Stat(filename); err != nil {
		t.Errorf("Recording file was not created: %v", err)
	}
}

func TestRecordingName(t *testing.T) {
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	assert.Equal(t, filepath.Join("out", "capture-20250304-050607.wav"), RecordingName("out", now))
}

func BenchmarkRecordingWrite(b *testing.B) {
	r, err := NewRecorder(filepath.Join(b.TempDir(), "bench.wav"), testSampleRate, 2, 16, testFrameSize, 0)
	if err != nil {
		b.Fatal(err)
	}
	defer r.Close()
	block := constantBuffer(testFrameSize, 0.5)

	b.ReportAllocs()
	for b.Loop() {
		_ = r.Write(block, block)
	}
}
