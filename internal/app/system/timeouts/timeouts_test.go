package timeouts

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestConfigure_IgnoresZero(t *testing.T) {
	t.Cleanup(Reset)

	Configure(Config{Short: 7 * time.Second})

	if got := Short(); got != 7*time.Second {
		t.Errorf("Short() = %v, want 7s", got)
	}
	if got := Long(); got != DefaultLong {
		t.Errorf("Long() = %v, want default %v", got, DefaultLong)
	}
}

func TestConfigureFromEnv(t *testing.T) {
	t.Cleanup(Reset)
	t.Setenv("CAPSTONE_TIMEOUT_PING", "500ms")
	t.Setenv("CAPSTONE_TIMEOUT_BATCH", "2m")
	t.Setenv("CAPSTONE_TIMEOUT_MEDIUM", "bogus")
	t.Setenv("CAPSTONE_TIMEOUT_LONG", "-1s")

	if n := ConfigureFromEnv(); n != 2 {
		t.Errorf("ConfigureFromEnv() = %d, want 2", n)
	}
	if got := Ping(); got != 500*time.Millisecond {
		t.Errorf("Ping() = %v, want 500ms", got)
	}
	if got := Batch(); got != 2*time.Minute {
		t.Errorf("Batch() = %v, want 2m", got)
	}
	if got := Medium(); got != DefaultMedium {
		t.Errorf("Medium() = %v, want default", got)
	}
	if got := Long(); got != DefaultLong {
		t.Errorf("Long() = %v, want default", got)
	}
}

func TestWithTimeout_Expires(t *testing.T) {
	ctx, cancel := WithTimeout(context.Background(), time.Millisecond, zap.NewNop(), "test")
	defer cancel()

	<-ctx.Done()
	if ctx.Err() != context.DeadlineExceeded {
		t.Errorf("ctx.Err() = %v, want DeadlineExceeded", ctx.Err())
	}
}
