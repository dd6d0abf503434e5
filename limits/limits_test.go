package limits

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateDatagram(t *testing.T) {
	if err := ValidateDatagram(nil); !errors.Is(err, ErrMessageEmpty) {
		t.Errorf("nil datagram: got %v", err)
	}
	if err := ValidateDatagram(make([]byte, MaxDatagram)); err != nil {
		t.Errorf("max datagram: got %v", err)
	}
	err := ValidateDatagram(make([]byte, MaxDatagram+1))
	if !errors.Is(err, ErrMessageTooLarge) {
		t.Fatalf("oversized datagram: got %v", err)
	}
	if !strings.Contains(err.Error(), "65508") {
		t.Errorf("error should carry the actual size: %v", err)
	}
}

func TestValidateMessage(t *testing.T) {
	if err := ValidateMessage(nil); err != nil {
		t.Errorf("empty message should be allowed: %v", err)
	}
	if err := ValidateMessage(make([]byte, MaxMessage+1)); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("oversized message: got %v", err)
	}
}

func TestPagesFor(t *testing.T) {
	tests := []struct {
		size, maxBody, want int
	}{
		{0, 100, 1},
		{1, 100, 1},
		{100, 100, 1},
		{101, 100, 2},
		{250, 100, 3},
		{10, 0, 1},
	}
	for _, tt := range tests {
		if got := PagesFor(tt.size, tt.maxBody); got != tt.want {
			t.Errorf("PagesFor(%d, %d) = %d, want %d", tt.size, tt.maxBody, got, tt.want)
		}
	}
}

func TestValidatePages(t *testing.T) {
	if err := ValidatePages(MaxPages, 1); err != nil {
		t.Errorf("exactly MaxPages should pass: %v", err)
	}
	if err := ValidatePages(MaxPages+1, 1); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("MaxPages+1 should fail: %v", err)
	}
}
