package models

import (
	"testing"
	"time"
)

func TestParseDiscordID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "900719925474099312", want: "900719925474099312"},
		{in: " 18446744073709551615 ", want: "18446744073709551615"},
		{in: "007", want: "7"},
		{in: "18446744073709551616", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "9.007199254740993e+17", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseDiscordID(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDiscordID(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDiscordID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOTPActive(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	otp := &OTP{ExpiresAt: now}
	if otp.Active(now) {
		t.Fatal("otp is active at its expiry instant")
	}
	if !otp.Active(now.Add(-time.Millisecond)) {
		t.Fatal("otp is inactive before expiry")
	}
}

func TestCommandOption(t *testing.T) {
	var cmd Command
	if cmd.Option("email") != "" {
		t.Fatal("nil options returned a value")
	}
	cmd.Options = map[string]string{"email": "zihad2107071"}
	if cmd.Option("email") != "zihad2107071" {
		t.Fatal("option lost")
	}
}
